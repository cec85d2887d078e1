package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"device-sync/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

const deviceDocType = "device"

type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error
	List(ctx context.Context) ([]*domain.Device, error)
	FindByID(ctx context.Context, deviceID string) (*domain.Device, error)
	UpdateStatus(ctx context.Context, deviceID string, status domain.DeviceStatus, updatedAt time.Time) (*domain.Device, error)
}

// deviceDoc is the CouchDB shape of a device. The rev must round-trip for updates.
type deviceDoc struct {
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	domain.Device
}

type deviceRepository struct {
	client *kivik.Client
	dbName string
}

func NewDeviceRepository(client *kivik.Client, dbName string) DeviceRepository {
	return &deviceRepository{
		client: client,
		dbName: dbName,
	}
}

func docID(deviceID string) string {
	return fmt.Sprintf("device:%s", deviceID)
}

func (r *deviceRepository) Create(ctx context.Context, device *domain.Device) error {
	db := r.client.DB(r.dbName)

	doc := deviceDoc{DocType: deviceDocType, Device: *device}
	if _, err := db.Put(ctx, docID(device.ID), doc); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

func (r *deviceRepository) List(ctx context.Context) ([]*domain.Device, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": deviceDocType,
		},
	}

	rows := db.Find(ctx, query)
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		var doc deviceDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue // Skip malformed docs
		}
		device := doc.Device
		devices = append(devices, &device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	slices.SortFunc(devices, func(a, b *domain.Device) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return devices, nil
}

func (r *deviceRepository) findDoc(ctx context.Context, deviceID string) (*deviceDoc, error) {
	db := r.client.DB(r.dbName)

	var doc deviceDoc
	if err := db.Get(ctx, docID(deviceID)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find device: %w", err)
	}

	return &doc, nil
}

func (r *deviceRepository) FindByID(ctx context.Context, deviceID string) (*domain.Device, error) {
	doc, err := r.findDoc(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	device := doc.Device
	return &device, nil
}

func (r *deviceRepository) UpdateStatus(ctx context.Context, deviceID string, status domain.DeviceStatus, updatedAt time.Time) (*domain.Device, error) {
	doc, err := r.findDoc(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	doc.Status = status
	doc.UpdatedAt = updatedAt

	db := r.client.DB(r.dbName)
	if _, err := db.Put(ctx, docID(deviceID), doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return nil, fmt.Errorf("failed to update device status: %w", errors.Join(err, ErrConflict))
		}
		return nil, fmt.Errorf("failed to update device status: %w", err)
	}

	device := doc.Device
	return &device, nil
}
