package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"device-sync/internal/domain"
)

// memoryDeviceRepository keeps devices in insertion order, newest first on List.
type memoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*domain.Device
	order   []string
}

func NewMemoryDeviceRepository() DeviceRepository {
	return &memoryDeviceRepository{
		devices: make(map[string]*domain.Device),
	}
}

func (r *memoryDeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[device.ID]; exists {
		return errors.New("device already exists")
	}

	deviceCopy := *device
	r.devices[device.ID] = &deviceCopy
	r.order = append(r.order, device.ID)
	return nil
}

func (r *memoryDeviceRepository) List(ctx context.Context) ([]*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]*domain.Device, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		deviceCopy := *r.devices[r.order[i]]
		devices = append(devices, &deviceCopy)
	}
	return devices, nil
}

func (r *memoryDeviceRepository) FindByID(ctx context.Context, deviceID string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, exists := r.devices[deviceID]
	if !exists {
		return nil, ErrNotFound
	}

	deviceCopy := *device
	return &deviceCopy, nil
}

func (r *memoryDeviceRepository) UpdateStatus(ctx context.Context, deviceID string, status domain.DeviceStatus, updatedAt time.Time) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[deviceID]
	if !exists {
		return nil, ErrNotFound
	}

	device.Status = status
	device.UpdatedAt = updatedAt

	deviceCopy := *device
	return &deviceCopy, nil
}
