package service

import (
	"context"
	"errors"
	"time"

	"device-sync/internal/domain"
	"device-sync/internal/repository"
	"device-sync/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventBroadcaster pushes device events to every connected client.
type EventBroadcaster interface {
	Broadcast(msgType websocket.MessageType, payload interface{}) error
}

type DeviceService struct {
	repo        repository.DeviceRepository
	broadcaster EventBroadcaster
	logger      *zap.Logger
	now         func() time.Time
}

func NewDeviceService(repo repository.DeviceRepository, broadcaster EventBroadcaster, logger *zap.Logger) *DeviceService {
	return &DeviceService{
		repo:        repo,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// Create stores a new device. The hub assigns id, timestamps and the default ACTIVE status.
func (s *DeviceService) Create(ctx context.Context, req *domain.CreateDeviceRequest) (*domain.Device, error) {
	now := s.now().UTC()

	device := &domain.Device{
		ID:        uuid.New().String(),
		Name:      req.Name,
		MAC:       req.MAC,
		Status:    domain.DeviceStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, device); err != nil {
		return nil, err
	}

	s.publish(websocket.TypeDeviceCreated, device)
	return device, nil
}

func (s *DeviceService) List(ctx context.Context) ([]*domain.Device, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*domain.Device{}
	}
	return devices, nil
}

// ToggleStatus flips the stored status and announces it with a device:status event.
func (s *DeviceService) ToggleStatus(ctx context.Context, deviceID string) (*domain.Device, error) {
	current, err := s.repo.FindByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, deviceID, current.Status.Toggled(), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	s.publish(websocket.TypeDeviceStatus, domain.StatusChangedEvent{ID: updated.ID, Status: updated.Status})
	return updated, nil
}

func (s *DeviceService) publish(msgType websocket.MessageType, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msgType, payload); err != nil {
		s.logger.Warn("failed to broadcast device event", zap.String("type", string(msgType)), zap.Error(err))
	}
}
