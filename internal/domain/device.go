package domain

import "time"

type DeviceStatus string

const (
	DeviceStatusActive   DeviceStatus = "ATIVO"
	DeviceStatusInactive DeviceStatus = "INATIVO"
)

func (s DeviceStatus) Valid() bool {
	return s == DeviceStatusActive || s == DeviceStatusInactive
}

// Toggled returns the opposite status. Anything that is not active toggles to active.
func (s DeviceStatus) Toggled() DeviceStatus {
	if s == DeviceStatusActive {
		return DeviceStatusInactive
	}
	return DeviceStatusActive
}

type Device struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	MAC       string       `json:"mac"`
	Status    DeviceStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type CreateDeviceRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	MAC  string `json:"mac" validate:"required,mac"`
}

type StatusChangedEvent struct {
	ID     string       `json:"id"`
	Status DeviceStatus `json:"status"`
}
