package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDeviceStatus_Toggled(t *testing.T) {
	tests := []struct {
		name string
		in   DeviceStatus
		want DeviceStatus
	}{
		{name: "active to inactive", in: DeviceStatusActive, want: DeviceStatusInactive},
		{name: "inactive to active", in: DeviceStatusInactive, want: DeviceStatusActive},
		{name: "unknown to active", in: DeviceStatus("?"), want: DeviceStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Toggled(); got != tt.want {
				t.Errorf("Toggled() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeviceStatus_Valid(t *testing.T) {
	if !DeviceStatusActive.Valid() || !DeviceStatusInactive.Valid() {
		t.Error("expected both known statuses to be valid")
	}
	if DeviceStatus("ACTIVE").Valid() {
		t.Error("expected ACTIVE to be rejected, the wire value is ATIVO")
	}
}

func TestDevice_JSONFieldNames(t *testing.T) {
	d := Device{
		ID:        "A",
		Name:      "Printer",
		MAC:       "AA:BB:CC:DD:EE:FF",
		Status:    DeviceStatusActive,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{"id", "name", "mac", "status", "createdAt", "updatedAt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in %s", key, string(data))
		}
	}
	if raw["status"] != "ATIVO" {
		t.Errorf("expected status ATIVO, got %v", raw["status"])
	}
}
