package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"device-sync/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/v1/", time.Second)
}

func TestClient_ListDevices(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "enveloped",
			body: `{"success":true,"data":[{"id":"d1","name":"Printer","mac":"AA:BB:CC:DD:EE:FF","status":"ATIVO","createdAt":"2025-01-01T10:00:00Z","updatedAt":"2025-01-01T10:00:00Z"}]}`,
			want: 1,
		},
		{
			name: "bare array",
			body: `[{"id":"d1","status":"ATIVO"},{"id":"d2","status":"INATIVO"}]`,
			want: 2,
		},
		{
			name: "enveloped null data",
			body: `{"success":true,"data":null}`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/api/v1/devices" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.Write([]byte(tt.body))
			})

			devices, err := client.ListDevices(context.Background())
			if err != nil {
				t.Fatalf("ListDevices() error = %v", err)
			}
			if devices == nil {
				t.Fatal("expected a non-nil slice")
			}
			if len(devices) != tt.want {
				t.Errorf("expected %d devices, got %d", tt.want, len(devices))
			}
		})
	}
}

func TestClient_CreateDevice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}

		var req domain.CreateDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": domain.Device{
				ID:     "d9",
				Name:   req.Name,
				MAC:    req.MAC,
				Status: domain.DeviceStatusActive,
			},
		})
	})

	device, err := client.CreateDevice(context.Background(), domain.CreateDeviceRequest{Name: "Printer", MAC: "AA:BB:CC:DD:EE:FF"})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if device.ID != "d9" || device.Name != "Printer" || device.Status != domain.DeviceStatusActive {
		t.Errorf("unexpected device %+v", device)
	}
}

func TestClient_ToggleStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/v1/devices/d1/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id":"d1","status":"INATIVO","updatedAt":"2025-01-01T10:00:05Z"}`))
	})

	device, err := client.ToggleStatus(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ToggleStatus() error = %v", err)
	}
	if device.Status != domain.DeviceStatusInactive {
		t.Errorf("expected INATIVO, got %s", device.Status)
	}
	if !device.UpdatedAt.Equal(time.Date(2025, 1, 1, 10, 0, 5, 0, time.UTC)) {
		t.Errorf("unexpected updatedAt %v", device.UpdatedAt)
	}
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{name: "message field", status: http.StatusNotFound, body: `{"success":false,"error":"Not Found","message":"device not found"}`, wantMessage: "device not found"},
		{name: "error field only", status: http.StatusBadRequest, body: `{"error":"MAC inválido"}`, wantMessage: ""},
		{name: "status text only", status: http.StatusInternalServerError, body: `{"success":false,"error":"Internal Server Error"}`, wantMessage: ""},
		{name: "no body", status: http.StatusInternalServerError, body: ``, wantMessage: ""},
		{name: "html body", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantMessage: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.ToggleStatus(context.Background(), "d1")

			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TransportError, got %T (%v)", err, err)
			}
			if te.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, te.StatusCode)
			}
			if te.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, te.Message)
			}
			if tt.wantMessage == "" {
				if got := UserMessage(err, "Erro ao alterar status"); got != "Erro ao alterar status" {
					t.Errorf("expected fallback message, got %q", got)
				}
			}
		})
	}
}

func TestClient_EmptySuccessBody(t *testing.T) {
	bodies := []struct {
		name string
		body string
	}{
		{name: "no body", body: ``},
		{name: "bare null", body: `null`},
		{name: "enveloped null data", body: `{"success":true,"data":null}`},
		{name: "envelope without data", body: `{"success":true}`},
		{name: "missing id", body: `{"status":"ATIVO"}`},
		{name: "unknown status", body: `{"id":"d1","status":"PAUSED"}`},
	}

	calls := []struct {
		name string
		call func(*Client) (domain.Device, error)
	}{
		{name: "create", call: func(c *Client) (domain.Device, error) {
			return c.CreateDevice(context.Background(), domain.CreateDeviceRequest{Name: "Printer", MAC: "AA:BB:CC:DD:EE:FF"})
		}},
		{name: "toggle", call: func(c *Client) (domain.Device, error) {
			return c.ToggleStatus(context.Background(), "d1")
		}},
	}

	for _, b := range bodies {
		for _, call := range calls {
			t.Run(call.name+"/"+b.name, func(t *testing.T) {
				client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(b.body))
				})

				device, err := call.call(client)

				var te *TransportError
				if !errors.As(err, &te) {
					t.Fatalf("expected *TransportError, got %T (%v)", err, err)
				}
				if te.StatusCode != http.StatusOK {
					t.Errorf("expected status 200, got %d", te.StatusCode)
				}
				if te.Err == nil {
					t.Error("expected a wrapped cause")
				}
				if device != (domain.Device{}) {
					t.Errorf("expected a zero device, got %+v", device)
				}
				if got := UserMessage(err, "fallback"); got != "fallback" {
					t.Errorf("expected fallback message, got %q", got)
				}
			})
		}
	}
}

func TestClient_UndecodableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":"not a list"}`))
	})

	_, err := client.ListDevices(context.Background())

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.Err == nil {
		t.Error("expected the decode error to be wrapped")
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second)
	_, err := client.ListDevices(context.Background())

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.StatusCode != 0 {
		t.Errorf("expected no status code for a dial failure, got %d", te.StatusCode)
	}
	if got := UserMessage(err, "Erro ao carregar dispositivos"); got != "Erro ao carregar dispositivos" {
		t.Errorf("expected fallback message, got %q", got)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond)
	if _, err := client.ListDevices(context.Background()); err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "server message", err: &TransportError{Op: "x", StatusCode: 400, Message: "nome obrigatório"}, want: "nome obrigatório"},
		{name: "no message", err: &TransportError{Op: "x", StatusCode: 500}, want: "fallback"},
		{name: "wrapped", err: errors.Join(errors.New("outer"), &TransportError{Message: "inner"}), want: "inner"},
		{name: "foreign error", err: errors.New("boom"), want: "fallback"},
		{name: "nil", err: nil, want: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err, "fallback"); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Error(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Op: "list devices", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if err.Error() != "list devices: connection refused" {
		t.Errorf("unexpected message %q", err.Error())
	}

	withStatus := &TransportError{Op: "create device", StatusCode: 400, Message: "bad mac"}
	if withStatus.Error() != "create device: status 400: bad mac" {
		t.Errorf("unexpected message %q", withStatus.Error())
	}

	withCause := &TransportError{Op: "create device", StatusCode: 200, Err: errNoDevice}
	if withCause.Error() != "create device: status 200: response carried no device" {
		t.Errorf("unexpected message %q", withCause.Error())
	}
}
