package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"device-sync/internal/domain"
	"device-sync/pkg/response"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	defaultTimeout = 10 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 4 << 20
)

// errNoDevice marks a 2xx answer whose body did not hold a usable device.
var errNoDevice = errors.New("response carried no device")

// Client maps the device REST contract onto Go calls. It holds no state
// beyond its transport: no caching and no retries.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the underlying transport, e.g. for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) ListDevices(ctx context.Context) ([]domain.Device, error) {
	var devices []domain.Device
	if _, err := c.do(ctx, "list devices", http.MethodGet, "/devices", nil, &devices); err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []domain.Device{}
	}
	return devices, nil
}

func (c *Client) CreateDevice(ctx context.Context, req domain.CreateDeviceRequest) (domain.Device, error) {
	return c.device(ctx, "create device", http.MethodPost, "/devices", req)
}

// ToggleStatus asks the server to flip the device's status. The server decides
// the resulting status.
func (c *Client) ToggleStatus(ctx context.Context, id string) (domain.Device, error) {
	path := fmt.Sprintf("/devices/%s/status", url.PathEscape(id))
	return c.device(ctx, "toggle device status", http.MethodPatch, path, nil)
}

// device performs a call answered by a single device. An empty or null payload,
// or one without an id or a known status, is a TransportError.
func (c *Client) device(ctx context.Context, op, method, path string, body interface{}) (domain.Device, error) {
	var device domain.Device
	status, err := c.do(ctx, op, method, path, body, &device)
	if err != nil {
		return domain.Device{}, err
	}
	if device.ID == "" || !device.Status.Valid() {
		return domain.Device{}, &TransportError{Op: op, StatusCode: status, Err: errNoDevice}
	}
	return device, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, &TransportError{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    response.ErrorMessage(payload),
		}
	}

	if _, err := response.Decode(payload, out); err != nil {
		return resp.StatusCode, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}
