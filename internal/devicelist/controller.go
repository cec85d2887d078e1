package devicelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"device-sync/internal/domain"
	"device-sync/internal/gateway"
	"device-sync/internal/notify"
	"device-sync/internal/push"

	"go.uber.org/zap"
)

// Fallback messages shown when the server gives no message of its own.
const (
	MsgFetchFailed  = "Erro ao carregar dispositivos"
	MsgCreateFailed = "Erro ao criar dispositivo"
	MsgToggleFailed = "Erro ao alterar status"
)

var (
	ErrUnknownDevice = errors.New("devicelist: unknown device")
	ErrMounted       = errors.New("devicelist: already mounted")
)

// Gateway is the REST side the controller depends on. *gateway.Client implements it.
type Gateway interface {
	ListDevices(ctx context.Context) ([]domain.Device, error)
	CreateDevice(ctx context.Context, req domain.CreateDeviceRequest) (domain.Device, error)
	ToggleStatus(ctx context.Context, id string) (domain.Device, error)
}

// Channel is the push side the controller depends on. *push.Client implements it.
type Channel interface {
	Connect(ctx context.Context)
	Disconnect()
	Subscribe(kind push.Kind, handler push.Handler) (push.Subscription, error)
	Unsubscribe(sub push.Subscription)
}

// Unmount releases what Mount acquired. It is safe to call more than once.
type Unmount func()

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithNotifier posts every failure message to q as an error toast.
func WithNotifier(q *notify.Queue) Option {
	return func(c *Controller) { c.toasts = q }
}

// OnChange registers fn to run after every state change, outside the lock.
func OnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// entry pairs a device with the revision of its last local write.
type entry struct {
	device domain.Device
	rev    uint64
}

// Controller owns the in-memory device collection. It reconciles user
// actions, server confirmations and push events into one list holding at
// most one entry per id. The lock is never held across gateway calls.
type Controller struct {
	gateway  Gateway
	channel  Channel
	logger   *zap.Logger
	toasts   *notify.Queue
	now      func() time.Time
	onChange func()

	mu        sync.Mutex
	devices   []entry
	isLoading bool
	err       string
	rev       uint64
	mounted   bool
}

func New(gw Gateway, ch Channel, opts ...Option) *Controller {
	c := &Controller{
		gateway: gw,
		channel: ch,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Devices returns a copy of the collection, newest known first.
func (c *Controller) Devices() []domain.Device {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Device, len(c.devices))
	for i, e := range c.devices {
		out[i] = e.device
	}
	return out
}

func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLoading
}

// Err returns the last user-facing error message, or "" when there is none.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Fetch replaces the collection with the server's list. On failure the
// previous collection is kept and the error message is set.
func (c *Controller) Fetch(ctx context.Context) bool {
	c.mu.Lock()
	c.isLoading = true
	c.err = ""
	c.mu.Unlock()
	c.changed()

	devices, err := c.gateway.ListDevices(ctx)

	c.mu.Lock()
	if err == nil {
		c.replaceLocked(devices)
	} else {
		c.err = gateway.UserMessage(err, MsgFetchFailed)
	}
	c.isLoading = false
	c.mu.Unlock()

	if err != nil {
		c.fail("failed to fetch devices", MsgFetchFailed, err)
	}
	c.changed()
	return err == nil
}

// Create asks the server for a new device and inserts the confirmed result
// at the front. Nothing is inserted before the server answers.
func (c *Controller) Create(ctx context.Context, req domain.CreateDeviceRequest) bool {
	c.mu.Lock()
	c.err = ""
	c.mu.Unlock()
	c.changed()

	device, err := c.gateway.CreateDevice(ctx, req)
	if err != nil {
		c.mu.Lock()
		c.err = gateway.UserMessage(err, MsgCreateFailed)
		c.mu.Unlock()

		c.fail("failed to create device", MsgCreateFailed, err)
		c.changed()
		return false
	}

	c.mu.Lock()
	// The device:created echo can beat the HTTP response.
	c.insertLocked(device)
	c.mu.Unlock()

	c.changed()
	return true
}

// ToggleStatus flips the device's status locally, then asks the server to do
// the same. The server's answer wins on success; on failure the previous
// status comes back unless a push event rewrote the device in the meantime.
// An unknown id returns false without touching the collection or the error.
func (c *Controller) ToggleStatus(ctx context.Context, id string) bool {
	var (
		previous domain.DeviceStatus
		applied  uint64
	)

	err := RunOptimistic(
		func() error {
			c.mu.Lock()
			e := c.findLocked(id)
			if e == nil {
				c.mu.Unlock()
				return ErrUnknownDevice
			}
			c.err = ""
			previous = e.device.Status
			e.device.Status = previous.Toggled()
			e.device.UpdatedAt = c.now()
			applied = c.touchLocked(e)
			c.mu.Unlock()

			c.changed()
			return nil
		},
		func() (domain.Device, error) {
			return c.gateway.ToggleStatus(ctx, id)
		},
		func(confirmed domain.Device) {
			c.mu.Lock()
			if e := c.findLocked(id); e != nil {
				e.device.Status = confirmed.Status
				e.device.UpdatedAt = confirmed.UpdatedAt
				c.touchLocked(e)
			}
			c.mu.Unlock()

			c.changed()
		},
		func(cause error) {
			c.mu.Lock()
			c.err = gateway.UserMessage(cause, MsgToggleFailed)
			if e := c.findLocked(id); e != nil && e.rev == applied {
				e.device.Status = previous
				c.touchLocked(e)
			}
			c.mu.Unlock()

			c.fail("failed to toggle device status", MsgToggleFailed, cause, zap.String("device_id", id))
			c.changed()
		},
	)
	return err == nil
}

// Mount fetches the list, connects the push channel and subscribes to both
// device events. The returned Unmount releases the subscriptions and
// disconnects; in-flight requests are not cancelled by it.
func (c *Controller) Mount(ctx context.Context) (Unmount, error) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return nil, ErrMounted
	}
	c.mounted = true
	c.mu.Unlock()

	var subs []push.Subscription
	if c.channel != nil {
		c.channel.Connect(ctx)

		for _, s := range []struct {
			kind    push.Kind
			handler push.Handler
		}{
			{push.DeviceCreated, c.handleCreated},
			{push.DeviceStatusChanged, c.handleStatusChanged},
		} {
			sub, err := c.channel.Subscribe(s.kind, s.handler)
			if err != nil {
				c.release(subs)
				return nil, fmt.Errorf("subscribe %s: %w", s.kind, err)
			}
			subs = append(subs, sub)
		}
	}

	c.Fetch(ctx)

	var once sync.Once
	return func() {
		once.Do(func() { c.release(subs) })
	}, nil
}

func (c *Controller) release(subs []push.Subscription) {
	if c.channel != nil {
		for _, sub := range subs {
			c.channel.Unsubscribe(sub)
		}
		c.channel.Disconnect()
	}

	c.mu.Lock()
	c.mounted = false
	c.mu.Unlock()
}

func (c *Controller) handleCreated(payload json.RawMessage) {
	var device domain.Device
	if err := json.Unmarshal(payload, &device); err != nil || device.ID == "" {
		c.logger.Warn("ignoring malformed device:created event", zap.Error(err))
		return
	}

	c.mu.Lock()
	inserted := c.insertLocked(device)
	c.mu.Unlock()

	c.logger.Debug("device created event", zap.String("device_id", device.ID), zap.Bool("inserted", inserted))
	if inserted {
		c.changed()
	}
}

func (c *Controller) handleStatusChanged(payload json.RawMessage) {
	var event domain.StatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" || !event.Status.Valid() {
		c.logger.Warn("ignoring malformed device:status event", zap.Error(err))
		return
	}

	c.mu.Lock()
	e := c.findLocked(event.ID)
	if e != nil {
		e.device.Status = event.Status
		e.device.UpdatedAt = c.now()
		c.touchLocked(e)
	}
	c.mu.Unlock()

	c.logger.Debug("device status event",
		zap.String("device_id", event.ID),
		zap.String("status", string(event.Status)),
		zap.Bool("applied", e != nil))
	if e != nil {
		c.changed()
	}
}

func (c *Controller) findLocked(id string) *entry {
	for i := range c.devices {
		if c.devices[i].device.ID == id {
			return &c.devices[i]
		}
	}
	return nil
}

// insertLocked puts device at the front unless its id is already present.
func (c *Controller) insertLocked(device domain.Device) bool {
	if c.findLocked(device.ID) != nil {
		return false
	}
	c.rev++
	c.devices = append([]entry{{device: device, rev: c.rev}}, c.devices...)
	return true
}

// replaceLocked swaps in a fetched list, keeping the first entry for a repeated id.
func (c *Controller) replaceLocked(devices []domain.Device) {
	seen := make(map[string]struct{}, len(devices))
	next := make([]entry, 0, len(devices))
	for _, d := range devices {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		c.rev++
		next = append(next, entry{device: d, rev: c.rev})
	}
	c.devices = next
}

func (c *Controller) touchLocked(e *entry) uint64 {
	c.rev++
	e.rev = c.rev
	return e.rev
}

func (c *Controller) fail(logMsg, fallback string, err error, fields ...zap.Field) {
	c.logger.Warn(logMsg, append(fields, zap.Error(err))...)
	if c.toasts != nil {
		c.toasts.Error(gateway.UserMessage(err, fallback))
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
