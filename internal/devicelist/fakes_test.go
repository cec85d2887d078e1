package devicelist

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"device-sync/internal/domain"
	"device-sync/internal/push"
)

type fakeGateway struct {
	list   func() ([]domain.Device, error)
	create func(req domain.CreateDeviceRequest) (domain.Device, error)
	toggle func(id string) (domain.Device, error)

	mu          sync.Mutex
	listCalls   int
	toggleCalls int
}

func (f *fakeGateway) ListDevices(ctx context.Context) ([]domain.Device, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.list == nil {
		return []domain.Device{}, nil
	}
	return f.list()
}

func (f *fakeGateway) CreateDevice(ctx context.Context, req domain.CreateDeviceRequest) (domain.Device, error) {
	if f.create == nil {
		return domain.Device{}, errors.New("create not configured")
	}
	return f.create(req)
}

func (f *fakeGateway) ToggleStatus(ctx context.Context, id string) (domain.Device, error) {
	f.mu.Lock()
	f.toggleCalls++
	f.mu.Unlock()
	if f.toggle == nil {
		return domain.Device{}, errors.New("toggle not configured")
	}
	return f.toggle(id)
}

type fakeChannel struct {
	mu           sync.Mutex
	connects     int
	disconnects  int
	unsubscribes int
	next         int
	subs         map[string]push.Subscription
	handlers     map[string]push.Handler
	subscribeErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		subs:     make(map[string]push.Subscription),
		handlers: make(map[string]push.Handler),
	}
}

func (f *fakeChannel) Connect(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	clear(f.subs)
	clear(f.handlers)
}

func (f *fakeChannel) Subscribe(kind push.Kind, handler push.Handler) (push.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return push.Subscription{}, f.subscribeErr
	}
	f.next++
	sub := push.Subscription{ID: strconv.Itoa(f.next), Kind: kind}
	f.subs[sub.ID] = sub
	f.handlers[sub.ID] = handler
	return sub, nil
}

func (f *fakeChannel) Unsubscribe(sub push.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub.ID]; ok {
		f.unsubscribes++
	}
	delete(f.subs, sub.ID)
	delete(f.handlers, sub.ID)
}

func (f *fakeChannel) subscribed(kind push.Kind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.Kind == kind {
			return true
		}
	}
	return false
}

// emit delivers an event synchronously, the way the push reader goroutine would.
func (f *fakeChannel) emit(kind push.Kind, payload interface{}) {
	data, _ := json.Marshal(payload)

	f.mu.Lock()
	var handlers []push.Handler
	for id, sub := range f.subs {
		if sub.Kind == kind {
			handlers = append(handlers, f.handlers[id])
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}
