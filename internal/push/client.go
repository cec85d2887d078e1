package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"device-sync/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Kind names an event type in the hub's envelope.
type Kind = websocket.MessageType

// Event kinds carried by the hub's envelope.
const (
	DeviceCreated       = websocket.TypeDeviceCreated
	DeviceStatusChanged = websocket.TypeDeviceStatus
)

const (
	defaultReconnectDelay    = time.Second
	defaultReconnectAttempts = 5
	defaultPongWait          = 60 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	writeWait                = 5 * time.Second
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the raw payload of one event.
type Handler func(payload json.RawMessage)

// Subscription identifies one Subscribe call so it can be released later.
type Subscription struct {
	ID   string
	Kind Kind
}

type Options struct {
	// URL is the hub base URL; http(s) is mapped to ws(s) and /ws appended.
	URL string
	// ReconnectDelay is the fixed pause between dials. Zero means 1s.
	ReconnectDelay time.Duration
	// ReconnectAttempts bounds redials after a failure. Zero means 5, negative disables reconnection.
	ReconnectAttempts int
	PongWait          time.Duration
	HandshakeTimeout  time.Duration
	Logger            *zap.Logger
	OnStateChange     func(State)
}

type subscription struct {
	id      string
	kind    Kind
	handler Handler
}

// session is the connection handle created by Connect and cleared by Disconnect.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *ws.Conn
}

// Client keeps one WebSocket to the hub and fans its events out to
// subscribed handlers. Handlers run one at a time on the reader goroutine, in
// arrival order. All methods are safe for concurrent use.
type Client struct {
	url    string
	opts   Options
	dialer *ws.Dialer
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	stateCh chan struct{}
	session *session
	subs    []subscription
}

func New(opts Options) (*Client, error) {
	target, err := toWebsocketURL(opts.URL)
	if err != nil {
		return nil, err
	}

	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	switch {
	case opts.ReconnectAttempts == 0:
		opts.ReconnectAttempts = defaultReconnectAttempts
	case opts.ReconnectAttempts < 0:
		opts.ReconnectAttempts = 0
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		url:  target,
		opts: opts,
		dialer: &ws.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger:  logger.With(zap.String("url", target)),
		stateCh: make(chan struct{}),
	}, nil
}

func (c *Client) URL() string {
	return c.url
}

// Connect creates the connection handle and starts dialing in the background.
// It is a no-op while the handle is connecting or connected. Cancelling ctx
// tears the connection down like Disconnect, but keeps the handle.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if prev := c.session; prev != nil {
		if c.state != StateDisconnected {
			c.mu.Unlock()
			return
		}
		// Reconnection gave up earlier; dial again under the same handle.
		prev.cancel()
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &session{ctx: sctx, cancel: cancel}
	c.session = s
	changed := c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	if changed {
		c.notifyState(StateConnecting)
	}
	go c.run(s)
}

// Disconnect closes the connection, drops the handle and every subscription.
// No reconnection happens afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.subs = nil
	conn := s.conn
	s.conn = nil
	changed := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	s.cancel()
	if conn != nil {
		conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}

	if changed {
		c.notifyState(StateDisconnected)
	}
	c.logger.Info("push channel disconnected")
}

// Subscribe registers handler for events of the given kind. Without a
// connection handle it does nothing and returns ErrNotConnected.
func (c *Client) Subscribe(kind Kind, handler Handler) (Subscription, error) {
	if kind == "" {
		return Subscription{}, ErrInvalidKind
	}
	if handler == nil {
		return Subscription{}, ErrNilHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		c.logger.Warn("subscribe called without a connection", zap.String("kind", string(kind)))
		return Subscription{}, ErrNotConnected
	}

	sub := subscription{id: uuid.NewString(), kind: kind, handler: handler}
	c.subs = append(c.subs, sub)
	return Subscription{ID: sub.id, Kind: kind}, nil
}

// Unsubscribe releases a subscription. Unknown or already released
// subscriptions are ignored.
func (c *Client) Unsubscribe(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs = slices.DeleteFunc(c.subs, func(s subscription) bool {
		return s.id == sub.ID
	})
}

func (c *Client) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WaitConnected blocks until the channel is connected or ctx is done.
func (c *Client) WaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		state, changed := c.state, c.stateCh
		c.mu.Unlock()

		if state == StateConnected {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) run(s *session) {
	failures := 0
	for {
		conn, _, err := c.dialer.DialContext(s.ctx, c.url, nil)
		if err != nil {
			if s.ctx.Err() != nil {
				c.setState(s, StateDisconnected)
				return
			}

			failures++
			if failures > c.opts.ReconnectAttempts {
				c.logger.Error("push channel reconnection attempts exhausted",
					zap.Int("attempts", c.opts.ReconnectAttempts),
					zap.Error(err))
				c.setState(s, StateDisconnected)
				return
			}

			c.logger.Warn("push channel dial failed",
				zap.Int("attempt", failures),
				zap.Duration("retry_in", c.opts.ReconnectDelay),
				zap.Error(err))
			if !sleep(s.ctx, c.opts.ReconnectDelay) {
				c.setState(s, StateDisconnected)
				return
			}
			continue
		}

		if !c.attach(s, conn) {
			conn.Close()
			return
		}
		failures = 0
		c.setState(s, StateConnected)
		c.logger.Info("push channel connected")

		stop := context.AfterFunc(s.ctx, func() { conn.Close() })
		err = c.readLoop(s, conn)
		stop()
		c.detach(s, conn)
		conn.Close()

		if s.ctx.Err() != nil {
			c.setState(s, StateDisconnected)
			return
		}

		c.logger.Warn("push channel lost", zap.Error(err))
		if c.opts.ReconnectAttempts == 0 {
			c.setState(s, StateDisconnected)
			return
		}
		c.setState(s, StateConnecting)
		if !sleep(s.ctx, c.opts.ReconnectDelay) {
			c.setState(s, StateDisconnected)
			return
		}
	}
}

func (c *Client) readLoop(s *session, conn *ws.Conn) error {
	conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		err := conn.WriteControl(ws.PongMessage, []byte(data), time.Now().Add(writeWait))
		var netErr net.Error
		if errors.Is(err, ws.ErrCloseSent) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		c.dispatch(s, data)
	}
}

func (c *Client) dispatch(s *session, data []byte) {
	var msg websocket.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping malformed push frame", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	var handlers []Handler
	for _, sub := range c.subs {
		if sub.kind == msg.Type {
			handlers = append(handlers, sub.handler)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		c.invoke(msg.Type, h, msg.Payload)
	}
}

func (c *Client) invoke(kind Kind, h Handler, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("push handler panic recovered",
				zap.String("kind", string(kind)),
				zap.Any("panic", r))
		}
	}()
	h(payload)
}

func (c *Client) attach(s *session, conn *ws.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != s || s.ctx.Err() != nil {
		return false
	}
	s.conn = conn
	return true
}

func (c *Client) detach(s *session, conn *ws.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
}

// setState records a transition made by session s. Transitions from a session
// that is no longer current are dropped.
func (c *Client) setState(s *session, state State) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	changed := c.setStateLocked(state)
	c.mu.Unlock()

	if changed {
		c.notifyState(state)
	}
}

func (c *Client) setStateLocked(state State) bool {
	if c.state == state {
		return false
	}
	c.state = state
	close(c.stateCh)
	c.stateCh = make(chan struct{})
	return true
}

func (c *Client) notifyState(state State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(state)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// toWebsocketURL maps an http(s) or ws(s) base URL to the hub's /ws endpoint.
func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	path := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(path, "/ws") {
		path += "/ws"
	}
	u.Path = path
	return u.String(), nil
}
