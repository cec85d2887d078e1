package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager tracks connected push clients and fans device events out to all of them.
// Register, Unregister and broadcasts are serialized through Run.
type Manager struct {
	clients      map[string]*Client
	clientsMutex sync.RWMutex
	Register     chan *Client
	Unregister   chan *Client
	broadcast    chan []byte
	done         chan struct{}
	writeWait    time.Duration
	pongWait     time.Duration
	pingPeriod   time.Duration
	logger       *zap.Logger
}

func NewManager(writeWait, pongWait, pingPeriod time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		logger:     logger,
	}
}

func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case message := <-m.broadcast:
			m.fanOut(message)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	m.clients[client.ID] = client
	m.logger.Info("push client registered", zap.String("clientID", client.ID))
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		close(client.Send)
		m.logger.Info("push client unregistered", zap.String("clientID", client.ID))
	}
}

func (m *Manager) fanOut(message []byte) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		select {
		case client.Send <- message:
		default:
			m.logger.Warn("push client send buffer full, dropping connection", zap.String("clientID", id))
			delete(m.clients, id)
			close(client.Send)
		}
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		delete(m.clients, id)
		close(client.Send)
	}
}

// Attach hands client to Run. It reports false once the manager has stopped.
func (m *Manager) Attach(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// Broadcast queues an event for every connected client.
func (m *Manager) Broadcast(msgType MessageType, payload interface{}) error {
	message, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case m.broadcast <- messageBytes:
	default:
		m.logger.Warn("broadcast queue full, event dropped", zap.String("type", string(msgType)))
	}

	return nil
}

func (m *Manager) ConnectionCount() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}
