package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func startManager(t *testing.T) (*Manager, context.CancelFunc) {
	t.Helper()
	m := NewManager(time.Second, time.Minute, 30*time.Second, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(cancel)
	return m, cancel
}

func recv(t *testing.T, ch <-chan []byte) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting on client channel")
		return nil, false
	}
}

func waitCount(t *testing.T, m *Manager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.ConnectionCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, got %d", want, m.ConnectionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_BroadcastFansOut(t *testing.T) {
	m, _ := startManager(t)

	a := &Client{ID: "a", Send: make(chan []byte, 4)}
	b := &Client{ID: "b", Send: make(chan []byte, 4)}
	m.Register <- a
	m.Register <- b

	if err := m.Broadcast(TypeDeviceStatus, map[string]string{"id": "d1", "status": "INATIVO"}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	for _, c := range []*Client{a, b} {
		data, ok := recv(t, c.Send)
		if !ok {
			t.Fatalf("client %s channel closed", c.ID)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != TypeDeviceStatus {
			t.Errorf("client %s: expected device:status, got %s", c.ID, msg.Type)
		}
	}

	if m.ConnectionCount() != 2 {
		t.Errorf("expected 2 connections, got %d", m.ConnectionCount())
	}
}

func TestManager_DropsSlowClient(t *testing.T) {
	m, _ := startManager(t)

	slow := &Client{ID: "slow", Send: make(chan []byte)}
	m.Register <- slow

	waitCount(t, m, 1)
	m.Broadcast(TypeDeviceCreated, map[string]string{"id": "d1"})

	// Nobody reads slow.Send here, so the fan-out cannot deliver.
	waitCount(t, m, 0)
	if _, ok := recv(t, slow.Send); ok {
		t.Fatal("expected the slow client's channel to be closed")
	}
}

func TestManager_UnregisterClosesSend(t *testing.T) {
	m, _ := startManager(t)

	c := &Client{ID: "c", Send: make(chan []byte, 1)}
	m.Register <- c
	m.Unregister <- c
	m.Unregister <- c

	if _, ok := recv(t, c.Send); ok {
		t.Fatal("expected Send to be closed on unregister")
	}
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	m, cancel := startManager(t)

	c := &Client{ID: "c", Send: make(chan []byte, 1)}
	m.Register <- c
	cancel()

	if _, ok := recv(t, c.Send); ok {
		t.Fatal("expected Send to be closed on shutdown")
	}

	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return")
	}
}

func TestMessage_UnmarshalPayload(t *testing.T) {
	msg, err := NewMessage(TypeDeviceCreated, map[string]string{"id": "d1"})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := msg.UnmarshalPayload(&payload); err != nil || payload.ID != "d1" {
		t.Errorf("unexpected payload %+v (%v)", payload, err)
	}

	empty := &Message{Type: TypeDeviceCreated}
	if err := empty.UnmarshalPayload(&payload); err != nil {
		t.Errorf("expected nil payload to be a no-op, got %v", err)
	}
}

func TestManager_AttachAfterShutdown(t *testing.T) {
	m, cancel := startManager(t)
	cancel()
	<-m.done

	if m.Attach(&Client{ID: "late", Send: make(chan []byte, 1)}) {
		t.Error("expected Attach to fail once the manager has stopped")
	}
}
