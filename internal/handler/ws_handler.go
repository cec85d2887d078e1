package handler

import (
	"net/http"

	"device-sync/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	manager        *websocket.Manager
	upgrader       ws.Upgrader
	maxMessageSize int64
	logger         *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, readBufferSize, writeBufferSize int, maxMessageSize int64, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:        manager,
		maxMessageSize: maxMessageSize,
		logger:         logger,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.New().String(), conn, h.manager)
	if !h.manager.Attach(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.maxMessageSize)
}
