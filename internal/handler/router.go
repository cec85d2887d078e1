package handler

import (
	"net/http"

	"device-sync/internal/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type CORSOptions struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// NewRouter wires the device REST contract under /api/v1 and the push endpoint at /ws.
func NewRouter(devices *DeviceHandler, ws *WebSocketHandler, cors CORSOptions, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(cors.AllowedOrigins, cors.AllowedMethods, cors.AllowedHeaders))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/devices", devices.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/devices", devices.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/devices/{id}/status", devices.ToggleStatus).Methods("PATCH", "OPTIONS")

	r.HandleFunc("/ws", ws.HandleConnection)
	r.HandleFunc("/health", healthHandler).Methods("GET")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"devicehub"}`))
}
