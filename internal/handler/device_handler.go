package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"device-sync/internal/domain"
	"device-sync/internal/service"
	"device-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	service  *service.DeviceService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewDeviceHandler(service *service.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	device, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create device", zap.Error(err))
		response.InternalError(w, "Failed to create device")
		return
	}

	response.Created(w, device)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list devices", zap.Error(err))
		response.InternalError(w, "Failed to list devices")
		return
	}

	response.Success(w, devices)
}

func (h *DeviceHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if deviceID == "" {
		response.BadRequest(w, "Device ID is required")
		return
	}

	device, err := h.service.ToggleStatus(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			response.NotFound(w, "Device not found")
			return
		}
		h.logger.Error("failed to toggle device status", zap.String("deviceID", deviceID), zap.Error(err))
		response.InternalError(w, "Failed to toggle device status")
		return
	}

	response.Success(w, device)
}
