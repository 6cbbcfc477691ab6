package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"senha-system/internal/status"
	"senha-system/services"
)

type CounterHandler struct {
	app      *pocketbase.PocketBase
	registry *services.RegistryService
}

func NewCounterHandler(app *pocketbase.PocketBase, registry *services.RegistryService) *CounterHandler {
	return &CounterHandler{
		app:      app,
		registry: registry,
	}
}

// List - all counters with their states
func (h *CounterHandler) List(e *core.RequestEvent) error {
	counters, err := h.registry.List(e.Request.Context())
	if err != nil {
		return apis.NewInternalServerError("Failed to list counters", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"counters": counters})
}

// Create - explicit admin provisioning
func (h *CounterHandler) Create(e *core.RequestEvent) error {
	var req struct {
		DisplayNumber int      `json:"display_number"`
		OperatorID    string   `json:"operator_id"`
		ServiceTypes  []string `json:"service_types"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	counter, err := h.registry.Create(e.Request.Context(), req.DisplayNumber, req.OperatorID, req.ServiceTypes)
	if err != nil {
		return apis.NewInternalServerError("Failed to create counter", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"counter": counter})
}

// Bind - attach an operator to a counter
func (h *CounterHandler) Bind(e *core.RequestEvent) error {
	var req struct {
		OperatorID string `json:"operator_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.OperatorID == "" {
		return apis.NewBadRequestError("Operator ID required", nil)
	}

	counter, err := h.registry.Bind(e.Request.Context(), e.Request.PathValue("counterId"), req.OperatorID)
	if err != nil {
		if errors.Is(err, status.ErrCounterNotFound) {
			return apis.NewNotFoundError("Counter not found", err)
		}
		return apis.NewInternalServerError("Failed to bind counter", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"counter": counter})
}

// Unbind - release the counter's operator
func (h *CounterHandler) Unbind(e *core.RequestEvent) error {
	counter, err := h.registry.Unbind(e.Request.Context(), e.Request.PathValue("counterId"))
	if err != nil {
		if errors.Is(err, status.ErrCounterNotFound) {
			return apis.NewNotFoundError("Counter not found", err)
		}
		return apis.NewInternalServerError("Failed to unbind counter", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"counter": counter})
}

// SetServiceTypes - restrict which services the counter handles
func (h *CounterHandler) SetServiceTypes(e *core.RequestEvent) error {
	var req struct {
		ServiceTypes []string `json:"service_types"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	counter, err := h.registry.SetServiceTypes(e.Request.Context(), e.Request.PathValue("counterId"), req.ServiceTypes)
	if err != nil {
		if errors.Is(err, status.ErrCounterNotFound) {
			return apis.NewNotFoundError("Counter not found", err)
		}
		return apis.NewInternalServerError("Failed to update counter", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"counter": counter})
}

// Ensure - auto-provision a counter for the logged-in operator
func (h *CounterHandler) Ensure(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	counter, err := h.registry.EnsureCounterForOperator(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apis.NewInternalServerError("Failed to provision counter", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"counter": counter})
}

// ServiceTypes - the shared service-type catalog
func (h *CounterHandler) ServiceTypes(e *core.RequestEvent) error {
	types, err := h.registry.ServiceTypes(e.Request.Context())
	if err != nil {
		return apis.NewInternalServerError("Failed to list service types", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"service_types": types})
}
