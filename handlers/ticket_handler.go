package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"senha-system/internal/status"
	"senha-system/security"
	"senha-system/services"
)

type TicketHandler struct {
	app        *pocketbase.PocketBase
	ledger     *services.LedgerService
	dispatcher *services.DispatcherService
	admission  *services.AdmissionService
	limiter    *security.RateLimiter
}

func NewTicketHandler(
	app *pocketbase.PocketBase,
	ledger *services.LedgerService,
	dispatcher *services.DispatcherService,
	admission *services.AdmissionService,
	limiter *security.RateLimiter,
) *TicketHandler {
	return &TicketHandler{
		app:        app,
		ledger:     ledger,
		dispatcher: dispatcher,
		admission:  admission,
		limiter:    limiter,
	}
}

// Issue - kiosk endpoint printing a new ticket
func (h *TicketHandler) Issue(e *core.RequestEvent) error {
	var req struct {
		Category    string `json:"category"`
		ServiceType string `json:"service_type"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	if !h.limiter.Allow(ctx, e.RealIP()) {
		return apis.NewApiError(http.StatusTooManyRequests, "Too many tickets requested, slow down", nil)
	}

	ticket, err := h.ledger.Issue(ctx, req.Category, req.ServiceType)
	if err != nil {
		if errors.Is(err, status.ErrInvalidCategory) {
			return apis.NewBadRequestError("Unknown ticket category", err)
		}
		return apis.NewInternalServerError("Failed to issue ticket", err)
	}

	policy, err := h.dispatcher.Policy.Get(ctx)
	if err != nil {
		return apis.NewInternalServerError("Failed to load policy", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket": ticket,
		"text":   services.Format(ticket, policy),
	})
}

// ListWaiting - waiting tickets, optionally filtered by category
func (h *TicketHandler) ListWaiting(e *core.RequestEvent) error {
	category := e.Request.URL.Query().Get("category")

	tickets, err := h.ledger.ListWaiting(e.Request.Context(), category)
	if err != nil {
		if errors.Is(err, status.ErrInvalidCategory) {
			return apis.NewBadRequestError("Unknown ticket category", err)
		}
		return apis.NewInternalServerError("Failed to list waiting tickets", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"tickets": tickets})
}

// Lookup - resolve rendered ticket text (e.g. "P001") for manual recall
func (h *TicketHandler) Lookup(e *core.RequestEvent) error {
	text := e.Request.URL.Query().Get("text")
	if text == "" {
		return apis.NewBadRequestError("Ticket text required", nil)
	}

	ticket, err := h.ledger.FindBySequenceText(e.Request.Context(), text)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return apis.NewNotFoundError("No ticket matches that text", err)
		}
		return apis.NewInternalServerError("Failed to look up ticket", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ticket": ticket})
}

// CanCall - read-only admission check for pre-emptive UI graying
func (h *TicketHandler) CanCall(e *core.RequestEvent) error {
	ticketID := e.Request.PathValue("ticketId")

	decision, err := h.admission.CanCall(e.Request.Context(), ticketID)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return apis.NewNotFoundError("Ticket not found", err)
		}
		return apis.NewInternalServerError("Failed to evaluate admission", err)
	}

	return e.JSON(http.StatusOK, decision)
}

// Call - transition a waiting ticket to calling on a counter
func (h *TicketHandler) Call(e *core.RequestEvent) error {
	ticketID := e.Request.PathValue("ticketId")

	var req struct {
		CounterID string `json:"counter_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.CounterID == "" {
		return apis.NewBadRequestError("Counter ID required", nil)
	}

	ticket, err := h.dispatcher.Call(e.Request.Context(), ticketID, req.CounterID)
	if err != nil {
		return rejectionResponse(e, err, "Failed to call ticket")
	}

	return e.JSON(http.StatusOK, map[string]any{"ticket": ticket})
}

// BeginService - explicit calling -> serving confirmation
func (h *TicketHandler) BeginService(e *core.RequestEvent) error {
	ticket, err := h.dispatcher.BeginService(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return rejectionResponse(e, err, "Failed to begin service")
	}
	return e.JSON(http.StatusOK, map[string]any{"ticket": ticket})
}

// Finish - close out a ticket and free its counter
func (h *TicketHandler) Finish(e *core.RequestEvent) error {
	ticket, err := h.dispatcher.Finish(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return rejectionResponse(e, err, "Failed to finish ticket")
	}
	return e.JSON(http.StatusOK, map[string]any{"ticket": ticket})
}

// MarkNoShow - the holder never appeared
func (h *TicketHandler) MarkNoShow(e *core.RequestEvent) error {
	ticket, err := h.dispatcher.MarkNoShow(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return rejectionResponse(e, err, "Failed to mark no-show")
	}
	return e.JSON(http.StatusOK, map[string]any{"ticket": ticket})
}

// Recall - repeat the announcement for an already-called ticket
func (h *TicketHandler) Recall(e *core.RequestEvent) error {
	ticket, err := h.dispatcher.Recall(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return rejectionResponse(e, err, "Failed to recall ticket")
	}
	return e.JSON(http.StatusOK, map[string]any{"ticket": ticket})
}

// rejectionResponse maps structured rejections onto HTTP statuses while
// keeping the rejection body intact for the UI.
func rejectionResponse(e *core.RequestEvent, err error, fallback string) error {
	rej, ok := status.AsRejection(err)
	if !ok {
		return apis.NewInternalServerError(fallback, err)
	}

	httpStatus := http.StatusConflict
	switch rej.Code {
	case status.CodeTicketNotFound, status.CodeCounterNotFound:
		httpStatus = http.StatusNotFound
	case status.CodeStarvationGuard:
		httpStatus = http.StatusUnprocessableEntity
	}

	return e.JSON(httpStatus, map[string]any{"rejection": rej})
}
