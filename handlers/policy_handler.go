package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"senha-system/internal/status"
	"senha-system/models"
	"senha-system/services"
)

type PolicyHandler struct {
	app    *pocketbase.PocketBase
	policy *services.PolicyService
}

func NewPolicyHandler(app *pocketbase.PocketBase, policy *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{
		app:    app,
		policy: policy,
	}
}

// Get - the active system policy
func (h *PolicyHandler) Get(e *core.RequestEvent) error {
	policy, err := h.policy.Get(e.Request.Context())
	if err != nil {
		return apis.NewInternalServerError("Failed to load policy", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"policy": policy})
}

// Put - replace the system policy (settings screens)
func (h *PolicyHandler) Put(e *core.RequestEvent) error {
	var req struct {
		Policy models.SystemPolicy `json:"policy"`
		PIN    string              `json:"pin"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.policy.Put(e.Request.Context(), &req.Policy, req.PIN); err != nil {
		switch {
		case errors.Is(err, status.ErrBadPIN):
			return apis.NewForbiddenError("Admin PIN mismatch", err)
		case errors.Is(err, status.ErrInvalidPolicy):
			return apis.NewBadRequestError("Invalid template or announcement mode", err)
		}
		return apis.NewInternalServerError("Failed to store policy", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"policy": req.Policy})
}

// Preview - render a sample ticket under a candidate policy without
// touching the ledger
func (h *PolicyHandler) Preview(e *core.RequestEvent) error {
	var req struct {
		Policy         models.SystemPolicy `json:"policy"`
		Category       string              `json:"category"`
		SequenceNumber int                 `json:"sequence_number"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Category == "" {
		req.Category = models.CategoryStandard
	}
	if req.SequenceNumber == 0 {
		req.SequenceNumber = 1
	}

	sample := models.Ticket{
		Category:       req.Category,
		SequenceNumber: req.SequenceNumber,
	}
	return e.JSON(http.StatusOK, map[string]any{
		"text": services.Format(&sample, &req.Policy),
	})
}
