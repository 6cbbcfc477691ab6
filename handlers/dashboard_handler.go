package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"senha-system/models"
	"senha-system/services"
)

type DashboardHandler struct {
	app      *pocketbase.PocketBase
	ledger   *services.LedgerService
	registry *services.RegistryService
	archive  *services.ArchiveService
}

func NewDashboardHandler(
	app *pocketbase.PocketBase,
	ledger *services.LedgerService,
	registry *services.RegistryService,
	archive *services.ArchiveService,
) *DashboardHandler {
	return &DashboardHandler{
		app:      app,
		ledger:   ledger,
		registry: registry,
		archive:  archive,
	}
}

// Dashboard - everything the public display and supervisor screen need in
// one call: waiting queues, counter states and wait statistics.
func (h *DashboardHandler) Dashboard(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	waiting, err := h.ledger.ListWaiting(ctx, "")
	if err != nil {
		return apis.NewInternalServerError("Failed to list waiting tickets", err)
	}

	counters, err := h.registry.List(ctx)
	if err != nil {
		return apis.NewInternalServerError("Failed to list counters", err)
	}

	stats, err := h.archive.WaitStats(ctx)
	if err != nil {
		return apis.NewInternalServerError("Failed to compute wait stats", err)
	}

	nowServing := make([]models.Counter, 0, len(counters))
	for _, c := range counters {
		if c.State == models.CounterBusy {
			nowServing = append(nowServing, c)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"waiting":     waiting,
		"counters":    counters,
		"now_serving": nowServing,
		"wait_stats":  stats,
	})
}
