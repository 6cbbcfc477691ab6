package cmd

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"senha-system/config"
	"senha-system/handlers"
	_ "senha-system/migrations"
	"senha-system/models"
	"senha-system/monitoring"
	"senha-system/notify"
	"senha-system/security"
	"senha-system/services"
	"senha-system/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	monitor := monitoring.NewMonitor(redisClient)
	bus := services.NewBusService(redisClient, cfg)
	policyService := services.NewPolicyService(redisClient, bus, cfg)
	ledger := services.NewLedgerService(redisClient, policyService, bus, monitor)
	registry := services.NewRegistryService(redisClient, bus)
	admission := services.NewAdmissionService(ledger, policyService)
	dispatcher := services.NewDispatcherService(redisClient, ledger, policyService, registry, bus, monitor, cfg)
	announcer := services.NewAnnounceService(redisClient, bus, policyService, monitor, notify.New(cfg), cfg)
	limiter := security.NewRateLimiter(redisClient, cfg.IssueRateLimit, time.Minute)

	// Initialize handlers
	ticketHandler := handlers.NewTicketHandler(app, ledger, dispatcher, admission, limiter)
	counterHandler := handlers.NewCounterHandler(app, registry)
	policyHandler := handlers.NewPolicyHandler(app, policyService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start cross-instance plumbing
	go bus.Run(ctx)
	announcer.Start()
	defer announcer.Stop()

	if cfg.EnableMetrics {
		go monitor.Run(ctx)
		go startOpsServer(cfg)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncServiceCatalog(app, registry)

		archive := services.NewArchiveService(redisClient, app.DB(), cfg)
		go archive.Run(ctx)

		dashboardHandler := handlers.NewDashboardHandler(app, ledger, registry, archive)

		// Ticket endpoints
		e.Router.POST("/api/v1/tickets", ticketHandler.Issue)
		e.Router.GET("/api/v1/tickets/waiting", ticketHandler.ListWaiting)
		e.Router.GET("/api/v1/tickets/lookup", ticketHandler.Lookup)
		e.Router.GET("/api/v1/tickets/{ticketId}/can-call", ticketHandler.CanCall)

		// Dispatch endpoints
		e.Router.POST("/api/v1/tickets/{ticketId}/call", ticketHandler.Call)
		e.Router.POST("/api/v1/tickets/{ticketId}/begin", ticketHandler.BeginService)
		e.Router.POST("/api/v1/tickets/{ticketId}/finish", ticketHandler.Finish)
		e.Router.POST("/api/v1/tickets/{ticketId}/no-show", ticketHandler.MarkNoShow)
		e.Router.POST("/api/v1/tickets/{ticketId}/recall", ticketHandler.Recall)

		// Counter endpoints
		e.Router.GET("/api/v1/counters", counterHandler.List)
		e.Router.POST("/api/v1/counters", counterHandler.Create)
		e.Router.POST("/api/v1/counters/{counterId}/bind", counterHandler.Bind)
		e.Router.POST("/api/v1/counters/{counterId}/unbind", counterHandler.Unbind)
		e.Router.POST("/api/v1/counters/{counterId}/service-types", counterHandler.SetServiceTypes)
		e.Router.POST("/api/v1/counters/ensure", counterHandler.Ensure)
		e.Router.GET("/api/v1/service-types", counterHandler.ServiceTypes)

		// Policy endpoints
		e.Router.GET("/api/v1/policy", policyHandler.Get)
		e.Router.PUT("/api/v1/policy", policyHandler.Put)
		e.Router.POST("/api/v1/policy/preview", policyHandler.Preview)

		// Dashboard
		e.Router.GET("/api/v1/dashboard", dashboardHandler.Dashboard)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}

// syncServiceCatalog mirrors the durable service-type catalog into the hot
// store, where counter auto-provisioning and issuance read it.
func syncServiceCatalog(app *pocketbase.PocketBase, registry *services.RegistryService) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id, name, expected_minutes FROM service_types WHERE active = 1",
	).All(&records); err != nil {
		log.Printf("Error fetching service types: %v", err)
		return
	}

	for _, record := range records {
		minutes, _ := strconv.Atoi(record["expected_minutes"].String)
		st := &models.ServiceType{
			ID:               record["id"].String,
			Name:             record["name"].String,
			ExpectedDuration: time.Duration(minutes) * time.Minute,
		}
		if err := registry.UpsertServiceType(ctx, st); err != nil {
			log.Printf("Error syncing service type %s: %v", st.ID, err)
		}
	}

	log.Printf("Synced %d service types to Redis", len(records))
}

// startOpsServer exposes prometheus metrics on a separate port.
func startOpsServer(cfg *config.Config) {
	e := echo.New()
	e.GET("/metrics", func(c echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})
	e.GET("/livez", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	server := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: e,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("ops server", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
