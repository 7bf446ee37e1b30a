package main

import (
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/sitewerks/spectrum-sync/internal/config"
	"github.com/sitewerks/spectrum-sync/internal/database"
	"github.com/sitewerks/spectrum-sync/internal/handlers"
	"github.com/sitewerks/spectrum-sync/internal/logging"
	"github.com/sitewerks/spectrum-sync/internal/middleware"
	"github.com/sitewerks/spectrum-sync/internal/scheduler"
	"github.com/sitewerks/spectrum-sync/internal/services"
	"github.com/sitewerks/spectrum-sync/internal/spectrum"
	"github.com/sitewerks/spectrum-sync/internal/types"

	_ "github.com/sitewerks/spectrum-sync/docs/api" // Swagger docs
)

// @title Spectrum Sync API
// @version 1.0.0
// @description Spectrum ERP job synchronization service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/sitewerks/spectrum-sync

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	log := logging.New(cfg)

	// Connect to database and run auto-migrations
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Spectrum SOAP client with shared endpoint cache
	client := spectrum.NewClient(
		cfg.SpectrumBaseURL,
		cfg.SpectrumAuthID,
		time.Duration(cfg.SpectrumTimeoutSecs)*time.Second,
		spectrum.NewEndpointCache(),
		log,
	)

	syncSvc := &services.SyncService{
		DB:     db,
		Client: client,
		Cfg:    cfg,
		Log:    log,
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("spectrum_sync")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	syncHandler := &handlers.SyncHandler{DB: db, Sync: syncSvc}
	projectHandler := &handlers.ProjectHandler{DB: db}
	healthHandler := &handlers.HealthHandler{DB: db, Cfg: cfg}

	api.Get("/health", healthHandler.GetHealth)

	// Sync routes (trigger is admin-only)
	api.Post("/sync", middleware.AuthAdmin(cfg), syncHandler.TriggerSync)
	api.Get("/sync/runs", syncHandler.ListRuns)
	api.Get("/sync/runs/:id", syncHandler.GetRun)

	// Project routes
	api.Get("/projects", projectHandler.ListProjects)
	api.Get("/projects/:jobNumber", projectHandler.GetProject)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// The Authorizer client is initialized lazily by the auth middleware
	log.Info("Authorizer will be initialized on first authenticated request")

	// Scheduled syncs
	var sched *scheduler.Scheduler
	if cfg.SyncSchedule != "" {
		sched = scheduler.New(syncSvc, log)
		if err := sched.Start(cfg.SyncSchedule); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	} else {
		log.Warn("SYNC_SCHEDULE is empty, scheduled syncs disabled")
	}

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Gracefully shutting down...")
		if sched != nil {
			sched.Stop()
		}
		_ = app.Shutdown()
	}()

	// Start server
	log.Infof("Starting server on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Info("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
