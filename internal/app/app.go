package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"gaenroll/internal/cache"
	"gaenroll/internal/config"
	"gaenroll/internal/errors"
	"gaenroll/internal/exporter"
	"gaenroll/internal/gadoe"
	"gaenroll/internal/infrastructure"
	customMiddleware "gaenroll/internal/middleware"
	"gaenroll/internal/services"
	handlers "gaenroll/internal/transport/http"
	"gaenroll/pkg/contracts/domain"
)

const (
	VERSION  = "v1.2.0"
	REPO_URL = "https://github.com/gadoe-data/gaenroll"
	AppName  = "GA Enrollment Service"
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	// Generate a deterministic build ID based on version and time
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config            *config.Config
	Router            *chi.Mux
	Server            *http.Server
	EnrollmentService *services.EnrollmentService
	HealthService     *services.HealthService
	Logger            *slog.Logger
	Services          *ServiceContainer
	OTelProviders     *infrastructure.OTelProviders

	paths            *config.Paths
	otelMiddleware   *customMiddleware.OTelMiddleware
	metricsCollector *infrastructure.SystemMetricsCollector
	collectorCancel  context.CancelFunc
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Enrollment *services.EnrollmentService
	Health     *services.HealthService
	Store      cache.Store
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize the single application logger
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Log startup information
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION))

	// Resolve and prepare all filesystem paths at startup
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}

	logger.Info("Ensuring required directories exist")
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	// Initialize OpenTelemetry
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Create application
	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		paths:         paths,
	}

	// Initialize services in order
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Setup router
	app.setupRouter()

	// Create HTTP server
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	// OTel middleware is created first so the service layer shares its
	// metric instruments with the HTTP layer.
	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		a.otelMiddleware = otelMiddleware
	}

	var metrics *infrastructure.BusinessMetrics
	if a.otelMiddleware != nil {
		metrics = a.otelMiddleware.BusinessMetrics()
	}

	// System metrics collector for runtime stats
	collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to initialize system metrics collector: %w", err)
	}
	a.metricsCollector = collector

	// Dataset cache store. The configured dir is relative to the
	// executable unless given as an absolute path.
	cacheDir := a.Config.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(a.paths.ExecutableDir, cacheDir)
	}
	store := cache.NewFileStore(cacheDir, infrastructure.WithComponent(a.Logger, "cache"))

	// GADOE download portal client and URL resolver
	client := gadoe.NewClient(a.Config.Source, infrastructure.WithComponent(a.Logger, "gadoe_client"))
	resolver := gadoe.NewResolver(client, infrastructure.WithComponent(a.Logger, "gadoe_resolver"))

	// Enrollment acquisition service
	bounds := domain.YearRange{
		MinYear: a.Config.Years.Min,
		MaxYear: a.Config.Years.Max,
	}
	enrollmentService := services.NewEnrollmentService(bounds, resolver, client, store, metrics, a.Logger)
	a.EnrollmentService = enrollmentService

	// Health service with build information
	healthService := services.NewHealthServiceWithBuildInfo(
		VERSION,
		REPO_URL,
		BuildTime,
		BuildID,
		a.Config.Paths,
		store,
		collector,
		a.Logger,
	)
	a.HealthService = healthService

	// Create service container
	a.Services = &ServiceContainer{
		Enrollment: enrollmentService,
		Health:     healthService,
		Store:      store,
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware ordering: RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	if a.otelMiddleware != nil {
		r.Use(a.otelMiddleware.Handler)
	}

	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	// CORS middleware
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	// Rate limiting
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	a.setupAPIRoutes(r)

	// Operational endpoints at the root for probes and scrapers
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Get("/version", healthHandler.Version)

	// Prometheus metrics endpoint (outside the timeout group for performance)
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		errorHandler := errors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(errorHandler.Middleware)
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(customMiddleware.Compress(5))

		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)

		// Enrollment handler
		enrollmentExporter := exporter.NewEnrollmentExporter(a.paths)
		enrollmentHandler := handlers.NewEnrollmentHandler(a.EnrollmentService, enrollmentExporter, a.Logger, errorHandler)
		r.Mount("/enrollment", enrollmentHandler.Routes())

		// Cache handler
		cacheHandler := handlers.NewCacheHandler(a.EnrollmentService, a.Logger, errorHandler)
		r.Mount("/cache", cacheHandler.Routes())

		// Health handler
		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
	})
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	config := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}

	if a.isDevelopmentMode() {
		config.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
		}
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", config.AllowedOrigins))
	} else {
		config.AllowedOrigins = a.Config.Security.AllowedOrigins
		a.Logger.Info("CORS configured for production mode",
			slog.Any("allowed_origins", config.AllowedOrigins))
	}

	return config
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if a.Config.Logging.Development {
		return true
	}
	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}
	if env := os.Getenv("ENVIRONMENT"); env == "development" {
		return true
	}
	return false
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("executable_dir", a.paths.ExecutableDir),
		slog.String("data_dir", a.paths.DataDir),
		slog.String("cache_dir", a.paths.CacheDir),
		slog.String("exports_dir", a.paths.ExportsDir),
		slog.String("logs_dir", a.paths.LogsDir))

	// Start background metrics collection
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	a.collectorCancel = collectorCancel
	go a.metricsCollector.Start(collectorCtx)

	// Start server
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	// Perform health check on critical paths
	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Stop server
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Stop background metrics collection
	if a.collectorCancel != nil {
		a.collectorCancel()
	}
	if a.metricsCollector != nil {
		a.metricsCollector.Stop()
	}

	// Shutdown OpenTelemetry providers
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start application
	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	// Wait for interrupt or server failure
	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Shutdown requested")
	}

	// Graceful shutdown
	return a.Stop(context.Background())
}

// performStartupHealthCheck performs health checks on critical paths and resources
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	// Check critical directories are writable
	directories := map[string]string{
		"Data":    a.paths.DataDir,
		"Cache":   a.paths.CacheDir,
		"Exports": a.paths.ExportsDir,
		"Logs":    a.paths.LogsDir,
	}

	for name, dir := range directories {
		// Try to create a test file to verify write access
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
