package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"signet/internal/config"
	"signet/internal/infrastructure"
	"signet/internal/license"
	custommw "signet/internal/middleware"
	"signet/internal/services"
	handlers "signet/internal/transport/http"
	"signet/pkg/contracts"
)

const systemMetricsInterval = 30 * time.Second

// Application is the composition root. It wires configuration, key
// material, observability, services, handlers and the HTTP server
// together and owns their lifecycle.
type Application struct {
	Config         *config.Config
	Router         *chi.Mux
	Server         *http.Server
	Logger         *slog.Logger
	OTelProviders  *infrastructure.OTelProviders
	Metrics        *infrastructure.BusinessMetrics
	Core           *license.Service
	LicenseService services.LicenseService
	HealthService  *services.HealthService
	Gate           *custommw.LicenseValidator
	SystemMetrics  *infrastructure.SystemMetricsCollector
}

// NewApplication creates a fully wired application instance.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the service layer on top of the configured
// key material. Missing keys are not fatal: the server starts in a
// degraded mode and reports it through the status and readiness
// endpoints instead.
func (a *Application) initializeServices() error {
	keyring, err := a.Config.Keys.Keyring()
	if err != nil {
		return fmt.Errorf("failed to load key material: %w", err)
	}

	switch {
	case keyring.HasSecret():
		a.Logger.Info("license signing and verification enabled")
	case keyring.HasPublic():
		a.Logger.Info("license verification enabled, signing disabled",
			slog.String("reason", "no secret key configured"))
	default:
		a.Logger.Warn("no key material configured",
			slog.String("action", "license endpoints will refuse requests until keys are provided"))
	}

	a.Core = license.NewService(keyring, license.SystemClock, a.Logger)
	a.LicenseService = services.NewLicenseService(a.Core, license.SystemClock, a.Metrics, a.Logger)
	a.HealthService = services.NewHealthService(contracts.Version, a.LicenseService, a.Logger)

	gate := custommw.NewLicenseValidator(a.Core, a.Logger)
	gate.SetMetrics(a.Metrics)
	if a.Config.Gate.CacheTTL > 0 && a.Config.Gate.CacheSize > 0 {
		gate.SetCache(a.Config.Gate.CacheTTL, a.Config.Gate.CacheSize)
	}
	a.Gate = gate

	collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, systemMetricsInterval)
	if err != nil {
		a.Logger.Warn("system metrics collector unavailable", slog.String("error", err.Error()))
	} else {
		a.SystemMetrics = collector
	}

	return nil
}

// setupRouter configures the HTTP router. RequestID and RealIP run
// first so every later middleware sees the request identity; the
// license gate runs last, directly in front of the routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	r.Group(func(r chi.Router) {
		otelMW := custommw.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		r.Use(otelMW.Handler)
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)
		r.Use(custommw.CORS(a.corsConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(a.Gate.Handler)

		a.setupAPIRoutes(r)
	})

	// Prometheus scraping stays outside the middleware group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures the API endpoints.
func (a *Application) setupAPIRoutes(r chi.Router) {
	validation := custommw.NewValidationMiddleware(a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(chimiddleware.Timeout(a.Config.Server.ReadTimeout))
		r.Use(custommw.ContentTypeValidator("application/json"))
		r.Use(validation.ValidateRequest)

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/version", healthHandler.Version)

		licenseHandler := handlers.NewLicenseHandler(a.LicenseService, a.Logger)
		r.Mount("/license", licenseHandler.Routes())

		// Everything under /api/gated requires an admitted license token.
		claimsHandler := handlers.NewClaimsHandler(a.Logger)
		r.Route("/gated", func(r chi.Router) {
			r.Get("/claims", claimsHandler.Claims)
		})
	})
}

// corsConfig derives the CORS policy from the security configuration.
func (a *Application) corsConfig() custommw.CORSConfig {
	return custommw.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server around the router.
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

// Run serves until the process receives SIGINT or SIGTERM, then shuts
// down gracefully.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves until ctx is cancelled. It returns once the server
// has drained or the shutdown timeout has elapsed.
func (a *Application) RunContext(ctx context.Context) error {
	// Lifecycle log lines share one trace ID for correlation
	ctx = infrastructure.EnsureTraceID(ctx)

	if a.SystemMetrics != nil {
		go a.SystemMetrics.Start(ctx)
		defer a.SystemMetrics.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "http server listening",
			slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Stop()
	})

	return g.Wait()
}

// Stop drains the HTTP server and flushes observability providers.
func (a *Application) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.Info("shutting down application")

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("OpenTelemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	a.Logger.Info("application shutdown complete")
	return nil
}
