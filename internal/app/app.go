package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"agripulse/internal/config"
	"agripulse/internal/infrastructure"
	custommiddleware "agripulse/internal/middleware"
	"agripulse/internal/services"
	"agripulse/internal/store"
	handlers "agripulse/internal/transport/http"
)

// Application is the composed service container: configuration, logging,
// telemetry, the loaded observation store and the HTTP surface.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         *store.Store
	Analysis      *services.AnalysisService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
}

// NewApplication builds the application with dependency injection: loads
// configuration, initializes logging and telemetry, constructs the
// observation store from the configured source and wires the HTTP router.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.InfoContext(ctx, "application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion),
	)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("initialize OpenTelemetry: %w", err)
	}

	loader := store.NewLoader(sourceFunc(cfg.Data))
	st, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observation store: %w", err)
	}

	metrics := services.NewMetrics("agripulse")
	analysisService := services.NewAnalysisService(st, logger,
		services.WithTracer(otelProviders.Tracer),
		services.WithMetrics(metrics),
		services.WithDefaultWindow(cfg.Analysis.DefaultWindow),
	)

	app := &Application{
		Config:        cfg,
		Store:         st,
		Analysis:      analysisService,
		Logger:        logger,
		OTelProviders: otelProviders,
	}
	app.Router = app.buildRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// sourceFunc binds the configured data source to a loader source.
func sourceFunc(cfg config.DataConfig) store.SourceFunc {
	return func(ctx context.Context) (*store.Store, error) {
		switch cfg.Source {
		case "zip":
			return store.LoadZip(ctx, cfg.Path)
		case "excel":
			return store.LoadExcel(ctx, cfg.Path)
		case "postgres":
			db, err := store.OpenPostgres(ctx, cfg.DSN)
			if err != nil {
				return nil, err
			}
			defer db.Close()
			return store.LoadPostgres(ctx, db, cfg.Table)
		default:
			return store.LoadCSV(ctx, cfg.Path)
		}
	}
}

func (a *Application) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommiddleware.StructuredLogger(a.Logger))
	r.Use(custommiddleware.Recoverer(a.Logger))
	if a.Config.Server.RateLimit.Enabled {
		limiter := custommiddleware.NewRateLimiter(
			a.Config.Server.RateLimit.RPS,
			a.Config.Server.RateLimit.Burst,
			a.Logger,
		)
		r.Use(limiter.Handler)
	}

	analysisHandler := handlers.NewAnalysisHandler(a.Analysis, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Store, a.Logger)

	r.Route("/api", func(r chi.Router) {
		analysisHandler.RegisterRoutes(r)
		healthHandler.RegisterRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	return r
}

// Run starts the HTTP server and blocks until shutdown.
func (a *Application) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}

	a.Logger.Info("application stopped")
	return nil
}
