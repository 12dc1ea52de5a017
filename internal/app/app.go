// Package app wires configuration, logging, services and the HTTP router
// into a runnable application with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"aegis/internal/auth"
	"aegis/internal/config"
	"aegis/internal/infrastructure"
	"aegis/internal/loader"
	customMiddleware "aegis/internal/middleware"
	"aegis/internal/services"
	handlers "aegis/internal/transport/http"
)

const (
	// Version is reported by the health endpoint.
	Version = "1.2.0"
	// AppName identifies the service in startup logs.
	AppName = "AEGIS Biomedical Analytics"
)

// Application is the dependency container for the analytics server.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Router   *chi.Mux
	Server   *http.Server
	Datasets *services.DatasetService
}

// New builds the application from configuration.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds the application from an already-validated config,
// which keeps construction testable.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	ldr := loader.New(logger, loader.Config{ScratchDir: cfg.Upload.ScratchDir})
	datasets := services.NewDatasetService(logger, ldr, cfg.Upload)

	authority := auth.NewTokenAuthority(cfg.Auth.SigningKey, cfg.Auth.TokenTTL)
	var verifier auth.CredentialVerifier
	if cfg.Auth.VerifyURL != "" {
		verifier = auth.NewRemoteVerifier(cfg.Auth.VerifyURL, 10*time.Second)
	}

	router := buildRouter(cfg, logger, datasets, authority, verifier)

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		Router:   router,
		Datasets: datasets,
		Server: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			IdleTimeout:    cfg.Server.IdleTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
	}
	return app, nil
}

// buildRouter assembles the middleware chain and mounts the API handlers.
func buildRouter(
	cfg *config.Config,
	logger *slog.Logger,
	datasets *services.DatasetService,
	authority *auth.TokenAuthority,
	verifier auth.CredentialVerifier,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(logger))
	r.Use(customMiddleware.Recoverer(logger))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	if cfg.Security.RateLimit.Enabled {
		limiter := customMiddleware.NewRateLimiter(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst)
		r.Use(limiter.Handler)
	}

	datasetHandler := handlers.NewDatasetHandler(datasets, logger, cfg.Upload.MaxBytes)
	healthHandler := handlers.NewHealthHandler(Version)
	authHandler := handlers.NewAuthHandler(verifier, authority, cfg.Auth.TokenTTL, logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/healthz", healthHandler.Routes())
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			gated := cfg.Auth.Enabled && !cfg.Auth.DevMode
			r.Use(auth.Middleware(authority, gated, logger))
			r.Mount("/datasets", datasetHandler.Routes())
		})
	})

	return r
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then shuts down gracefully within the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		a.Logger.Info("shutting down")
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if cerr := infrastructure.CloseLogFile(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
