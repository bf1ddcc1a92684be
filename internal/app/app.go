// Package app assembles the activation engine: configuration, logging, the
// state machine, the event hub, and the local HTTP server the UI talks to.
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
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"beirutpos/internal/activation"
	"beirutpos/internal/bus"
	"beirutpos/internal/config"
	"beirutpos/internal/fingerprint"
	"beirutpos/internal/infrastructure"
	"beirutpos/internal/license"
	"beirutpos/internal/middleware"
	handlers "beirutpos/internal/transport/http"
)

// Version is set at build time.
var Version = "dev"

// Application is the engine's dependency container.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Manager *activation.Manager
	Hub     *bus.Hub
	Router  *chi.Mux
	Server  *http.Server
}

// hubPublisher adapts the event hub to the manager's Publisher interface.
type hubPublisher struct {
	hub *bus.Hub
}

func (p *hubPublisher) PublishActivationChange(status activation.Status) {
	p.hub.Broadcast(bus.TypeActivationChanged, status)
}

// New builds a fully wired application.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("preparing directories: %w", err)
	}

	logger.Info("engine starting",
		slog.String("version", Version),
		slog.String("activation_file", cfg.Paths.ActivationFile))

	secret := cfg.SigningSecret()
	if secret == nil {
		secret = []byte(license.EmbeddedSecret)
	}

	store := activation.NewStore(cfg.Paths.ActivationFile, cfg.Paths.SaltFile, logger)
	deriver := fingerprint.New(logger)
	hub := bus.NewHub(logger)
	manager := activation.NewManager(store, deriver, secret, logger,
		activation.WithPublisher(&hubPublisher{hub: hub}))

	app := &Application{
		Config:  cfg,
		Logger:  logger,
		Manager: manager,
		Hub:     hub,
	}
	app.Router = app.buildRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Startup status goes straight to the log so an operator can see at a
	// glance why the login screen is blocked.
	status, err := manager.Status(context.Background())
	if err != nil {
		logger.Warn("could not read activation status at startup",
			slog.String("error", err.Error()))
	} else {
		logger.Info("activation status at startup",
			slog.String("state", string(status.State)),
			slog.String("method", string(status.Method)))
	}

	return app, nil
}

func (a *Application) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recoverer(a.Logger))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	gate := middleware.NewGate(a.Manager, a.Logger)
	r.Use(gate.Handler)

	r.Get("/healthz", a.handleHealth)
	r.Get("/ws", a.Hub.ServeWS)

	activationHandler := handlers.NewActivationHandler(a.Manager, a.Logger)
	r.Route("/api/activation", func(r chi.Router) {
		if a.Config.Security.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			)
			r.With(limiter.Handler).Mount("/", activationHandler.Routes())
		} else {
			r.Mount("/", activationHandler.Routes())
		}
	})

	return r
}

func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// Run serves until interrupted, then shuts down gracefully.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.Logger.Info("listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		a.Hub.Close()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err := group.Wait()
	infrastructure.CloseLogFile()
	return err
}
