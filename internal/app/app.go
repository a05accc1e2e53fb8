// Package app wires the lease server process together: configuration,
// logging, the roster, the lease table, the TCP server, and the admin
// observability endpoint, with a signal-driven lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"leasegate/internal/config"
	"leasegate/internal/infrastructure"
	"leasegate/internal/license"
	"leasegate/internal/server"
	adminhttp "leasegate/internal/transport/http"
)

// Application is the lease server process container.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Table    *license.Table
	Server   *server.Server
	Registry *prometheus.Registry

	adminServer *http.Server
}

// NewApplication loads configuration and the roster and builds every
// component. Nothing is bound or started until Run.
func NewApplication(configFile string) (*Application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	roster, err := config.FileRosterLoader(cfg.Paths.RosterFile)()
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	logger.Info("roster loaded",
		slog.String("path", cfg.Paths.RosterFile),
		slog.Int("holders", len(roster)))

	table := license.NewTable(roster, license.ContentHashAuthenticator{},
		cfg.Server.ReclaimInterval, logger)

	registry := prometheus.NewRegistry()
	metrics := server.NewMetrics(registry)

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		Table:    table,
		Server:   server.New(cfg.Server, table, metrics, logger),
		Registry: registry,
	}

	if cfg.Admin.Enabled {
		handler := adminhttp.NewAdminHandler(table, logger)
		app.adminServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
			Handler: handler.Router(registry),
		}
	}

	return app, nil
}

// Run starts the TCP server and the admin endpoint, then blocks until
// SIGINT or SIGTERM and shuts both down within the configured grace
// period.
func (app *Application) Run() error {
	if err := app.Server.Start(); err != nil {
		return err
	}

	adminErr := make(chan error, 1)
	if app.adminServer != nil {
		go func() {
			app.Logger.Info("admin endpoint listening",
				slog.String("addr", app.adminServer.Addr))
			if err := app.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				adminErr <- err
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		app.Logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-adminErr:
		app.Logger.Error("admin endpoint failed", slog.String("error", err.Error()))
	}

	return app.Shutdown()
}

// Shutdown stops the servers within the configured grace period.
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if app.adminServer != nil {
		if err := app.adminServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := app.Server.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	infrastructure.CloseLogFile()
	return firstErr
}
