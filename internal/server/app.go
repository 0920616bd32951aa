// Package server wires configuration, the authentication core and the HTTP
// transport into a runnable application with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/server/config"
	"github.com/dmitrijs2005/cofrapauth/internal/server/httpapi"
)

type App struct {
	config *config.Config
	logger logging.Logger
	core   *Core
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	core, err := NewCore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("core init error: %w", err)
	}

	h := httpapi.NewHandler(core.Provisioning, core.Enrollment, core.Authenticator, core.DB, cfg.QRCodeSize, logger)
	router := httpapi.NewRouter(h, cfg.CORSAllowedOrigins, logger)

	return &App{
		config: cfg,
		logger: logger,
		core:   core,
		server: httpapi.NewServer(cfg.HTTPAddr, router, cfg.ShutdownTimeout, logger),
	}, nil
}

// Handler exposes the routed HTTP handler.
func (app *App) Handler() http.Handler {
	return app.server.Handler()
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives, then
// drains requests and closes the pool.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "starting app", "addr", app.config.HTTPAddr)

	runErr := app.server.Run(ctx)

	if err := app.core.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
	app.logger.Info(ctx, "app stopped")

	return runErr
}
