// Package app provides application lifecycle management for the tile server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gridpoint/tilecached/internal/api"
	"github.com/gridpoint/tilecached/internal/config"
	"github.com/gridpoint/tilecached/internal/logger"
)

const (
	defaultAddress      = ":8080"
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Option configures the tile server app.
type Option func(*appConfig)

type appConfig struct {
	address      string
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// WithAddress overrides the listen address.
func WithAddress(address string) Option {
	return func(cfg *appConfig) {
		if address != "" {
			cfg.address = address
		}
	}
}

// App encapsulates the compiled configuration and the HTTP server serving
// it. It provides lifecycle management and graceful shutdown.
type App struct {
	cfg        *config.Config
	httpServer *http.Server
}

// New builds an App around an already-compiled configuration.
func New(cfg *config.Config, opts ...Option) *App {
	ac := &appConfig{
		address:      defaultAddress,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(ac)
	}

	return &App{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:         ac.address,
			Handler:      api.NewServer(cfg),
			ReadTimeout:  ac.readTimeout,
			WriteTimeout: ac.writeTimeout,
			IdleTimeout:  ac.idleTimeout,
		},
	}
}

// Config returns the compiled configuration the app serves.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Start starts the HTTP server and blocks until it stops or fails.
func (a *App) Start() error {
	logger.Infof("server listening on %s", a.httpServer.Addr)
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server within the given timeout.
func (a *App) Stop(timeout time.Duration) error {
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server shutdown complete")
	return nil
}
