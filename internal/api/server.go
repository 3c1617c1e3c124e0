// Package api provides the HTTP front-ends for the compiled configuration:
// one subrouter per enabled protocol service, resolving tilesets from the
// read-only Config snapshot.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gridpoint/tilecached/internal/config"
	"github.com/gridpoint/tilecached/internal/locking"
	"github.com/gridpoint/tilecached/internal/logger"
	"github.com/gridpoint/tilecached/internal/service"
)

// ServerOption configures the tile API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer creates the HTTP router for the compiled configuration. Only the
// protocol services the configuration enables are mounted.
func NewServer(cfg *config.Config, opts ...ServerOption) *chi.Mux {
	sc := &serverConfig{}
	for _, opt := range opts {
		opt(sc)
	}

	locks := locking.NewManager(cfg.LockDir)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware)
	for _, mw := range sc.middlewares {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.Services.Enabled(service.WMS) {
		r.Mount("/wms", wmsRouter(cfg, locks))
	}
	if cfg.Services.Enabled(service.TMS) {
		r.Mount("/tms", tmsRouter(cfg, locks))
	}

	return r
}

// LoggingMiddleware logs HTTP requests.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debugf("HTTP %s %s %d %s %s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}
