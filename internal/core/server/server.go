// Package server assembles the HTTP stack and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/viirs-active-fires/internal/cache"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/config"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/health"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/middleware"
	"github.com/mohammed-shakir/viirs-active-fires/internal/core/router"
)

type Deps struct {
	APIs  []*router.Handler
	Cache cache.Interface
	// Ready is nil when nothing gates readiness.
	Ready   health.ReadinessReporter
	Started time.Time
}

// NewHandler builds the root router.
func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	if d.Cache == nil {
		d.Cache = cache.None{}
	}
	if d.Started.IsZero() {
		d.Started = time.Now()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/healthcheck", health.Uptime(d.Started))
	r.Get("/healthz", health.Liveness())
	if d.Ready != nil {
		r.Get("/readyz", health.Readiness(d.Ready))
	}
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(middleware.ResponseCache(d.Cache, cfg.Cache.TTL, cfg.Cache.OpTimeout, logger))
		for _, api := range d.APIs {
			r.Route(api.Prefix(), api.Routes)
		}
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
