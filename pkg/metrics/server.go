package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anhducle98/simple-search/pkg/health"
	"github.com/anhducle98/simple-search/pkg/middleware"
)

// NewRouter builds the ops HTTP routes: /metrics, /health/live and
// /health/ready.
func NewRouter(g prometheus.Gatherer, checker *health.Checker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(slog.Default().With("component", "ops")))
	r.Use(middleware.Timeout(5 * time.Second))
	r.Handle("/metrics", Handler(g))
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><h1>scatter</h1><p><a href="/metrics">/metrics</a> <a href="/health/ready">/health/ready</a></p></body></html>`)
	})
	return r
}

// StartServer serves the ops routes on addr in the background. The returned
// function shuts the server down.
func StartServer(addr string, g prometheus.Gatherer, checker *health.Checker) (shutdown func(context.Context) error, err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:      NewRouter(g, checker),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("ops server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server error", "error", err)
		}
	}()

	return server.Shutdown, nil
}
