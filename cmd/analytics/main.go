// Command analytics consumes the query events published by a scatter
// coordinator, aggregates them in memory (volume, failures, zero-result
// queries, latency percentiles, top queries) and serves the totals at
// GET /api/v1/analytics.
//
// Usage:
//
//	analytics [-config scatter.yaml] [-addr :8090]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/anhducle98/simple-search/internal/analytics"
	"github.com/anhducle98/simple-search/pkg/config"
	"github.com/anhducle98/simple-search/pkg/health"
	"github.com/anhducle98/simple-search/pkg/kafka"
	"github.com/anhducle98/simple-search/pkg/logger"
	"github.com/anhducle98/simple-search/pkg/metrics"
	"github.com/anhducle98/simple-search/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", ":8090", "HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service",
		"addr", *addr,
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.ConsumerGroup,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, analytics.HandleEvent(aggregator))
	defer consumer.Close()

	var lastErr error
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		lastErr = consumer.Run(ctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case <-consumed:
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
		}
	})

	r := chi.NewRouter()
	r.Use(middleware.Logging(slog.Default().With("component", "analytics-http")))
	r.Use(middleware.Timeout(5 * time.Second))
	r.Get("/api/v1/analytics", aggregator.StatsHandler())
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Handle("/metrics", metrics.Handler(reg))

	server := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-consumed
	if lastErr != nil {
		slog.Error("consumer error", "error", lastErr)
	}
	slog.Info("analytics service stopped")
}
