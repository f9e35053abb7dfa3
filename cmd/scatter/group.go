package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/anhducle98/simple-search/internal/analytics"
	"github.com/anhducle98/simple-search/internal/coordinator"
	"github.com/anhducle98/simple-search/internal/corpus"
	"github.com/anhducle98/simple-search/internal/tokenizer"
	"github.com/anhducle98/simple-search/internal/transport"
	"github.com/anhducle98/simple-search/internal/worker"
	"github.com/anhducle98/simple-search/pkg/config"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
	"github.com/anhducle98/simple-search/pkg/health"
	"github.com/anhducle98/simple-search/pkg/kafka"
	"github.com/anhducle98/simple-search/pkg/metrics"
	"github.com/anhducle98/simple-search/pkg/resilience"
)

// ops bundles the per-process observability plumbing.
type ops struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	checker  *health.Checker
}

func newOps() *ops {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &ops{
		registry: reg,
		metrics:  metrics.New(reg),
		checker:  health.NewChecker(),
	}
}

// serve starts the ops HTTP server when metrics are enabled. Ranks listen on
// consecutive ports starting at metrics.port.
func (o *ops) serve(cfg *config.Config) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}
	addr := fmt.Sprintf(":%d", cfg.Metrics.Port+cfg.Cluster.Rank)
	shutdown, err := metrics.StartServer(addr, o.registry, o.checker)
	if err != nil {
		slog.Warn("ops server disabled", "error", err)
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown(ctx)
	}
}

func newWorker(cfg *config.Config, rank int, link transport.Link, tok tokenizer.Tokenizer, m *metrics.Metrics) *worker.Worker {
	return worker.New(worker.Options{
		Rank:      rank,
		Link:      link,
		Tokenizer: tok,
		Loader:    corpus.Loader{},
		Metrics:   m,
		TopK:      cfg.Search.TopK,
	})
}

// openCorpus fails with a configuration error unless the corpus directory
// can be listed.
func openCorpus(cfg *config.Config) (*corpus.Enumerator, error) {
	enumerator := corpus.NewEnumerator(cfg.Corpus.Dir)
	if err := enumerator.Check(); err != nil {
		return nil, apperrors.Configf("corpus directory: %v", err)
	}
	return enumerator, nil
}

// coordinate runs the query loop over links until in is exhausted.
func coordinate(ctx context.Context, cfg *config.Config, o *ops, enumerator *corpus.Enumerator, links []transport.Link, in io.Reader, out io.Writer) error {
	tracker := analytics.Discard
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("query analytics enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	coord, err := coordinator.New(coordinator.Options{
		Links:        links,
		Enumerator:   enumerator,
		MaxDocuments: cfg.Corpus.MaxDocuments,
		TopK:         cfg.Search.TopK,
		PhaseTimeout: cfg.Cluster.PhaseTimeout,
		Metrics:      o.metrics,
		Tracker:      tracker,
		Tracing:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return err
	}
	o.checker.Register("workers", health.Quorum("workers", coord.Workers))
	slog.Info("serving queries", "corpus", enumerator.Dir(), "workers", len(links)-1)
	return coord.Run(ctx, in, out)
}

// runLocal runs the coordinator and procs-1 worker goroutines connected by
// in-process pipes.
func runLocal(ctx context.Context, cfg *config.Config, tok tokenizer.Tokenizer) error {
	enumerator, err := openCorpus(cfg)
	if err != nil {
		return err
	}
	o := newOps()
	defer o.serve(cfg)()

	links := make([]transport.Link, cfg.Cluster.Procs)
	g, gctx := errgroup.WithContext(ctx)
	for rank := 1; rank < cfg.Cluster.Procs; rank++ {
		coordEnd, workerEnd := transport.Pipe(64)
		links[rank] = coordEnd
		w := newWorker(cfg, rank, workerEnd, tok, o.metrics)
		g.Go(func() error {
			defer workerEnd.Close()
			return w.Run(gctx)
		})
	}
	g.Go(func() error {
		defer transport.CloseAll(links)
		return coordinate(gctx, cfg, o, enumerator, links, os.Stdin, os.Stdout)
	})
	return g.Wait()
}

// runCoordinator waits for every worker to join over TCP, then serves queries
// from in.
func runCoordinator(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	enumerator, err := openCorpus(cfg)
	if err != nil {
		return err
	}
	o := newOps()
	defer o.serve(cfg)()

	l, err := transport.Listen(cfg.Cluster.ListenAddr, cfg.Protocol.MaxFrameBytes)
	if err != nil {
		return err
	}
	var links []transport.Link
	err = resilience.WithTimeout(ctx, cfg.Cluster.JoinTimeout, "waiting for workers", apperrors.ErrWorkerTimeout,
		func(ctx context.Context) error {
			var err error
			links, err = l.AcceptWorkers(ctx, cfg.Cluster.Procs)
			return err
		})
	if err != nil {
		return err
	}
	defer transport.CloseAll(links)
	return coordinate(ctx, cfg, o, enumerator, links, in, out)
}

// runWorker dials the coordinator and serves rounds until Shutdown.
func runWorker(ctx context.Context, cfg *config.Config, tok tokenizer.Tokenizer) error {
	o := newOps()
	defer o.serve(cfg)()

	conn, err := transport.Dial(ctx, transport.DialConfig{
		Addr:          cfg.Cluster.CoordinatorAddr,
		Rank:          cfg.Cluster.Rank,
		MaxFrameBytes: cfg.Protocol.MaxFrameBytes,
		Retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Cluster.DialAttempts,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	o.checker.Register("coordinator", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: conn.RemoteAddr().String()}
	})
	return newWorker(cfg, cfg.Cluster.Rank, conn, tok, o.metrics).Run(ctx)
}
