// Package coordinator owns the query loop. For every query it broadcasts the
// text to all workers, routes each corpus document to the one worker that
// owns it, closes the document stream, then drains every worker's results in
// rank order into a single bounded top-K.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/anhducle98/simple-search/internal/analytics"
	"github.com/anhducle98/simple-search/internal/partition"
	"github.com/anhducle98/simple-search/internal/protocol"
	"github.com/anhducle98/simple-search/internal/topk"
	"github.com/anhducle98/simple-search/internal/transport"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
	"github.com/anhducle98/simple-search/pkg/logger"
	"github.com/anhducle98/simple-search/pkg/metrics"
	"github.com/anhducle98/simple-search/pkg/resilience"
	"github.com/anhducle98/simple-search/pkg/tracing"
)

// Enumerator lists document identifiers; limit < 0 means no limit.
type Enumerator interface {
	Walk(ctx context.Context, limit int, fn func(docID string) error) (int, error)
}

type Options struct {
	// Links is indexed by rank. Links[0] is unused; every other entry must
	// be set.
	Links        []transport.Link
	Enumerator   Enumerator
	MaxDocuments int
	TopK         int
	// PhaseTimeout bounds every receive from a worker. Zero waits forever.
	PhaseTimeout time.Duration
	Metrics      *metrics.Metrics
	Tracker      analytics.Tracker
	Tracing      bool
}

type Coordinator struct {
	links        []transport.Link
	procs        int
	enumerator   Enumerator
	assigner     *partition.Assigner
	maxDocuments int
	topK         int
	phaseTimeout time.Duration
	metrics      *metrics.Metrics
	tracker      analytics.Tracker
	tracing      bool
	connected    atomic.Int32
	logger       *slog.Logger
}

// Result is the outcome of one query round.
type Result struct {
	QueryID    string
	Query      string
	Candidates []topk.Candidate
	// Considered counts documents dispatched to workers.
	Considered int
	Elapsed    time.Duration
}

func New(opts Options) (*Coordinator, error) {
	procs := len(opts.Links)
	assigner, err := partition.NewAssigner(procs)
	if err != nil {
		return nil, apperrors.Configf("%v", err)
	}
	for rank := 1; rank < procs; rank++ {
		if opts.Links[rank] == nil {
			return nil, apperrors.Configf("no link for worker %d", rank)
		}
	}
	if opts.Enumerator == nil {
		return nil, apperrors.Configf("coordinator needs a document enumerator")
	}
	if opts.TopK <= 0 {
		opts.TopK = topk.DefaultCapacity
	}
	if opts.Tracker == nil {
		opts.Tracker = analytics.Discard
	}
	c := &Coordinator{
		links:        opts.Links,
		procs:        procs,
		enumerator:   opts.Enumerator,
		assigner:     assigner,
		maxDocuments: opts.MaxDocuments,
		topK:         opts.TopK,
		phaseTimeout: opts.PhaseTimeout,
		metrics:      opts.Metrics,
		tracker:      opts.Tracker,
		tracing:      opts.Tracing,
		logger:       slog.Default().With("component", "coordinator"),
	}
	c.connected.Store(int32(procs - 1))
	if c.metrics != nil {
		c.metrics.WorkersConnected.Set(float64(procs - 1))
	}
	return c, nil
}

// Workers reports connected and expected worker counts.
func (c *Coordinator) Workers() (connected, expected int) {
	return int(c.connected.Load()), c.procs - 1
}

// Search runs one query round and returns the merged top-K.
func (c *Coordinator) Search(ctx context.Context, query string) (*Result, error) {
	queryID := tracing.NewTraceID()
	ctx = logger.WithQueryID(ctx, queryID)
	ctx, span := tracing.StartSpan(ctx, "query", queryID)
	log := logger.FromContext(ctx).With("component", "coordinator")
	log.Info("processing query", "query", query)

	res := &Result{QueryID: queryID, Query: query}
	err := c.round(ctx, res)
	res.Elapsed = span.End()
	span.SetAttr("considered", res.Considered)
	span.SetAttr("returned", len(res.Candidates))
	if c.tracing {
		span.Log(log)
	}
	c.record(res, err)
	if err != nil {
		log.Error("query failed", "error", err)
		return nil, err
	}
	log.Info("query complete",
		"considered", res.Considered,
		"returned", len(res.Candidates),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func (c *Coordinator) round(ctx context.Context, res *Result) error {
	if err := c.phase(ctx, "broadcast", func(ctx context.Context) error {
		return c.broadcast(ctx, protocol.Query(res.Query))
	}); err != nil {
		return err
	}

	var dispatchErr error
	if err := c.phase(ctx, "dispatch", func(ctx context.Context) error {
		n, err := c.dispatch(ctx)
		res.Considered = n
		if err != nil && !errors.Is(err, errLinkFailed) {
			// Workers are mid-stream; finish the round before reporting.
			dispatchErr = err
			err = nil
		}
		if err != nil {
			return err
		}
		return c.broadcast(ctx, protocol.EndOfDocuments())
	}); err != nil {
		return err
	}

	if err := c.phase(ctx, "collect", func(ctx context.Context) error {
		merged, err := c.collect(ctx)
		res.Candidates = merged
		return err
	}); err != nil {
		return err
	}
	if dispatchErr != nil {
		res.Candidates = nil
		return fmt.Errorf("enumerating corpus: %w", dispatchErr)
	}
	return nil
}

func (c *Coordinator) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	err := fn(ctx)
	d := span.End()
	if c.metrics != nil {
		c.metrics.PhaseLatency.WithLabelValues(name).Observe(d.Seconds())
	}
	return err
}

// errLinkFailed marks dispatch errors that came from a worker link rather
// than from the enumerator.
var errLinkFailed = errors.New("worker link failed")

func (c *Coordinator) broadcast(ctx context.Context, env protocol.Envelope) error {
	for _, rank := range c.assigner.Workers() {
		if err := c.send(ctx, rank, env); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context) (int, error) {
	c.assigner.Reset()
	n, err := c.enumerator.Walk(ctx, c.maxDocuments, func(docID string) error {
		rank := c.assigner.Assign(docID)
		if err := c.send(ctx, rank, protocol.Document(docID)); err != nil {
			return fmt.Errorf("%w: %w", errLinkFailed, err)
		}
		return nil
	})
	if c.metrics != nil {
		for _, rank := range c.assigner.Workers() {
			c.metrics.DocumentsDispatched.WithLabelValues(strconv.Itoa(rank)).Add(float64(c.assigner.Count(rank)))
		}
	}
	return n, err
}

// collect drains workers in rank order into one selector.
func (c *Coordinator) collect(ctx context.Context) ([]topk.Candidate, error) {
	selector := topk.New(c.topK)
	for _, rank := range c.assigner.Workers() {
		for {
			env, err := c.recv(ctx, rank)
			if err != nil {
				return nil, err
			}
			if env.Kind == protocol.KindEndOfResults {
				break
			}
			if env.Kind != protocol.KindResult {
				return nil, protocol.Unexpected(fmt.Sprintf("collecting results from worker %d", rank), env)
			}
			selector.Insert(env.Candidate())
		}
	}
	return selector.DrainDescending(), nil
}

func (c *Coordinator) send(ctx context.Context, rank int, env protocol.Envelope) error {
	if err := c.links[rank].Send(ctx, env); err != nil {
		return c.linkErr(rank, "sending "+string(env.Kind), err)
	}
	return nil
}

func (c *Coordinator) recv(ctx context.Context, rank int) (protocol.Envelope, error) {
	var env protocol.Envelope
	err := resilience.WithTimeout(ctx, c.phaseTimeout, fmt.Sprintf("worker %d", rank), apperrors.ErrWorkerTimeout,
		func(ctx context.Context) error {
			var err error
			env, err = c.links[rank].Recv(ctx)
			return err
		})
	if err != nil {
		return protocol.Envelope{}, c.linkErr(rank, "receiving results", err)
	}
	return env, nil
}

func (c *Coordinator) linkErr(rank int, op string, err error) error {
	if errors.Is(err, transport.ErrClosed) {
		c.connected.Add(-1)
		if c.metrics != nil {
			c.metrics.WorkersConnected.Dec()
		}
		return fmt.Errorf("worker %d %s: %w: %w", rank, op, apperrors.ErrWorkerLost, err)
	}
	return fmt.Errorf("worker %d %s: %w", rank, op, err)
}

func (c *Coordinator) record(res *Result, err error) {
	event := analytics.QueryEvent{
		Type:       analytics.EventQuery,
		QueryID:    res.QueryID,
		Query:      res.Query,
		Workers:    c.procs - 1,
		Considered: res.Considered,
		Returned:   len(res.Candidates),
		LatencyMs:  res.Elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		event.Type = analytics.EventFailed
		event.Error = err.Error()
	case len(res.Candidates) == 0:
		event.Type = analytics.EventZeroResult
	}
	c.tracker.Track(event)

	if c.metrics != nil {
		c.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
		c.metrics.QueryLatency.Observe(res.Elapsed.Seconds())
		if err == nil {
			c.metrics.ResultsCount.Observe(float64(len(res.Candidates)))
		}
	}
}

// Shutdown tells every worker to stop. It attempts all workers and joins
// the failures.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var errs []error
	for _, rank := range c.assigner.Workers() {
		if err := c.links[rank].Send(ctx, protocol.Shutdown()); err != nil {
			errs = append(errs, fmt.Errorf("worker %d shutdown: %w", rank, err))
		}
	}
	c.logger.Info("shutdown sent", "workers", c.procs-1, "failed", len(errs))
	return errors.Join(errs...)
}
