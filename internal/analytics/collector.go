// Package analytics publishes a summary event for every query round and
// aggregates those events on the consuming side. Events are buffered in memory
// and flushed to Kafka in batches, either when the batch fills or on a timer,
// so the query loop never waits on the broker.
package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/anhducle98/simple-search/pkg/kafka"
	"github.com/anhducle98/simple-search/pkg/resilience"
)

// Publisher writes a batch of events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Tracker receives query events. The coordinator depends on this rather than
// on Collector so analytics can be switched off with Discard.
type Tracker interface {
	Track(event QueryEvent)
}

type discard struct{}

func (discard) Track(QueryEvent) {}

// Discard drops every event.
var Discard Tracker = discard{}

type Collector struct {
	publisher     Publisher
	breaker       *resilience.Breaker
	mu            sync.Mutex
	buffer        []kafka.Event
	stopped       bool
	batchSize     int
	maxBuffered   int
	flushInterval time.Duration
	logger        *slog.Logger
	inflight      sync.WaitGroup
	stop          chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
}

// NewCollector buffers up to batchSize events before flushing and flushes at
// least every flushInterval. At most three batches are held while the broker
// is unavailable; older events beyond that are dropped. Three failed flushes
// in a row pause publishing for thirty seconds.
func NewCollector(publisher Publisher, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		breaker:       resilience.NewBreaker("analytics-publisher", resilience.BreakerConfig{Failures: 3, Cooldown: 30 * time.Second}),
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffered:   batchSize * 3,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics"),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It runs until ctx is done or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				c.finalFlush()
				return
			case <-c.stop:
				c.finalFlush()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event QueryEvent) {
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: event.QueryID, Value: event})
	// Once the loop has stopped, leftover events wait for the final flush.
	shouldFlush := len(c.buffer) >= c.batchSize && !c.stopped
	if shouldFlush {
		c.inflight.Add(1)
	}
	c.mu.Unlock()

	if shouldFlush {
		go func() {
			defer c.inflight.Done()
			c.flush(context.Background())
		}()
	}
}

// Close stops the flush loop after a final flush and waits for it.
func (c *Collector) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	c.inflight.Wait()
}

func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) finalFlush() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.inflight.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	err := c.breaker.Do(func() error { return c.publisher.PublishBatch(ctx, batch) })
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			c.logger.Debug("analytics flush skipped", "batch_size", len(batch), "error", err)
		} else {
			c.logger.Error("analytics flush failed", "batch_size", len(batch), "error", err)
		}
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if len(c.buffer) > c.maxBuffered {
			dropped := len(c.buffer) - c.maxBuffered
			c.buffer = c.buffer[dropped:]
			c.logger.Warn("analytics buffer full, oldest events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}
	c.logger.Debug("analytics batch flushed", "events", len(batch))
}
