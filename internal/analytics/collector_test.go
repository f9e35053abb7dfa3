package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anhducle98/simple-search/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
	calls   int
}

func (f *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func event(i int) QueryEvent {
	return QueryEvent{Type: EventQuery, QueryID: fmt.Sprintf("q-%d", i), Query: "cat", Returned: 1}
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, time.Hour)
	c.Start(context.Background())
	for i := 0; i < 3; i++ {
		c.Track(event(i))
	}
	c.Close()
	if got := pub.published(); got != 3 {
		t.Fatalf("published %d events, want 3", got)
	}
	if pub.batches[0][0].Key != "q-0" {
		t.Fatalf("event key %q, want query id", pub.batches[0][0].Key)
	}
}

func TestCollectorTrackAfterStopStaysBuffered(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()
	<-c.done

	for i := 0; i < 4; i++ {
		c.Track(event(i))
	}
	c.Close()
	pub.mu.Lock()
	calls := pub.calls
	pub.mu.Unlock()
	if calls != 0 {
		t.Fatalf("publisher called %d times after the loop stopped", calls)
	}
	if got := c.BufferLen(); got != 4 {
		t.Fatalf("buffered %d events, want 4", got)
	}
}

func TestCollectorFlushesFullBatch(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 2, time.Hour)
	c.Start(context.Background())
	defer c.Close()
	c.Track(event(1))
	c.Track(event(2))

	deadline := time.Now().Add(2 * time.Second)
	for pub.published() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("full batch was not flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollectorFlushesOnTimer(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Close()
	c.Track(event(1))

	deadline := time.Now().Add(2 * time.Second)
	for pub.published() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timer flush did not happen")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollectorRequeuesAndCapsOnFailure(t *testing.T) {
	pub := &fakePublisher{fail: true}
	c := NewCollector(pub, 2, time.Hour)
	for i := 0; i < 10; i++ {
		c.mu.Lock()
		c.buffer = append(c.buffer, kafka.Event{Key: fmt.Sprintf("q-%d", i), Value: event(i)})
		c.mu.Unlock()
	}
	c.flush(context.Background())
	if got := c.BufferLen(); got != 6 {
		t.Fatalf("buffer holds %d events after failed flush, want 6", got)
	}
	c.mu.Lock()
	first := c.buffer[0].Key
	c.mu.Unlock()
	if first != "q-4" {
		t.Fatalf("oldest retained event %s, want q-4", first)
	}
}

func TestCollectorStopsPublishingToFailingBroker(t *testing.T) {
	pub := &fakePublisher{fail: true}
	c := NewCollector(pub, 1, time.Hour)
	for i := 0; i < 5; i++ {
		c.Track(event(i))
		c.inflight.Wait()
	}
	if pub.calls != 3 {
		t.Fatalf("publisher called %d times, want 3 before the breaker opens", pub.calls)
	}
	if got := c.BufferLen(); got != 3 {
		t.Fatalf("buffer holds %d events, want 3", got)
	}
}

func TestDiscard(t *testing.T) {
	Discard.Track(event(1))
}
