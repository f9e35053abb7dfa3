package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "broken", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryStopsOnConfigError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "config", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return apperrors.Configf("bad address")
	})
	if !errors.Is(err, apperrors.ErrConfig) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "cancelled", RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func() error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	if d := computeDelay(5, cfg); d > 2*time.Second {
		t.Fatalf("delay %v above cap", d)
	}
}

func TestWithTimeout(t *testing.T) {
	sentinel := errors.New("too slow")
	err := WithTimeout(context.Background(), 20*time.Millisecond, "wait", sentinel, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, sentinel) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected sentinel and deadline, got %v", err)
	}

	if err := WithTimeout(context.Background(), 0, "unbounded", sentinel, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("zero timeout must not set a deadline")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	own := errors.New("own failure")
	if err := WithTimeout(context.Background(), time.Second, "fails", sentinel, func(context.Context) error {
		return own
	}); !errors.Is(err, own) || errors.Is(err, sentinel) {
		t.Fatalf("expected fn error unchanged, got %v", err)
	}
}

func TestBreakerLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker("sink", BreakerConfig{Failures: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return now }
	boom := errors.New("boom")
	fail := func() error { return boom }
	ok := func() error { return nil }

	steps := []struct {
		name    string
		advance time.Duration
		fn      func() error
		wantErr error
		state   BreakerState
	}{
		{"first failure", 0, fail, boom, StateClosed},
		{"second failure opens", 0, fail, boom, StateOpen},
		{"short-circuited", 10 * time.Second, ok, ErrOpen, StateOpen},
		{"probe fails", time.Minute, fail, boom, StateOpen},
		{"still open", 30 * time.Second, ok, ErrOpen, StateOpen},
		{"probe succeeds", time.Minute, ok, nil, StateClosed},
		{"closed again", 0, fail, boom, StateClosed},
	}
	for _, s := range steps {
		now = now.Add(s.advance)
		err := b.Do(s.fn)
		if s.wantErr == nil && err != nil || s.wantErr != nil && !errors.Is(err, s.wantErr) {
			t.Fatalf("%s: err = %v, want %v", s.name, err, s.wantErr)
		}
		if got := b.State(); got != s.state {
			t.Fatalf("%s: state = %s, want %s", s.name, got, s.state)
		}
	}
}

func TestBreakerSingleProbe(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker("sink", BreakerConfig{Failures: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }
	b.Do(func() error { return errors.New("down") })

	now = now.Add(time.Second)
	err := b.Do(func() error {
		if err := b.Do(func() error { return nil }); !errors.Is(err, ErrOpen) {
			t.Errorf("concurrent call during probe: %v, want ErrOpen", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}
