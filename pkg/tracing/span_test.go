package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "query", "trace-1")
	_, broadcast := StartChildSpan(ctx, "broadcast")
	broadcast.End()
	_, collect := StartChildSpan(ctx, "collect")
	collect.SetAttr("candidates", 7)
	collect.End()
	first := root.End()
	if again := root.End(); again != first {
		t.Fatalf("End not idempotent: %v then %v", first, again)
	}

	if root.Child("broadcast") == nil || root.Child("collect") == nil {
		t.Fatal("children not attached to root")
	}
	if root.Child("collect").TraceID != "trace-1" {
		t.Fatal("child did not inherit trace id")
	}
	if SpanFromContext(ctx) != root {
		t.Fatal("root not stored in context")
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	for _, want := range []string{"span=query", "span=broadcast", "span=collect", "candidates=7", "depth=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID != "" {
		t.Fatalf("orphan span has trace id %q", span.TraceID)
	}
}

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	if len(a) != 32 || a == b {
		t.Fatalf("unexpected trace ids %q %q", a, b)
	}
}
