package kafka

import (
	"context"
	"testing"

	"github.com/anhducle98/simple-search/pkg/config"
)

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "q-1", Value: map[string]int{"returned": 2}},
		{Key: "q-2", Value: "plain"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if string(msgs[0].Key) != "q-1" || string(msgs[0].Value) != `{"returned":2}` {
		t.Fatalf("unexpected first message %q=%q", msgs[0].Key, msgs[0].Value)
	}
	if string(msgs[1].Value) != `"plain"` {
		t.Fatalf("unexpected second value %q", msgs[1].Value)
	}
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	if _, err := encode([]Event{{Key: "bad", Value: make(chan int)}}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "unused"})
	defer p.Close()
	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type event struct {
		Query    string `json:"query"`
		Returned int    `json:"returned"`
	}
	got, err := DecodeJSON[event]([]byte(`{"query":"dog","returned":3}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Query != "dog" || got.Returned != 3 {
		t.Fatalf("got %+v", got)
	}
	if _, err := DecodeJSON[event]([]byte(`{"query":`)); err == nil {
		t.Fatal("expected error for truncated value")
	}
}
