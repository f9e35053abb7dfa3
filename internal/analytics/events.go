package analytics

import "time"

type EventType string

const (
	EventQuery      EventType = "query"
	EventZeroResult EventType = "zero_result"
	EventFailed     EventType = "query_failed"
)

// QueryEvent summarises one query round. It carries volumes and timings only,
// never scores or document identifiers.
type QueryEvent struct {
	Type       EventType `json:"type"`
	QueryID    string    `json:"query_id"`
	Query      string    `json:"query"`
	Workers    int       `json:"workers"`
	Considered int       `json:"documents_considered"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
