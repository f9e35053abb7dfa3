package health

import (
	"context"
	"testing"
)

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"none", nil, StatusUp},
		{"all up", []Status{StatusUp, StatusUp}, StatusUp},
		{"degraded", []Status{StatusUp, StatusDegraded}, StatusDegraded},
		{"down beats degraded", []Status{StatusDegraded, StatusDown, StatusUp}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, s := range tt.statuses {
				s := s
				c.Register(string(rune('a'+i)), func(context.Context) ComponentHealth {
					return ComponentHealth{Status: s}
				})
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Fatalf("status %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.statuses) {
				t.Fatalf("%d components reported, want %d", len(report.Components), len(tt.statuses))
			}
		})
	}
}

func TestQuorum(t *testing.T) {
	tests := []struct {
		have, want int
		status     Status
	}{
		{3, 3, StatusUp},
		{1, 3, StatusDegraded},
		{0, 3, StatusDown},
	}
	for _, tt := range tests {
		check := Quorum("workers", func() (int, int) { return tt.have, tt.want })
		got := check(context.Background())
		if got.Status != tt.status {
			t.Errorf("%d/%d: status %s, want %s", tt.have, tt.want, got.Status, tt.status)
		}
	}
}
