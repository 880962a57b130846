package gatewayhttp

import (
	"testing"
	"time"

	"github.com/tgstream/gateway/internal/registry"
)

func TestRound3(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.23456, 1.235},
		{0, 0},
		{10, 10},
	}
	for _, tt := range tests {
		if got := round3(tt.in); got != tt.want {
			t.Errorf("round3(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewStreamViewOmitsZeroEndTS(t *testing.T) {
	rec := registry.Record{
		StreamID: "abc123",
		Status:   registry.StatusActive,
		StartTS:  time.Now(),
	}
	v := newStreamView(rec)
	if v.EndTS != 0 {
		t.Errorf("EndTS = %d, want 0 for a still-active stream", v.EndTS)
	}
	if v.Status != "active" {
		t.Errorf("Status = %q, want active", v.Status)
	}
}

func TestNewStreamViewIncludesEndTSWhenFinished(t *testing.T) {
	now := time.Now()
	rec := registry.Record{
		StreamID: "abc123",
		Status:   registry.StatusFinished,
		StartTS:  now.Add(-time.Second),
		EndTS:    now,
	}
	v := newStreamView(rec)
	if v.EndTS != now.Unix() {
		t.Errorf("EndTS = %d, want %d", v.EndTS, now.Unix())
	}
}
