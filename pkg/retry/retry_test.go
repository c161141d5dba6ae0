package retry

import (
	"testing"
	"time"
)

func TestBackoffDeterministicForBridgeReconnect(t *testing.T) {
	cfg := Config{
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
		Jitter:       false,
	}

	tests := []struct {
		attempt int
		wantMs  int64
	}{
		{attempt: 0, wantMs: 1000},
		{attempt: 1, wantMs: 2000},
		{attempt: 2, wantMs: 4000},
	}

	for _, tt := range tests {
		got := Backoff(cfg, tt.attempt)
		if got.Milliseconds() != tt.wantMs {
			t.Errorf("Backoff(attempt=%d) = %dms, want %dms", tt.attempt, got.Milliseconds(), tt.wantMs)
		}
	}
}

func TestBackoffClampsToMaxDelay(t *testing.T) {
	cfg := Config{
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     3 * time.Second,
		Jitter:       false,
	}

	got := Backoff(cfg, 5) // would be 32s uncapped
	if got.Milliseconds() != 3000 {
		t.Errorf("Backoff() = %dms, want clamped 3000ms", got.Milliseconds())
	}
}

func TestBackoffJitterNeverShortensDelay(t *testing.T) {
	cfg := DefaultConfig()
	got := Backoff(cfg, 0)
	if got < cfg.InitialDelay {
		t.Errorf("jittered delay %v shorter than base %v", got, cfg.InitialDelay)
	}
}
