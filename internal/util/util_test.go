package util

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewFileLogger(dir, "stonk-test", "info")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	logger.Info("hello", "ticker", "AAPL")
	logger.Debug("hidden")
	closer.Close()

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %d (%v)", len(entries), err)
	}
	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "ticker=AAPL") {
		t.Errorf("log missing attribute: %s", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Errorf("debug line written at info level: %s", data)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	if NewRateLimiter(0) != nil {
		t.Error("NewRateLimiter(0) should disable limiting")
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewBurstRateLimiter(60, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d: %v", i, err)
		}
	}
	// Fourth token needs ~1s at 60/min; the context expires first.
	if err := rl.Wait(ctx); err == nil {
		t.Error("Wait beyond burst should block until the context expires")
	}
}

func TestNilRateLimiter(t *testing.T) {
	var rl *RateLimiter
	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait = %v, want nil", err)
	}
}
