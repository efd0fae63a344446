package market

import (
	"context"
	"os"
	"testing"
	"time"

	"stonklytics/internal/domain"
)

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	in := domain.StockSnapshot{Ticker: "AAPL", CurrentPrice: 189.84}
	if err := c.Set(ctx, "snapshot:AAPL", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out domain.StockSnapshot
	ok, err := c.Get(ctx, "snapshot:AAPL", &out)
	if err != nil || !ok || out.CurrentPrice != 189.84 {
		t.Fatalf("Get = %v, %v, %+v", ok, err, out)
	}

	now = now.Add(time.Minute)
	if ok, _ := c.Get(ctx, "snapshot:AAPL", &out); ok {
		t.Error("entry should expire at its TTL")
	}
	if ok, _ := c.Get(ctx, "missing", &out); ok {
		t.Error("missing key reported as found")
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, "stonklytics-test:")
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	key := "summary:" + time.Now().Format("150405.000000")
	if err := c.Set(ctx, key, domain.Summary{Symbol: "AAPL", Summary: "• x"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got domain.Summary
	ok, err := c.Get(ctx, key, &got)
	if err != nil || !ok || got.Symbol != "AAPL" {
		t.Fatalf("Get = %v, %v, %+v", ok, err, got)
	}
	if ok, err := c.Get(ctx, key+":missing", &got); ok || err != nil {
		t.Errorf("missing key = %v, %v", ok, err)
	}
}
