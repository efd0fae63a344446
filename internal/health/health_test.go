package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func serve(t *testing.T, m *Monitor) grpc.DialOption {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	m.Register(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func quietMonitor() *Monitor {
	return NewMonitor(time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMonitorStatuses(t *testing.T) {
	m := quietMonitor()
	var storeDown atomic.Bool
	m.Add("store", func(context.Context) error {
		if storeDown.Load() {
			return errors.New("db gone")
		}
		return nil
	})
	m.Add("market", func(context.Context) error { return nil })
	dial := serve(t, m)
	ctx := context.Background()

	probe := func() map[string]Status {
		t.Helper()
		got, err := Probe(ctx, "passthrough:///bufnet", []string{"", "store", "market", "nope"}, dial)
		if err != nil {
			t.Fatalf("Probe: %v", err)
		}
		byName := make(map[string]Status)
		for _, s := range got {
			byName[s.Service] = s
		}
		return byName
	}

	// Nothing evaluated yet.
	if s := probe()[""]; s.Serving {
		t.Errorf("overall serving before first check: %+v", s)
	}

	if failed := m.CheckOnce(ctx); len(failed) != 0 {
		t.Fatalf("failed = %v", failed)
	}
	got := probe()
	for _, svc := range []string{"", "store", "market"} {
		if !got[svc].Serving {
			t.Errorf("%q not serving: %+v", svc, got[svc])
		}
	}
	if got["nope"].Detail != "UNKNOWN_SERVICE" {
		t.Errorf("unknown service = %+v", got["nope"])
	}

	storeDown.Store(true)
	failed := m.CheckOnce(ctx)
	if _, ok := failed["store"]; !ok || len(failed) != 1 {
		t.Fatalf("failed = %v", failed)
	}
	got = probe()
	if got["store"].Serving || got[""].Serving {
		t.Errorf("store or overall still serving: %+v", got)
	}
	if !got["market"].Serving {
		t.Errorf("market should be unaffected: %+v", got["market"])
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	m := quietMonitor()
	m.Add("store", func(context.Context) error { return nil })
	dial := serve(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := Probe(context.Background(), "passthrough:///bufnet", []string{""}, dial)
		if err == nil && got[0].Serving {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never became serving: %+v, %v", got, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
	got, err := Probe(context.Background(), "passthrough:///bufnet", []string{"", "store"}, dial)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	for _, s := range got {
		if s.Serving {
			t.Errorf("%q still serving after shutdown", s.Service)
		}
	}
}

func TestServicesSorted(t *testing.T) {
	m := quietMonitor()
	m.Add("b", nil)
	m.Add("a", nil)
	got := m.Services()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Services = %v", got)
	}
}
