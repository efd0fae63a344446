// Package health publishes the backend's dependency status over the standard
// gRPC health protocol and probes it from the CLI.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultInterval is how often Run re-evaluates the checks.
const DefaultInterval = 30 * time.Second

// checkTimeout bounds a single check.
const checkTimeout = 5 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Monitor runs named checks and mirrors their outcome into a gRPC health
// server. The overall status (service "") is SERVING only when every check
// passes.
type Monitor struct {
	hs       *health.Server
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	checks map[string]Check
	last   map[string]error
}

// NewMonitor creates a Monitor. A non-positive interval uses DefaultInterval.
func NewMonitor(interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Monitor{
		hs:       hs,
		interval: interval,
		log:      log,
		checks:   make(map[string]Check),
		last:     make(map[string]error),
	}
}

// Add registers a check under service. The service starts out NOT_SERVING
// until the first evaluation.
func (m *Monitor) Add(service string, c Check) {
	m.mu.Lock()
	m.checks[service] = c
	m.mu.Unlock()
	m.hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Register exposes the health service on gs.
func (m *Monitor) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, m.hs)
}

// Services returns the registered service names in sorted order.
func (m *Monitor) Services() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckOnce evaluates every check concurrently and updates the served
// statuses. It returns the failures keyed by service.
func (m *Monitor) CheckOnce(ctx context.Context) map[string]error {
	names := m.Services()
	m.mu.Lock()
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = m.checks[name]
	}
	m.mu.Unlock()

	results := make([]error, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			results[i] = checks[i](cctx)
			return nil
		})
	}
	g.Wait()

	failed := make(map[string]error)
	m.mu.Lock()
	for i, name := range names {
		err := results[i]
		prev, seen := m.last[name]
		m.last[name] = err
		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			failed[name] = err
		}
		m.hs.SetServingStatus(name, status)

		switch {
		case err != nil && (!seen || prev == nil):
			m.log.Warn("dependency unhealthy", "service", name, "error", err)
		case err == nil && seen && prev != nil:
			m.log.Info("dependency recovered", "service", name)
		}
	}
	m.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	if len(failed) > 0 {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.hs.SetServingStatus("", overall)
	return failed
}

// Run evaluates the checks immediately and then every interval until ctx is
// cancelled, after which every service reports NOT_SERVING.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckOnce(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.hs.Shutdown()
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}
