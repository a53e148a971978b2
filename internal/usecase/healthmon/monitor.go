package healthmon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"inkwell-ai/internal/domain"
)

// HealthChecker is the slice of the gateway the monitor sweeps.
type HealthChecker interface {
	HealthCheckAll(ctx context.Context) map[string]domain.ProviderHealth
}

// Monitor runs a recurring health sweep across all registered providers and
// logs the unhealthy ones. It is observability only: nothing reads its
// results to make routing decisions, and every probe hits the backend fresh.
type Monitor struct {
	cron     *cron.Cron
	checker  HealthChecker
	schedule string
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMonitor creates a monitor sweeping on the given cron schedule
// (e.g. "@every 5m").
func NewMonitor(checker HealthChecker, schedule string, logger *slog.Logger) *Monitor {
	return &Monitor{
		cron:     cron.New(),
		checker:  checker,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep and begins the schedule. The first sweep fires
// when the schedule first elapses, not immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	if _, err := m.cron.AddFunc(m.schedule, m.runSweep); err != nil {
		return fmt.Errorf("health monitor: invalid schedule %q: %w", m.schedule, err)
	}
	m.cron.Start()
	m.started = true
	m.logger.Info("health monitor started", "schedule", m.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
	m.started = false
	return nil
}

// Sweep probes every provider once and logs the outcome. Exposed so callers
// can trigger an immediate sweep outside the schedule.
func (m *Monitor) Sweep(ctx context.Context) map[string]domain.ProviderHealth {
	start := time.Now()
	results := m.checker.HealthCheckAll(ctx)

	healthy := 0
	for name, h := range results {
		if h.Healthy {
			healthy++
			continue
		}
		m.logger.Warn("provider unhealthy", "provider", name, "error", h.Error)
	}
	m.logger.Info("health sweep completed",
		"providers", len(results),
		"healthy", healthy,
		"duration", time.Since(start))
	return results
}

func (m *Monitor) runSweep() {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	if ctx == nil {
		return
	}
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	m.Sweep(sweepCtx)
}
