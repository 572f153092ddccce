// Package monitor provides background health monitoring for the preview
// session served by forage-preview serve.
package monitor

import (
	"context"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/session"
)

// CheckResult holds the result of a single session health check.
type CheckResult struct {
	Session string
	Status  health.Status
	Health  *health.CheckResult
	// Reaped is true when the check destroyed an expired session.
	Reaped bool
}

// Monitor periodically checks the active session. Expired sessions are
// destroyed; a dev server that stops responding is reported once.
type Monitor struct {
	interval time.Duration
	store    *session.Store
	provider provider.Provider
	bus      *events.Bus
	now      func() time.Time

	lastSession string
	lastStatus  health.Status
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithBus publishes expiry and dev server events to bus.
func WithBus(bus *events.Bus) Option {
	return func(m *Monitor) {
		m.bus = bus
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates a new Monitor.
func New(interval time.Duration, store *session.Store, p provider.Provider, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		store:    store,
		provider: p,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting session monitor", "interval", m.interval)

	// Run an immediate check, then loop on interval.
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("session monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one health check against the active session.
func (m *Monitor) check(ctx context.Context) CheckResult {
	s := m.store.Current()
	if s == nil {
		m.lastSession, m.lastStatus = "", health.StatusNone
		return CheckResult{Status: health.StatusNone}
	}

	h := health.Check(ctx, s, m.provider, m.now())
	result := CheckResult{Session: s.ID, Status: h.Status, Health: h}
	changed := s.ID != m.lastSession || h.Status != m.lastStatus

	switch h.Status {
	case health.StatusExpired:
		if prior := m.store.DestroyIf(ctx, s.ID); prior != nil {
			logging.Info("reaped expired sandbox", "session", s.ID, "expiredAt", s.ExpiresAt)
			m.bus.Publish(events.Event{
				Session: s.ID,
				Stage:   events.StageDestroy,
				Level:   events.LevelWarn,
				Message: "sandbox expired",
			})
			result.Reaped = true
		}
	case health.StatusNotServing:
		if changed {
			logging.Warn("dev server is not running", "session", s.ID, "pid", s.DevServerPID)
			m.bus.Publish(events.Event{
				Session: s.ID,
				Stage:   events.StageServer,
				Level:   events.LevelWarn,
				Message: "dev server is not running",
			})
		}
	}

	m.lastSession, m.lastStatus = s.ID, h.Status
	return result
}
