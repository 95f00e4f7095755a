// Package health tracks per-provider health with a three-state machine fed by
// live call outcomes and synthetic probes.
package health

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"verigate/internal/platform/metrics"
	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/clock"
)

// ErrProviderNotTracked is returned for providers the monitor has never seen.
var ErrProviderNotTracked = dErrors.New(dErrors.CodeNotFound, "provider is not tracked by the health monitor")

// Monitor owns every provider's HealthState. Nothing else mutates it.
type Monitor struct {
	cfg       Config
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher audit.Emitter

	mu      sync.RWMutex
	entries map[string]*entry

	listenersMu sync.RWMutex
	listeners   []Listener
}

type Option func(*Monitor)

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = clock.OrReal(c)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mx
	}
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(m *Monitor) {
		m.publisher = p
	}
}

// WithListener registers a transition listener at construction.
func WithListener(l Listener) Option {
	return func(m *Monitor) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// NewMonitor validates cfg and builds an empty monitor.
func NewMonitor(cfg Config, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		cfg:     cfg,
		clock:   clock.Real(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the thresholds the monitor was built with.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Subscribe adds a transition listener.
func (m *Monitor) Subscribe(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Track starts tracking a provider as Healthy. Tracking an already known
// provider is a no-op and keeps its current state.
func (m *Monitor) Track(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[providerID]; ok {
		return
	}
	m.entries[providerID] = &entry{id: providerID, state: Healthy}
	m.metrics.SetProviderState(providerID, int(Healthy))
}

// Record folds a live traffic outcome into the provider's counters.
func (m *Monitor) Record(ctx context.Context, providerID string, o Outcome) (Snapshot, error) {
	return m.record(ctx, providerID, o, SourceTraffic)
}

// RecordProbe folds a probe outcome into the provider's counters and stamps
// the last-probe time.
func (m *Monitor) RecordProbe(ctx context.Context, providerID string, o Outcome) (Snapshot, error) {
	return m.record(ctx, providerID, o, SourceProbe)
}

func (m *Monitor) record(ctx context.Context, providerID string, o Outcome, src Source) (Snapshot, error) {
	e, err := m.lookup(providerID)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t, changed := e.apply(m.cfg, o, src, m.clock())
	if changed {
		m.notify(ctx, t)
	}
	return e.snapshot(), nil
}

// State returns the provider's current state.
func (m *Monitor) State(providerID string) (State, error) {
	e, err := m.lookup(providerID)
	if err != nil {
		return Unavailable, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

// Snapshot returns a copy of the provider's health record.
func (m *Monitor) Snapshot(providerID string) (Snapshot, error) {
	e, err := m.lookup(providerID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// Snapshots returns every tracked provider's health, sorted by provider ID.
func (m *Monitor) Snapshots() []Snapshot {
	entries := m.all()
	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.snapshot())
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		switch {
		case a.ProviderID < b.ProviderID:
			return -1
		case a.ProviderID > b.ProviderID:
			return 1
		}
		return 0
	})
	return out
}

// NeedsProbe lists providers that are not Healthy. Healthy providers are
// observed passively through real traffic only.
func (m *Monitor) NeedsProbe() []string {
	var ids []string
	for _, s := range m.Snapshots() {
		if s.State != Healthy {
			ids = append(ids, s.ProviderID)
		}
	}
	return ids
}

func (m *Monitor) lookup(providerID string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[providerID]
	if !ok {
		return nil, ErrProviderNotTracked
	}
	return e, nil
}

func (m *Monitor) all() []*entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}

// notify runs with the provider's entry locked so listeners observe
// transitions for one provider in order.
func (m *Monitor) notify(ctx context.Context, t Transition) {
	m.metrics.RecordTransition(t.ProviderID, t.From.String(), t.To.String(), int(t.To))

	m.listenersMu.RLock()
	listeners := m.listeners
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		l.OnTransition(t)
	}

	reason := string(t.Source)
	if t.ErrorKind != ErrorNone {
		reason += ":" + string(t.ErrorKind)
	}
	audit.LogAudit(ctx, m.logger, m.publisher, audit.Event{
		Action:     string(audit.EventHealthTransition),
		ProviderID: t.ProviderID,
		From:       t.From.String(),
		To:         t.To.String(),
		Timestamp:  t.At,
		Reason:     reason,
	})
}
