package session

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"verigate/internal/health"
	"verigate/internal/platform/metrics"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/clock"
)

const (
	shardCount    = 32
	maxTrailItems = 64
)

// ProviderDirectory answers whether a provider exists.
type ProviderDirectory interface {
	Exists(providerID string) bool
}

// HealthView reads provider health.
type HealthView interface {
	State(providerID string) (health.State, error)
}

// TrailSink persists a session's audit trail. It must not block.
type TrailSink interface {
	SaveTrail(ctx context.Context, sessionID string, trail []TrailEntry)
}

type record struct {
	mu      sync.Mutex
	s       Session
	trail   []TrailEntry
	removed bool
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*record
}

// Table is the session affinity table. Sessions live in sharded maps; each
// session has its own lock, so work on different sessions does not contend.
// Lock order is shard, then session.
type Table struct {
	cfg       Config
	providers ProviderDirectory
	health    HealthView
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher audit.Emitter
	trail     TrailSink

	shards [shardCount]*shard
	active atomic.Int64
}

type Option func(*Table)

func WithClock(c clock.Clock) Option {
	return func(t *Table) {
		t.clock = clock.OrReal(c)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Table) {
		t.metrics = m
	}
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(t *Table) {
		t.publisher = p
	}
}

// WithTrailSink persists every session's trail as it changes.
func WithTrailSink(s TrailSink) Option {
	return func(t *Table) {
		t.trail = s
	}
}

func NewTable(cfg Config, providers ProviderDirectory, hv HealthView, opts ...Option) *Table {
	t := &Table{
		cfg:       cfg,
		providers: providers,
		health:    hv,
		clock:     clock.Real(),
	}
	for i := range t.shards {
		t.shards[i] = &shard{m: make(map[string]*record)}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Touch records activity on a session, creating it on first sight. A session
// already idle past the timeout is expired and replaced by a fresh unbound
// one. Attrs are only captured at creation.
func (t *Table) Touch(ctx context.Context, sessionID string, attrs Attrs) Session {
	rec := t.acquire(ctx, sessionID, attrs)
	defer rec.mu.Unlock()
	rec.s.LastActivity = t.clock()
	return rec.s
}

// Bind points the session at providerID, replacing any previous binding.
// Binding to a provider that does not exist panics with *IntegrityError.
func (t *Table) Bind(ctx context.Context, sessionID, providerID string) Session {
	if providerID == "" || !t.providers.Exists(providerID) {
		panic(&IntegrityError{SessionID: sessionID, ProviderID: providerID, Detail: "binding to nonexistent provider"})
	}
	rec := t.acquire(ctx, sessionID, Attrs{})
	defer rec.mu.Unlock()

	rec.s.LastActivity = t.clock()
	prev := rec.s.ProviderID
	if prev == providerID {
		return rec.s
	}
	rec.s.ProviderID = providerID
	reason := ""
	if prev != "" {
		reason = "replaced " + prev
	}
	t.record(ctx, rec, audit.EventSessionBound, providerID, reason)
	return rec.s
}

// Lookup returns the provider the session is bound to. A binding to a
// provider that has become Unavailable is dropped here, and a session idle
// past the timeout is expired here, so callers re-resolve in both cases.
func (t *Table) Lookup(ctx context.Context, sessionID string) (string, bool) {
	rec := t.get(sessionID)
	if rec == nil {
		return "", false
	}

	rec.mu.Lock()
	if rec.removed {
		rec.mu.Unlock()
		return "", false
	}
	if t.idle(rec, t.clock()) {
		rec.mu.Unlock()
		t.expire(ctx, sessionID)
		return "", false
	}
	defer rec.mu.Unlock()

	providerID := rec.s.ProviderID
	if providerID == "" {
		return "", false
	}
	state, err := t.health.State(providerID)
	if err != nil || state == health.Unavailable {
		rec.s.ProviderID = ""
		t.record(ctx, rec, audit.EventSessionUnbound, providerID, "provider_unavailable")
		return "", false
	}
	return providerID, true
}

// Peek reports the provider a live session is bound to without touching it.
// Idle sessions and bindings to Unavailable providers read as unbound but are
// left for Lookup or the sweeper to clean up.
func (t *Table) Peek(sessionID string) (string, bool) {
	rec := t.get(sessionID)
	if rec == nil {
		return "", false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed || rec.s.ProviderID == "" || t.idle(rec, t.clock()) {
		return "", false
	}
	if state, err := t.health.State(rec.s.ProviderID); err != nil || state == health.Unavailable {
		return "", false
	}
	return rec.s.ProviderID, true
}

// Get returns a copy of the session.
func (t *Table) Get(sessionID string) (Session, bool) {
	rec := t.get(sessionID)
	if rec == nil {
		return Session{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return Session{}, false
	}
	return rec.s, true
}

// Release closes the session and removes it from the table. It reports
// whether the session existed.
func (t *Table) Release(ctx context.Context, sessionID string) bool {
	return t.remove(ctx, sessionID, StatusClosed, audit.EventSessionClosed, "released", nil)
}

// Acquire starts one unit of in-flight work on the session and returns a
// lease that ends it. The session is created if needed.
func (t *Table) Acquire(ctx context.Context, sessionID string) *Lease {
	rec := t.acquire(ctx, sessionID, Attrs{})
	defer rec.mu.Unlock()
	rec.s.CurrentVerifications++
	rec.s.LastActivity = t.clock()
	return &Lease{table: t, rec: rec}
}

// Sweep expires every session idle past the timeout and returns how many
// were evicted. In-flight leases on evicted sessions stay valid.
func (t *Table) Sweep(ctx context.Context) int {
	if t.cfg.IdleTimeout <= 0 {
		return 0
	}
	now := t.clock()
	evicted := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		for id, rec := range sh.m {
			rec.mu.Lock()
			if t.idle(rec, now) {
				delete(sh.m, id)
				t.finish(ctx, rec, StatusExpired, audit.EventSessionExpired, "idle")
				evicted++
			}
			rec.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	if evicted > 0 {
		t.metrics.IncrementSessionsEvicted(evicted)
		if t.logger != nil {
			t.logger.InfoContext(ctx, "evicted idle sessions", "count", evicted)
		}
	}
	return evicted
}

// Run sweeps on every interval tick until ctx is cancelled.
func (t *Table) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	return int(t.active.Load())
}

// acquire returns the live record for sessionID, locked, creating it if it
// does not exist. A record removed between lookup and lock is retried.
func (t *Table) acquire(ctx context.Context, sessionID string, attrs Attrs) *record {
	sh := t.shardFor(sessionID)
	var prior []TrailEntry
	for {
		rec := t.get(sessionID)
		created := false
		if rec == nil {
			sh.mu.Lock()
			rec = sh.m[sessionID]
			if rec == nil {
				now := t.clock()
				rec = &record{s: Session{
					ID:           sessionID,
					Attrs:        attrs,
					CreatedAt:    now,
					LastActivity: now,
					Status:       StatusActive,
				}, trail: prior}
				sh.m[sessionID] = rec
				created = true
			}
			sh.mu.Unlock()
		}

		rec.mu.Lock()
		if rec.removed {
			rec.mu.Unlock()
			continue
		}
		if !created && t.idle(rec, t.clock()) {
			rec.mu.Unlock()
			t.expire(ctx, sessionID)
			rec.mu.Lock()
			if rec.removed {
				prior = append([]TrailEntry(nil), rec.trail...)
			}
			rec.mu.Unlock()
			continue
		}
		if created {
			t.metrics.SetActiveSessions(int(t.active.Add(1)))
			t.record(ctx, rec, audit.EventSessionCreated, "", "")
		}
		return rec
	}
}

func (t *Table) get(sessionID string) *record {
	sh := t.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.m[sessionID]
}

func (t *Table) expire(ctx context.Context, sessionID string) {
	now := t.clock()
	t.remove(ctx, sessionID, StatusExpired, audit.EventSessionExpired, "idle", func(rec *record) bool {
		return t.idle(rec, now)
	})
}

func (t *Table) remove(ctx context.Context, sessionID string, status Status, action audit.AuditEvent, reason string, when func(*record) bool) bool {
	sh := t.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.m[sessionID]
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if when != nil && !when(rec) {
		return false
	}
	delete(sh.m, sessionID)
	t.finish(ctx, rec, status, action, reason)
	return true
}

// finish ends a removed session. Must be called with the shard and record
// locks held.
func (t *Table) finish(ctx context.Context, rec *record, status Status, action audit.AuditEvent, reason string) {
	rec.removed = true
	rec.s.Status = status
	providerID := rec.s.ProviderID
	rec.s.ProviderID = ""
	t.record(ctx, rec, action, providerID, reason)
	t.metrics.SetActiveSessions(int(t.active.Add(-1)))
}

func (t *Table) idle(rec *record, now time.Time) bool {
	return t.cfg.IdleTimeout > 0 && now.Sub(rec.s.LastActivity) >= t.cfg.IdleTimeout
}

// record appends to the session's trail, persists it and emits the audit
// event. Must be called with the record lock held.
func (t *Table) record(ctx context.Context, rec *record, action audit.AuditEvent, providerID, reason string) {
	entry := TrailEntry{Action: string(action), ProviderID: providerID, Reason: reason, At: t.clock()}
	rec.trail = append(rec.trail, entry)
	if len(rec.trail) > maxTrailItems {
		rec.trail = rec.trail[len(rec.trail)-maxTrailItems:]
	}
	if t.trail != nil {
		t.trail.SaveTrail(ctx, rec.s.ID, append([]TrailEntry(nil), rec.trail...))
	}
	audit.LogAudit(ctx, t.logger, t.publisher, audit.Event{
		Action:     string(action),
		SessionID:  rec.s.ID,
		ProviderID: providerID,
		Reason:     reason,
		Timestamp:  entry.At,
	})
}

func (t *Table) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return t.shards[h.Sum32()%shardCount]
}
