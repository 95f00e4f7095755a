package pending

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"verigate/internal/platform/metrics"
	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/clock"
	"verigate/pkg/platform/sentinel"
)

const (
	recordKeyPrefix = "pending:record:"
	indexKey        = "pending:index"
)

// KV is the write-behind key/value surface records are persisted through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(key string, value []byte)
	Delete(key string)
}

// Queue holds pending records in memory and mirrors every change to the
// store. The in-memory view is authoritative while the process runs; the
// store is only read by Restore.
type Queue struct {
	cfg       Config
	kv        KV
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher audit.Emitter

	mu      sync.RWMutex
	records map[string]*Record
}

type Option func(*Queue)

func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		q.clock = clock.OrReal(c)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(q *Queue) {
		q.publisher = p
	}
}

func NewQueue(cfg Config, kv KV, opts ...Option) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	q := &Queue{
		cfg:     cfg,
		kv:      kv,
		clock:   clock.Real(),
		records: make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue stores rec as pending and reports whether it was new. A record
// with the same id is returned unchanged. An empty id gets a generated one.
func (q *Queue) Enqueue(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.Capability == "" {
		return Record{}, false, dErrors.New(dErrors.CodeValidation, "capability is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.records[rec.ID]; ok {
		return clone(existing), false, nil
	}

	now := q.clock()
	rec.Status = StatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.ExpiresAt = now.Add(q.cfg.TTL)
	rec.Consulted = slices.Clone(rec.Consulted)
	stored := rec
	q.records[rec.ID] = &stored
	q.persist(ctx, &stored)
	q.persistIndex()
	q.reportCounts()

	audit.LogAudit(ctx, q.logger, q.publisher, audit.Event{
		Action:     string(audit.EventManualQueued),
		SessionID:  rec.SessionID,
		RequestID:  rec.ID,
		Capability: rec.Capability,
		Reason:     rec.Reason,
	})
	return clone(&stored), true, nil
}

// Get returns a record by id.
func (q *Queue) Get(id string) (Record, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	rec, ok := q.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return clone(rec), nil
}

// List returns records with the given status, oldest first. An empty status
// lists everything.
func (q *Queue) List(status Status) []Record {
	q.mu.RLock()
	out := make([]Record, 0, len(q.records))
	for _, rec := range q.records {
		if status == "" || rec.Status == status {
			out = append(out, clone(rec))
		}
	}
	q.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Resolve marks a pending record as handled. Only pending records can be
// resolved; expired ones need to be resubmitted.
func (q *Queue) Resolve(ctx context.Context, id, resolvedBy, note string) (Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if rec.Status != StatusPending {
		return Record{}, dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeConflict, "record is "+string(rec.Status))
	}
	rec.Status = StatusResolved
	rec.ResolvedBy = resolvedBy
	rec.Note = note
	rec.UpdatedAt = q.clock()
	q.persist(ctx, rec)
	q.reportCounts()

	audit.LogAudit(ctx, q.logger, q.publisher, audit.Event{
		Action:     string(audit.EventPendingResolved),
		RequestID:  rec.ID,
		SessionID:  rec.SessionID,
		ProviderID: resolvedBy,
		Capability: rec.Capability,
	})
	return clone(rec), nil
}

// Sweep expires overdue pending records and drops terminal records past the
// retention period. It returns the number of records expired.
func (q *Queue) Sweep(ctx context.Context) int {
	now := q.clock()
	q.mu.Lock()
	defer q.mu.Unlock()

	expired := 0
	dropped := false
	for id, rec := range q.records {
		switch {
		case rec.Status == StatusPending && !now.Before(rec.ExpiresAt):
			rec.Status = StatusExpired
			rec.UpdatedAt = now
			q.persist(ctx, rec)
			expired++
			audit.LogAudit(ctx, q.logger, q.publisher, audit.Event{
				Action:     string(audit.EventPendingExpired),
				RequestID:  rec.ID,
				SessionID:  rec.SessionID,
				Capability: rec.Capability,
			})
		case rec.Status != StatusPending && q.cfg.Retention > 0 && now.Sub(rec.UpdatedAt) >= q.cfg.Retention:
			delete(q.records, id)
			q.kv.Delete(recordKeyPrefix + id)
			dropped = true
		}
	}
	if dropped {
		q.persistIndex()
	}
	if expired > 0 || dropped {
		q.reportCounts()
	}
	return expired
}

// Run sweeps on every interval tick until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			q.Sweep(ctx)
		}
	}
}

// Restore reloads records persisted by a previous process. It is meant to
// run once at startup, before the queue is shared.
func (q *Queue) Restore(ctx context.Context) (int, error) {
	raw, err := q.kv.Get(ctx, indexKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending index")
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt pending index")
	}

	loaded := make(map[string]*Record, len(ids))
	for _, id := range ids {
		data, err := q.kv.Get(ctx, recordKeyPrefix+id)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending record "+id)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			if q.logger != nil {
				q.logger.WarnContext(ctx, "skipping corrupt pending record", "request_id", id, "error", err)
			}
			continue
		}
		loaded[rec.ID] = &rec
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for id, rec := range loaded {
		if _, ok := q.records[id]; !ok {
			q.records[id] = rec
		}
	}
	q.reportCounts()
	return len(loaded), nil
}

// persist must be called with mu held.
func (q *Queue) persist(ctx context.Context, rec *Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		if q.logger != nil {
			q.logger.ErrorContext(ctx, "failed to encode pending record", "request_id", rec.ID, "error", err)
		}
		return
	}
	q.kv.Set(recordKeyPrefix+rec.ID, payload)
}

// persistIndex must be called with mu held.
func (q *Queue) persistIndex() {
	ids := make([]string, 0, len(q.records))
	for id := range q.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	payload, err := json.Marshal(ids)
	if err != nil {
		return
	}
	q.kv.Set(indexKey, payload)
}

// reportCounts must be called with mu held.
func (q *Queue) reportCounts() {
	counts := map[Status]int{StatusPending: 0, StatusResolved: 0, StatusExpired: 0}
	for _, rec := range q.records {
		counts[rec.Status]++
	}
	for status, n := range counts {
		q.metrics.SetPending(string(status), n)
	}
}

func clone(rec *Record) Record {
	out := *rec
	out.Consulted = slices.Clone(rec.Consulted)
	return out
}
