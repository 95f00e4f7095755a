package httptransport

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Routing,PendingQueue,Capacity

import (
	"context"
	"log/slog"

	"verigate/internal/health"
	"verigate/internal/pending"
	"verigate/internal/providers"
	"verigate/internal/router"
	"verigate/internal/session"
	audit "verigate/pkg/platform/audit"
)

// Routing is the routing core surface the HTTP layer drives.
type Routing interface {
	Execute(ctx context.Context, req router.Request, dispatcher router.Dispatcher) (*router.Execution, error)
	Preview(ctx context.Context, req router.Request) (router.Preview, error)
	Report(ctx context.Context, providerID string, o health.Outcome) (health.Snapshot, error)
	ProviderHealth(providerID string) (health.Snapshot, error)
	Providers() []router.ProviderStatus
	RegisterProvider(ctx context.Context, p providers.Provider) (bool, error)
	BindSession(ctx context.Context, sessionID, providerID string) (session.Session, error)
	ReleaseSession(ctx context.Context, sessionID string) bool
	Session(sessionID string) (session.Session, error)
}

// PendingQueue exposes manual-queue records to operators.
type PendingQueue interface {
	Get(id string) (pending.Record, error)
	List(status pending.Status) []pending.Record
	Resolve(ctx context.Context, id, resolvedBy, note string) (pending.Record, error)
}

// Capacity exposes the admission controller's node count.
type Capacity interface {
	Nodes() int
	Capacity() int64
	InFlight() int64
	Scale(ctx context.Context, nodes int) error
}

// TrailReader loads a session's persisted lifecycle trail.
type TrailReader interface {
	Trail(ctx context.Context, sessionID string) ([]session.TrailEntry, error)
}

// AuditReader lists recently shipped audit events.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Handler is the thin HTTP layer over the routing core. It holds no routing
// state of its own.
type Handler struct {
	routing    Routing
	dispatcher router.Dispatcher
	pending    PendingQueue
	capacity   Capacity
	trails     TrailReader
	audit      AuditReader
	logger     *slog.Logger
}

type Option func(*Handler)

func WithTrailReader(t TrailReader) Option {
	return func(h *Handler) {
		h.trails = t
	}
}

func WithAuditReader(a AuditReader) Option {
	return func(h *Handler) {
		h.audit = a
	}
}

func New(routing Routing, dispatcher router.Dispatcher, pendingQueue PendingQueue, capacity Capacity, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		routing:    routing,
		dispatcher: dispatcher,
		pending:    pendingQueue,
		capacity:   capacity,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
