// Package router turns a request into a routing decision: sticky session
// first, then the ranked fallback chain walked through admission control,
// then the manual queue. Dispatch outcomes are fed back into health.
package router

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"verigate/internal/admission"
	"verigate/internal/fallback"
	"verigate/internal/health"
	"verigate/internal/pending"
	"verigate/internal/platform/metrics"
	"verigate/internal/providers"
	"verigate/internal/session"
	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/clock"
)

var tracer = otel.Tracer("verigate.router")

// Router wires the registry, health monitor, resolver, session table and
// admission controller together. It holds no routing state of its own.
type Router struct {
	cfg       Config
	registry  *providers.Registry
	monitor   *health.Monitor
	resolver  *fallback.Resolver
	sessions  *session.Table
	admission *admission.Controller
	pending   *pending.Queue

	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher audit.Emitter
}

type Option func(*Router)

// WithPendingQueue records manual-queue decisions as pending records.
func WithPendingQueue(q *pending.Queue) Option {
	return func(r *Router) {
		r.pending = q
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Router) {
		r.clock = clock.OrReal(c)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(r *Router) {
		r.publisher = p
	}
}

// New builds a router and subscribes the admission controller to health
// transitions so Unavailable providers lose their capacity.
func New(
	cfg Config,
	registry *providers.Registry,
	monitor *health.Monitor,
	sessions *session.Table,
	admit *admission.Controller,
	opts ...Option,
) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		cfg:       cfg,
		registry:  registry,
		monitor:   monitor,
		sessions:  sessions,
		admission: admit,
		clock:     clock.Real(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resolver = fallback.NewResolver(registry, monitor, admit, fallback.WithLogger(r.logger))
	monitor.Subscribe(health.ListenerFunc(admit.OnTransition))
	return r, nil
}

// RegisterProvider adds or updates a provider everywhere it is tracked.
// Health state survives re-registration.
func (r *Router) RegisterProvider(ctx context.Context, p providers.Provider) (bool, error) {
	created, err := r.registry.Register(p)
	if err != nil {
		return false, err
	}
	r.monitor.Track(p.ID)
	r.admission.Configure(p.ID, p.Limits)
	if created {
		audit.LogAudit(ctx, r.logger, r.publisher, audit.Event{
			Action:     string(audit.EventProviderRegistered),
			ProviderID: p.ID,
		})
	}
	return created, nil
}

// Route picks a provider for req and reserves an admission slot on it, or
// defers the request to the manual queue. The caller must Release the
// decision once dispatch finishes or is abandoned. Errors are reserved for
// invalid requests, configuration problems and cancellation.
func (r *Router) Route(ctx context.Context, req Request) (*Decision, error) {
	start := r.clock()
	ctx, span := tracer.Start(ctx, "Router.Route", trace.WithAttributes(
		attribute.String("capability", string(req.Capability)),
		attribute.Bool("has_session", req.SessionID != ""),
	))
	defer span.End()

	d, err := r.route(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("provider_id", d.ProviderID),
		attribute.String("reason", string(d.Reason)),
		attribute.Bool("manual_queue", d.ManualQueue),
		attribute.StringSlice("consulted", d.Consulted),
	)
	r.metrics.IncrementRouteDecision(string(req.Capability), string(d.Reason))
	r.metrics.ObserveRouteLatency(r.clock().Sub(start))
	return d, nil
}

func (r *Router) route(ctx context.Context, req Request) (*Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	d := &Decision{RequestID: req.ID, Consulted: []string{}}

	useSessions := r.cfg.SessionAffinity && req.SessionID != ""
	if useSessions {
		r.sessions.Touch(ctx, req.SessionID, req.Attrs)
	}

	sticky := ""
	if useSessions {
		if providerID, ok := r.sessions.Lookup(ctx, req.SessionID); ok {
			sticky = r.stickyCandidate(req, providerID)
		}
	}
	if sticky != "" {
		d.Consulted = append(d.Consulted, sticky)
		admitted, err := r.admit(ctx, d, sticky, ReasonSticky)
		if err != nil {
			return nil, err
		}
		if admitted {
			return d, nil
		}
	}

	chain, err := r.resolver.Resolve(fallback.Request{
		Capability: req.Capability,
		Units:      req.Units,
		Exclude:    req.Exclude,
	})
	if err != nil {
		return nil, err
	}

	reason := ReasonRanked
	if sticky != "" {
		reason = ReasonFallback
	}
	for _, cand := range chain.Candidates {
		id := cand.Provider.ID
		if id == sticky {
			continue
		}
		d.Consulted = append(d.Consulted, id)
		admitted, err := r.admit(ctx, d, id, reason)
		if err != nil {
			return nil, err
		}
		if admitted {
			if useSessions && r.cfg.StickySession {
				r.sessions.Bind(ctx, req.SessionID, id)
			}
			return d, nil
		}
		reason = ReasonFallback
	}

	exhausted := ReasonAllUnavailable
	if len(d.Consulted) > 0 {
		exhausted = ReasonAdmissionExhausted
	}
	if err := r.deferToManualQueue(ctx, d, req, exhausted); err != nil {
		return nil, err
	}
	return d, nil
}

// stickyCandidate returns the session's bound provider if it is Healthy and
// can serve the request. Degraded bindings fall through to ranking.
func (r *Router) stickyCandidate(req Request, providerID string) string {
	if slices.Contains(req.Exclude, providerID) {
		return ""
	}
	state, err := r.monitor.State(providerID)
	if err != nil || state != health.Healthy {
		return ""
	}
	p, ok := r.registry.Get(providerID)
	if !ok || !p.Supports(req.Capability) || !p.Limits.Accepts(req.Units) {
		return ""
	}
	return providerID
}

// admit tries one candidate. Refusals are not errors; only cancellation is.
func (r *Router) admit(ctx context.Context, d *Decision, providerID string, reason Reason) (bool, error) {
	ticket, err := r.admission.Admit(ctx, providerID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if _, refused := admission.AsRefused(err); !refused && r.logger != nil {
			r.logger.WarnContext(ctx, "admission failed for candidate",
				"provider_id", providerID,
				"error", err,
			)
		}
		return false, nil
	}
	// Abandoned before dispatch: give the slot back.
	if err := ctx.Err(); err != nil {
		ticket.Release()
		return false, err
	}
	d.ProviderID = providerID
	d.Reason = reason
	d.ticket = ticket
	return true, nil
}

func (r *Router) deferToManualQueue(ctx context.Context, d *Decision, req Request, reason Reason) error {
	d.ManualQueue = true
	d.ProviderID = ""
	d.Reason = reason
	if r.pending == nil {
		return nil
	}
	rec, _, err := r.pending.Enqueue(ctx, pending.Record{
		ID:         req.ID,
		Capability: string(req.Capability),
		Units:      req.Units,
		SessionID:  req.SessionID,
		Reason:     string(reason),
		Consulted:  d.Consulted,
	})
	if err != nil {
		return err
	}
	d.PendingID = rec.ID
	return nil
}

// Preview reports how req would be routed right now without admitting,
// binding or queueing anything.
func (r *Router) Preview(ctx context.Context, req Request) (Preview, error) {
	if err := req.Validate(); err != nil {
		return Preview{}, err
	}
	var p Preview
	if r.cfg.SessionAffinity && req.SessionID != "" {
		if providerID, ok := r.sessions.Peek(req.SessionID); ok {
			p.StickyProvider = r.stickyCandidate(req, providerID)
		}
	}
	chain, err := r.resolver.Resolve(fallback.Request{
		Capability: req.Capability,
		Units:      req.Units,
		Exclude:    req.Exclude,
	})
	if err != nil {
		return Preview{}, err
	}
	p.Chain = chain.Candidates
	if p.Chain == nil {
		p.Chain = []fallback.Candidate{}
	}
	p.ManualQueue = p.StickyProvider == "" && chain.ManualQueue()
	return p, nil
}

// Report feeds a dispatch outcome into the health monitor.
func (r *Router) Report(ctx context.Context, providerID string, o health.Outcome) (health.Snapshot, error) {
	result := "success"
	if !o.Success {
		result = string(o.ErrorKind)
	}
	r.metrics.IncrementDispatch(providerID, result)
	snap, err := r.monitor.Record(ctx, providerID, o)
	if err != nil {
		return health.Snapshot{}, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown provider "+providerID)
	}
	return snap, nil
}

// ProviderHealth returns the provider's health record.
func (r *Router) ProviderHealth(providerID string) (health.Snapshot, error) {
	snap, err := r.monitor.Snapshot(providerID)
	if err != nil {
		return health.Snapshot{}, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown provider "+providerID)
	}
	return snap, nil
}

// Providers lists every provider with its health and admission usage in
// registration order.
func (r *Router) Providers() []ProviderStatus {
	all := r.registry.All()
	out := make([]ProviderStatus, 0, len(all))
	for _, p := range all {
		st := ProviderStatus{Provider: p}
		if snap, err := r.monitor.Snapshot(p.ID); err == nil {
			st.Health = snap
		}
		if usage, err := r.admission.Usage(p.ID); err == nil {
			st.Admission = usage
		}
		out = append(out, st)
	}
	return out
}

// BindSession binds a session explicitly. Unlike the table itself, this
// entry point validates its input and returns errors instead of panicking.
func (r *Router) BindSession(ctx context.Context, sessionID, providerID string) (session.Session, error) {
	if !r.cfg.SessionAffinity {
		return session.Session{}, dErrors.New(dErrors.CodeConflict, "session affinity is disabled")
	}
	if sessionID == "" {
		return session.Session{}, dErrors.New(dErrors.CodeValidation, "session id is required")
	}
	if !r.registry.Exists(providerID) {
		return session.Session{}, dErrors.Wrap(providers.ErrProviderNotFound, dErrors.CodeNotFound, "unknown provider "+providerID)
	}
	if state, err := r.monitor.State(providerID); err == nil && state == health.Unavailable {
		return session.Session{}, dErrors.New(dErrors.CodeConflict, "provider "+providerID+" is unavailable")
	}
	return r.sessions.Bind(ctx, sessionID, providerID), nil
}

// ReleaseSession drops the session and its binding. It reports whether the
// session existed.
func (r *Router) ReleaseSession(ctx context.Context, sessionID string) bool {
	return r.sessions.Release(ctx, sessionID)
}

// Session returns a copy of a session.
func (r *Router) Session(sessionID string) (session.Session, error) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return session.Session{}, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return s, nil
}
