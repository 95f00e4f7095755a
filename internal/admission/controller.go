package admission

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"verigate/internal/health"
	"verigate/internal/platform/metrics"
	"verigate/internal/providers"
	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/clock"
)

// Controller admits requests against per-provider windows and the global
// in-flight cap. Each provider's window has its own lock; the global counter
// is lock-free, so admissions for different providers never contend.
type Controller struct {
	cfg       Config
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher audit.Emitter

	mu      sync.RWMutex
	windows map[string]*window

	nodes    atomic.Int64
	inFlight atomic.Int64

	scaleMu        sync.Mutex
	scalePending   bool
	scaleListeners []ScaleListener
}

type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) {
		ctrl.clock = clock.OrReal(c)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(ctrl *Controller) {
		ctrl.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ctrl *Controller) {
		ctrl.metrics = m
	}
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(ctrl *Controller) {
		ctrl.publisher = p
	}
}

// WithScaleListener registers a listener for scale-up requests.
func WithScaleListener(l ScaleListener) Option {
	return func(ctrl *Controller) {
		if l != nil {
			ctrl.scaleListeners = append(ctrl.scaleListeners, l)
		}
	}
}

// NewController starts at MinNodes.
func NewController(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:     cfg,
		clock:   clock.Real(),
		windows: make(map[string]*window),
	}
	c.nodes.Store(int64(cfg.MinNodes))
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetNodes(cfg.MinNodes)
	return c, nil
}

// Configure installs or updates a provider's window from its limits. The
// current window's count and the provider's in-flight load are kept.
func (c *Controller) Configure(providerID string, limits providers.Limits) {
	c.mu.Lock()
	w, ok := c.windows[providerID]
	if !ok {
		w = &window{}
		c.windows[providerID] = w
	}
	c.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.limit = limits.RateLimitPerWindow
	w.size = limits.Window
}

// OnTransition keeps the capacity view in step with health. Unavailable
// providers contribute no capacity.
func (c *Controller) OnTransition(t health.Transition) {
	w, err := c.window(t.ProviderID)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unavailable = t.To == health.Unavailable
}

// Admit reserves one slot for providerID. On success the caller owns the
// returned ticket and must release it when dispatch finishes. Refusals are
// *AdmissionRefused.
func (c *Controller) Admit(ctx context.Context, providerID string) (*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := c.window(providerID)
	if err != nil {
		return nil, err
	}

	now := c.clock()
	w.mu.Lock()
	if w.unavailable {
		w.mu.Unlock()
		return nil, c.refuse(ctx, &AdmissionRefused{ProviderID: providerID, Reason: ReasonUnavailable})
	}
	w.roll(now)
	if w.exhausted() {
		retry := w.retryAfter(now)
		w.mu.Unlock()
		return nil, c.refuse(ctx, &AdmissionRefused{ProviderID: providerID, RetryAfter: retry, Reason: ReasonRateLimited})
	}
	if !c.reserveSlot() {
		w.mu.Unlock()
		c.requestScale(ctx)
		return nil, c.refuse(ctx, &AdmissionRefused{ProviderID: providerID, Reason: ReasonCapacity})
	}
	w.count++
	w.inFlight.Add(1)
	w.mu.Unlock()

	c.metrics.SetInFlight(c.inFlight.Load())
	return &Ticket{controller: c, providerID: providerID, window: w}, nil
}

// reserveSlot takes one global slot unless the cap is reached.
func (c *Controller) reserveSlot() bool {
	for {
		cur := c.inFlight.Load()
		if cur >= c.Capacity() {
			return false
		}
		if c.inFlight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (c *Controller) release(w *window) {
	w.inFlight.Add(-1)
	n := c.inFlight.Add(-1)
	c.metrics.SetInFlight(n)
}

// Load returns the provider's current in-flight count.
func (c *Controller) Load(providerID string) int64 {
	w, err := c.window(providerID)
	if err != nil {
		return 0
	}
	return w.inFlight.Load()
}

// InFlight returns the global in-flight count.
func (c *Controller) InFlight() int64 {
	return c.inFlight.Load()
}

// Nodes returns the current node count.
func (c *Controller) Nodes() int {
	return int(c.nodes.Load())
}

// Capacity is nodes × slots per node.
func (c *Controller) Capacity() int64 {
	return c.nodes.Load() * int64(c.cfg.SlotsPerNode)
}

// Usage reports the provider's admission counters.
func (c *Controller) Usage(providerID string) (Usage, error) {
	w, err := c.window(providerID)
	if err != nil {
		return Usage{}, err
	}
	now := c.clock()
	w.mu.Lock()
	defer w.mu.Unlock()
	u := Usage{
		ProviderID:  providerID,
		Limit:       w.limit,
		InFlight:    w.inFlight.Load(),
		Unavailable: w.unavailable,
	}
	if w.limit > 0 && !w.start.IsZero() && now.Sub(w.start) < w.size {
		u.Admitted = w.count
		u.ResetsIn = w.retryAfter(now)
	}
	return u, nil
}

// Scale sets the node count. Capacity above the current count is only ever
// added here, never by admission itself.
func (c *Controller) Scale(ctx context.Context, nodes int) error {
	if nodes < c.cfg.MinNodes || nodes > c.cfg.MaxNodes {
		return dErrors.Newf(dErrors.CodeValidation, "nodes must be between %d and %d", c.cfg.MinNodes, c.cfg.MaxNodes)
	}
	c.scaleMu.Lock()
	prev := c.nodes.Swap(int64(nodes))
	c.scalePending = false
	c.scaleMu.Unlock()

	c.metrics.SetNodes(nodes)
	if int(prev) != nodes {
		audit.LogAudit(ctx, c.logger, c.publisher, audit.Event{
			Action: string(audit.EventScaled),
			From:   itoa(prev),
			To:     itoa(int64(nodes)),
		})
	}
	return nil
}

// requestScale notifies listeners once per saturation episode. A pending
// request is cleared by the next Scale call.
func (c *Controller) requestScale(ctx context.Context) {
	c.scaleMu.Lock()
	current := int(c.nodes.Load())
	if c.scalePending || current >= c.cfg.MaxNodes {
		c.scaleMu.Unlock()
		return
	}
	c.scalePending = true
	listeners := c.scaleListeners
	c.scaleMu.Unlock()

	req := ScaleRequest{
		Current:  current,
		Desired:  current + 1,
		InFlight: c.inFlight.Load(),
		At:       c.clock(),
	}
	c.metrics.IncrementScaleRequests()
	audit.LogAudit(ctx, c.logger, c.publisher, audit.Event{
		Action: string(audit.EventScaleRequested),
		From:   itoa(int64(req.Current)),
		To:     itoa(int64(req.Desired)),
	})
	for _, l := range listeners {
		l.OnScaleRequest(req)
	}
}

func (c *Controller) refuse(ctx context.Context, r *AdmissionRefused) error {
	c.metrics.IncrementAdmissionRefusal(r.ProviderID, string(r.Reason))
	audit.LogAudit(ctx, c.logger, c.publisher, audit.Event{
		Action:     string(audit.EventAdmissionRefused),
		ProviderID: r.ProviderID,
		Reason:     string(r.Reason),
	})
	return r
}

func (c *Controller) window(providerID string) (*window, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.windows[providerID]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return w, nil
}
