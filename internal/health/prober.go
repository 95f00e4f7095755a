package health

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"verigate/internal/platform/metrics"
	audit "verigate/pkg/platform/audit"
)

// Prober issues a lightweight synthetic call against a provider.
type Prober interface {
	Probe(ctx context.Context, providerID string) Outcome
}

// ProbeRunner periodically probes providers that are not Healthy. Probe calls
// run without any monitor lock held; only the counter update afterwards takes
// the provider's entry lock.
type ProbeRunner struct {
	monitor     *Monitor
	prober      Prober
	interval    time.Duration
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	publisher   audit.Emitter
}

type ProbeOption func(*ProbeRunner)

func WithProbeLogger(logger *slog.Logger) ProbeOption {
	return func(r *ProbeRunner) {
		r.logger = logger
	}
}

func WithProbeMetrics(m *metrics.Metrics) ProbeOption {
	return func(r *ProbeRunner) {
		r.metrics = m
	}
}

func WithProbeAuditPublisher(p audit.Emitter) ProbeOption {
	return func(r *ProbeRunner) {
		r.publisher = p
	}
}

// NewProbeRunner builds a runner using the monitor's probe settings.
func NewProbeRunner(monitor *Monitor, prober Prober, opts ...ProbeOption) *ProbeRunner {
	cfg := monitor.Config()
	r := &ProbeRunner{
		monitor:     monitor,
		prober:      prober,
		interval:    cfg.ProbeInterval,
		timeout:     cfg.ProbeTimeout,
		concurrency: cfg.ProbeConcurrency,
	}
	if r.interval <= 0 {
		r.interval = DefaultConfig().ProbeInterval
	}
	if r.timeout <= 0 {
		r.timeout = DefaultConfig().ProbeTimeout
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run probes on every interval tick until ctx is cancelled.
func (r *ProbeRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce probes every non-Healthy provider with bounded concurrency and
// returns the number of probes recorded.
func (r *ProbeRunner) RunOnce(ctx context.Context) int {
	ids := r.monitor.NeedsProbe()
	if len(ids) == 0 {
		return 0
	}

	recorded := make([]bool, len(ids))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			recorded[i] = r.probe(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range recorded {
		if ok {
			n++
		}
	}
	return n
}

func (r *ProbeRunner) probe(ctx context.Context, providerID string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	outcome := r.prober.Probe(probeCtx, providerID)
	cancel()

	// Shutdown is not evidence about the provider.
	if ctx.Err() != nil {
		return false
	}

	result := "success"
	if !outcome.Success {
		result = string(outcome.ErrorKind)
		audit.LogAudit(ctx, r.logger, r.publisher, audit.Event{
			Action:     string(audit.EventProbeFailed),
			ProviderID: providerID,
			Reason:     string(outcome.ErrorKind),
		})
	}
	r.metrics.IncrementProbe(providerID, result)

	if _, err := r.monitor.RecordProbe(ctx, providerID, outcome); err != nil {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "failed to record probe outcome",
				"provider_id", providerID,
				"error", err,
			)
		}
		return false
	}
	return true
}
