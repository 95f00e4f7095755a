// Package dispatch forwards routed requests to provider HTTP endpoints and
// probes them for the health monitor. Payloads are opaque; only the status
// code is interpreted.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"verigate/internal/health"
	"verigate/internal/providers"
	"verigate/internal/router"
	"verigate/pkg/requestcontext"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20

	HeaderRequestID  = "X-Request-ID"
	HeaderSessionID  = "X-Session-ID"
	HeaderCapability = "X-Capability"
)

// Directory resolves provider transport hints.
type Directory interface {
	Get(id string) (providers.Provider, bool)
}

// HTTPDispatcher implements router.Dispatcher and health.Prober.
type HTTPDispatcher struct {
	directory Directory
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*HTTPDispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *HTTPDispatcher) {
		d.client = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *HTTPDispatcher) {
		d.logger = logger
	}
}

func New(directory Directory, opts ...Option) *HTTPDispatcher {
	d := &HTTPDispatcher{
		directory: directory,
		client:    &http.Client{Timeout: defaultTimeout},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call POSTs the request payload to the provider endpoint.
func (d *HTTPDispatcher) Call(ctx context.Context, providerID string, req router.Request) router.Result {
	start := d.now()
	p, ok := d.directory.Get(providerID)
	if !ok || p.Endpoint == "" {
		d.logger.WarnContext(ctx, "no endpoint for provider", "provider_id", providerID)
		return router.Result{ErrorKind: health.ErrorExplicit}
	}

	body := req.Payload
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return router.Result{ErrorKind: health.ErrorExplicit, Latency: d.since(start)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderCapability, string(req.Capability))
	if req.ID != "" {
		httpReq.Header.Set(HeaderRequestID, req.ID)
	} else if id := requestcontext.RequestID(ctx); id != "" {
		httpReq.Header.Set(HeaderRequestID, id)
	}
	if req.SessionID != "" {
		httpReq.Header.Set(HeaderSessionID, req.SessionID)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		kind := classifyTransportError(err)
		d.logger.WarnContext(ctx, "provider call failed",
			"provider_id", providerID,
			"error_kind", kind,
			"error", err,
		)
		return router.Result{ErrorKind: kind, Latency: d.since(start)}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	latency := d.since(start)
	if kind := classifyStatus(resp.StatusCode); kind != health.ErrorNone {
		return router.Result{ErrorKind: kind, Latency: latency}
	}
	if readErr != nil {
		return router.Result{ErrorKind: classifyTransportError(readErr), Latency: latency}
	}
	// Oversized answers count as provider errors.
	if len(raw) > maxBodyBytes {
		d.logger.WarnContext(ctx, "provider response exceeds size limit",
			"provider_id", providerID,
			"limit_bytes", maxBodyBytes,
		)
		return router.Result{ErrorKind: health.ErrorExplicit, Latency: latency}
	}

	res := router.Result{Success: true, Latency: latency}
	if len(raw) > 0 && json.Valid(raw) {
		res.Body = raw
	}
	return res
}

// Probe GETs the provider's probe URL, falling back to its endpoint.
func (d *HTTPDispatcher) Probe(ctx context.Context, providerID string) health.Outcome {
	start := d.now()
	p, ok := d.directory.Get(providerID)
	if !ok {
		return health.Failed(health.ErrorExplicit, 0)
	}
	target := p.ProbeURL
	if target == "" {
		target = p.Endpoint
	}
	if target == "" {
		return health.Failed(health.ErrorExplicit, 0)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return health.Failed(health.ErrorExplicit, d.since(start))
	}
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return health.Failed(classifyTransportError(err), d.since(start))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()

	if kind := classifyStatus(resp.StatusCode); kind != health.ErrorNone {
		return health.Failed(kind, d.since(start))
	}
	return health.Succeeded(d.since(start))
}

func (d *HTTPDispatcher) since(start time.Time) time.Duration {
	return d.now().Sub(start)
}

func classifyStatus(status int) health.ErrorKind {
	switch {
	case status >= 200 && status < 300:
		return health.ErrorNone
	case status == http.StatusTooManyRequests:
		return health.ErrorRateLimited
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return health.ErrorTimeout
	case status >= 500:
		return health.ErrorServer
	default:
		return health.ErrorExplicit
	}
}

func classifyTransportError(err error) health.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return health.ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return health.ErrorTimeout
	}
	return health.ErrorTransport
}
