package httptransport

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"verigate/internal/health"
	"verigate/internal/pending"
	"verigate/internal/providers"
	"verigate/internal/router"
	"verigate/internal/session"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/requestcontext"
)

// VerificationRequest is the body of POST /v1/verifications and
// POST /v1/route/preview.
type VerificationRequest struct {
	RequestID  string          `json:"request_id"`
	Capability string          `json:"capability"`
	Units      int             `json:"units"`
	SessionID  string          `json:"session_id"`
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload"`
	Exclude    []string        `json:"exclude"`
}

// Normalize trims identifiers in place.
func (r *VerificationRequest) Normalize() {
	r.RequestID = strings.TrimSpace(r.RequestID)
	r.Capability = strings.ToLower(strings.TrimSpace(r.Capability))
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *VerificationRequest) Validate() error {
	if r.Capability == "" {
		return dErrors.New(dErrors.CodeValidation, "capability is required")
	}
	if r.Units < 0 {
		return dErrors.New(dErrors.CodeValidation, "units cannot be negative")
	}
	return nil
}

// ToRouterRequest builds the routing request. The HTTP request ID is used
// when the body carries none, so client retries stay idempotent.
func (r *VerificationRequest) ToRouterRequest(ctx context.Context) router.Request {
	id := r.RequestID
	if id == "" {
		id = requestcontext.RequestID(ctx)
	}
	return router.Request{
		ID:         id,
		Capability: providers.Capability(r.Capability),
		Units:      r.Units,
		SessionID:  r.SessionID,
		Attrs: session.Attrs{
			UserID:   r.UserID,
			ClientIP: requestcontext.ClientIP(ctx),
		},
		Payload: r.Payload,
		Exclude: r.Exclude,
	}
}

// OutcomeRequest is the body of POST /v1/providers/{id}/outcomes.
type OutcomeRequest struct {
	Success   bool   `json:"success"`
	LatencyMS int64  `json:"latency_ms"`
	ErrorKind string `json:"error_kind"`
}

var reportableKinds = map[health.ErrorKind]bool{
	health.ErrorTimeout:     true,
	health.ErrorServer:      true,
	health.ErrorRateLimited: true,
	health.ErrorTransport:   true,
	health.ErrorExplicit:    true,
}

func (r *OutcomeRequest) Validate() error {
	if r.LatencyMS < 0 {
		return dErrors.New(dErrors.CodeValidation, "latency_ms cannot be negative")
	}
	if r.Success && r.ErrorKind != "" {
		return dErrors.New(dErrors.CodeValidation, "error_kind is only valid for failures")
	}
	if !r.Success && r.ErrorKind != "" && !reportableKinds[health.ErrorKind(r.ErrorKind)] {
		return dErrors.Newf(dErrors.CodeValidation, "unknown error_kind %q", r.ErrorKind)
	}
	return nil
}

func (r *OutcomeRequest) ToOutcome() health.Outcome {
	latency := time.Duration(r.LatencyMS) * time.Millisecond
	if r.Success {
		return health.Succeeded(latency)
	}
	kind := health.ErrorKind(r.ErrorKind)
	if kind == health.ErrorNone {
		kind = health.ErrorExplicit
	}
	return health.Failed(kind, latency)
}

// BindRequest is the body of PUT /v1/sessions/{id}/binding.
type BindRequest struct {
	ProviderID string `json:"provider_id"`
}

func (r *BindRequest) Validate() error {
	r.ProviderID = strings.TrimSpace(r.ProviderID)
	if r.ProviderID == "" {
		return dErrors.New(dErrors.CodeValidation, "provider_id is required")
	}
	return nil
}

// ResolveRequest is the body of POST /v1/pending/{id}/resolve.
type ResolveRequest struct {
	ProviderID string `json:"provider_id"`
	Note       string `json:"note"`
}

func (r *ResolveRequest) Validate() error {
	r.ProviderID = strings.TrimSpace(r.ProviderID)
	if r.ProviderID == "" {
		return dErrors.New(dErrors.CodeValidation, "provider_id is required")
	}
	if len(r.Note) > 1024 {
		return dErrors.New(dErrors.CodeValidation, "note is too long")
	}
	return nil
}

// ScaleRequest is the body of POST /v1/capacity/scale.
type ScaleRequest struct {
	Nodes int `json:"nodes"`
}

func parseStatus(raw string) (pending.Status, error) {
	if raw == "" {
		return "", nil
	}
	s := pending.Status(strings.ToLower(raw))
	if !s.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw)
	}
	return s, nil
}

// ProviderRequest is the body of PUT /v1/providers/{id}. Window is a Go
// duration string such as "1m".
type ProviderRequest struct {
	Kind         string   `json:"kind"`
	Capabilities []string `json:"capabilities"`
	Limits       struct {
		MaxUnitsPerRequest int    `json:"max_units_per_request"`
		RateLimitPerWindow int    `json:"rate_limit_per_window"`
		Window             string `json:"window"`
	} `json:"limits"`
	Endpoint string `json:"endpoint"`
	ProbeURL string `json:"probe_url"`
}

func (r *ProviderRequest) ToProvider(id string) (providers.Provider, error) {
	var window time.Duration
	if r.Limits.Window != "" {
		d, err := time.ParseDuration(r.Limits.Window)
		if err != nil {
			return providers.Provider{}, dErrors.Newf(dErrors.CodeValidation, "invalid window %q", r.Limits.Window)
		}
		window = d
	}
	caps := make([]providers.Capability, 0, len(r.Capabilities))
	for _, c := range r.Capabilities {
		caps = append(caps, providers.Capability(c))
	}
	return providers.Provider{
		ID:           id,
		Kind:         providers.Kind(r.Kind),
		Capabilities: caps,
		Limits: providers.Limits{
			MaxUnitsPerRequest: r.Limits.MaxUnitsPerRequest,
			RateLimitPerWindow: r.Limits.RateLimitPerWindow,
			Window:             window,
		},
		Endpoint: r.Endpoint,
		ProbeURL: r.ProbeURL,
	}, nil
}
