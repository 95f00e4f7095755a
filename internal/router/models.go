package router

import (
	"encoding/json"
	"time"

	"verigate/internal/admission"
	"verigate/internal/fallback"
	"verigate/internal/health"
	"verigate/internal/providers"
	"verigate/internal/session"
	dErrors "verigate/pkg/domain-errors"
)

// Config holds the routing switches fixed at startup.
type Config struct {
	// SessionAffinity enables the session table. When off, session ids on
	// requests are ignored.
	SessionAffinity bool
	// StickySession binds a session to the provider that admitted it.
	StickySession bool
	// MaxAttempts bounds dispatch attempts per Execute call.
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{SessionAffinity: true, StickySession: true, MaxAttempts: 3}
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return dErrors.New(dErrors.CodeConfiguration, "max attempts must be at least 1")
	}
	if c.StickySession && !c.SessionAffinity {
		return dErrors.New(dErrors.CodeConfiguration, "sticky sessions require session affinity")
	}
	return nil
}

// Request is one verification or inference request. Payload is opaque and
// only forwarded by the dispatcher.
type Request struct {
	ID         string               `json:"request_id,omitempty"`
	Capability providers.Capability `json:"capability"`
	Units      int                  `json:"units,omitempty"`
	SessionID  string               `json:"session_id,omitempty"`
	Attrs      session.Attrs        `json:"attrs,omitzero"`
	Payload    json.RawMessage      `json:"payload,omitempty"`
	// Exclude lists providers this request must not use.
	Exclude []string `json:"exclude,omitempty"`
}

func (r Request) Validate() error {
	if r.Capability == "" {
		return dErrors.New(dErrors.CodeValidation, "capability is required")
	}
	if r.Units < 0 {
		return dErrors.New(dErrors.CodeValidation, "units cannot be negative")
	}
	return nil
}

// Reason explains a routing decision. It is used as a metric label.
type Reason string

const (
	ReasonSticky             Reason = "sticky_session"
	ReasonRanked             Reason = "ranked"
	ReasonFallback           Reason = "fallback"
	ReasonAllUnavailable     Reason = "all_unavailable"
	ReasonAdmissionExhausted Reason = "admission_exhausted"
	ReasonAttemptsExhausted  Reason = "attempts_exhausted"
)

// Decision is the outcome of Route. Either ProviderID is set and the caller
// holds an admission slot until Release, or ManualQueue is true and the
// request has been deferred as PendingID. Manual queue is a valid result,
// not an error.
type Decision struct {
	RequestID   string   `json:"request_id"`
	ProviderID  string   `json:"provider_id,omitempty"`
	ManualQueue bool     `json:"manual_queue"`
	PendingID   string   `json:"pending_id,omitempty"`
	Consulted   []string `json:"consulted"`
	Reason      Reason   `json:"reason"`

	ticket *admission.Ticket
}

// Release returns the admission slot. It is idempotent and safe on manual
// queue decisions.
func (d *Decision) Release() {
	if d == nil {
		return
	}
	d.ticket.Release()
}

// Result is what a dispatcher reports for one call.
type Result struct {
	Success   bool
	Latency   time.Duration
	ErrorKind health.ErrorKind
	Body      json.RawMessage
}

// Outcome converts the result into a health observation.
func (r Result) Outcome() health.Outcome {
	if r.Success {
		return health.Succeeded(r.Latency)
	}
	kind := r.ErrorKind
	if kind == health.ErrorNone {
		kind = health.ErrorExplicit
	}
	return health.Failed(kind, r.Latency)
}

// Attempt is one dispatch made by Execute.
type Attempt struct {
	ProviderID string           `json:"provider_id"`
	Success    bool             `json:"success"`
	ErrorKind  health.ErrorKind `json:"error_kind,omitempty"`
	Latency    time.Duration    `json:"latency"`
}

// Execution is the result of Execute.
type Execution struct {
	RequestID   string          `json:"request_id"`
	ProviderID  string          `json:"provider_id,omitempty"`
	ManualQueue bool            `json:"manual_queue"`
	PendingID   string          `json:"pending_id,omitempty"`
	Reason      Reason          `json:"reason"`
	Attempts    []Attempt       `json:"attempts"`
	Response    json.RawMessage `json:"response,omitempty"`
}

// Preview is a read-only view of how a request would be routed.
type Preview struct {
	StickyProvider string               `json:"sticky_provider,omitempty"`
	Chain          []fallback.Candidate `json:"chain"`
	ManualQueue    bool                 `json:"manual_queue"`
}

// ProviderStatus combines a provider's registration, health and load.
type ProviderStatus struct {
	Provider  providers.Provider `json:"provider"`
	Health    health.Snapshot    `json:"health"`
	Admission admission.Usage    `json:"admission"`
}
