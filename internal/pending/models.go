// Package pending tracks requests that were deferred to manual processing
// because no live provider could take them.
package pending

import (
	"time"

	dErrors "verigate/pkg/domain-errors"
)

// Status is a pending record's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusExpired  Status = "expired"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusResolved, StatusExpired:
		return true
	}
	return false
}

// Record is a request queued for manual reconciliation. Records are keyed by
// request id, so re-enqueueing the same request is a no-op.
type Record struct {
	ID         string    `json:"id"`
	Capability string    `json:"capability"`
	Units      int       `json:"units,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Reason     string    `json:"reason"`
	Consulted  []string  `json:"consulted,omitempty"`
	Status     Status    `json:"status"`
	ResolvedBy string    `json:"resolved_by,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Config controls record lifetimes.
type Config struct {
	// TTL is how long a record may stay pending before it expires.
	TTL time.Duration
	// Retention is how long resolved and expired records are kept.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{TTL: 72 * time.Hour, Retention: 7 * 24 * time.Hour}
}

func (c Config) Validate() error {
	if c.TTL <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "pending ttl must be positive")
	}
	if c.Retention < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "pending retention cannot be negative")
	}
	return nil
}

var ErrRecordNotFound = dErrors.New(dErrors.CodeNotFound, "pending record not found")
