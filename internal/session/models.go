// Package session keeps the session affinity table: which provider a
// verification session is bound to, and how much of its work is in flight.
package session

import (
	"fmt"
	"time"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusClosed  Status = "closed"
)

// Attrs are optional tags captured when a session is first seen.
type Attrs struct {
	UserID   string `json:"user_id,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
}

// Session is a copy of a table entry.
type Session struct {
	ID                   string    `json:"id"`
	Attrs                Attrs     `json:"attrs"`
	ProviderID           string    `json:"provider_id,omitempty"`
	CurrentVerifications int       `json:"current_verifications"`
	CreatedAt            time.Time `json:"created_at"`
	LastActivity         time.Time `json:"last_activity"`
	Status               Status    `json:"status"`
}

// Bound reports whether the session currently has a provider binding.
func (s Session) Bound() bool {
	return s.ProviderID != ""
}

// IntegrityError signals a broken table invariant: a negative in-flight count
// or a binding to a provider that does not exist. It is raised with panic.
type IntegrityError struct {
	SessionID  string
	ProviderID string
	Detail     string
}

func (e *IntegrityError) Error() string {
	if e.ProviderID != "" {
		return fmt.Sprintf("session %s integrity violation (provider %s): %s", e.SessionID, e.ProviderID, e.Detail)
	}
	return fmt.Sprintf("session %s integrity violation: %s", e.SessionID, e.Detail)
}

// TrailEntry is one step of a session's audit history.
type TrailEntry struct {
	Action     string    `json:"action"`
	ProviderID string    `json:"provider_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Config controls idle eviction.
type Config struct {
	IdleTimeout time.Duration
}

// DefaultConfig evicts sessions idle for 30 minutes.
func DefaultConfig() Config {
	return Config{IdleTimeout: 30 * time.Minute}
}
