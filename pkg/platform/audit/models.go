package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance, such as a
	// government lookup being deferred to manual processing.
	CategoryCompliance EventCategory = "compliance"

	// CategoryAvailability covers provider health transitions and capacity
	// changes. These feed alerting.
	CategoryAvailability EventCategory = "availability"

	// CategoryOperations covers routine activity useful for debugging.
	// Examples: session binding, admission refusals.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from routing logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	ID         string
	Category   EventCategory
	Timestamp  time.Time
	Action     string
	ProviderID string
	SessionID  string
	RequestID  string
	Capability string
	// From and To carry state changes (health states, session statuses).
	From   string
	To     string
	Reason string
}

type AuditEvent string

const (
	// Provider events
	EventProviderRegistered AuditEvent = "provider_registered"
	EventHealthTransition   AuditEvent = "provider_health_changed"
	EventProbeFailed        AuditEvent = "provider_probe_failed"

	// Admission events
	EventAdmissionRefused AuditEvent = "admission_refused"
	EventScaleRequested   AuditEvent = "scale_requested"
	EventScaled           AuditEvent = "capacity_scaled"

	// Degraded-service events
	EventManualQueued    AuditEvent = "manual_queued"
	EventPendingResolved AuditEvent = "pending_resolved"
	EventPendingExpired  AuditEvent = "pending_expired"

	// Session events
	EventSessionCreated AuditEvent = "session_created"
	EventSessionBound   AuditEvent = "session_bound"
	EventSessionUnbound AuditEvent = "session_unbound"
	EventSessionExpired AuditEvent = "session_expired"
	EventSessionClosed  AuditEvent = "session_closed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventHealthTransition: CategoryAvailability,
	EventProbeFailed:      CategoryAvailability,
	EventScaleRequested:   CategoryAvailability,
	EventScaled:           CategoryAvailability,

	EventManualQueued:    CategoryCompliance,
	EventPendingResolved: CategoryCompliance,
	EventPendingExpired:  CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// IsSessionEvent reports whether the event belongs to a session's audit trail.
func (e AuditEvent) IsSessionEvent() bool {
	switch e {
	case EventSessionCreated, EventSessionBound, EventSessionUnbound, EventSessionExpired, EventSessionClosed:
		return true
	}
	return false
}
