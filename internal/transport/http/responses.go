package httptransport

import (
	"verigate/internal/pending"
	"verigate/internal/router"
	"verigate/internal/session"
	audit "verigate/pkg/platform/audit"
)

type ProvidersResponse struct {
	Providers []router.ProviderStatus `json:"providers"`
}

type RegisterResponse struct {
	ProviderID string `json:"provider_id"`
	Created    bool   `json:"created"`
}

type SessionResponse struct {
	Session session.Session      `json:"session"`
	Trail   []session.TrailEntry `json:"trail,omitempty"`
}

type PendingListResponse struct {
	Records []pending.Record `json:"records"`
}

type CapacityResponse struct {
	Nodes    int   `json:"nodes"`
	Capacity int64 `json:"capacity"`
	InFlight int64 `json:"in_flight"`
}

type AuditResponse struct {
	Events []auditEvent `json:"events"`
}

type auditEvent struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action"`
	ProviderID string `json:"provider_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Capability string `json:"capability,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func fromAuditEvents(events []audit.Event) AuditResponse {
	out := make([]auditEvent, 0, len(events))
	for _, e := range events {
		out = append(out, auditEvent{
			ID:         e.ID,
			Category:   string(e.Category),
			Timestamp:  e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Action:     e.Action,
			ProviderID: e.ProviderID,
			SessionID:  e.SessionID,
			RequestID:  e.RequestID,
			Capability: e.Capability,
			From:       e.From,
			To:         e.To,
			Reason:     e.Reason,
		})
	}
	return AuditResponse{Events: out}
}
