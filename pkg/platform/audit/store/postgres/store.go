// Package postgres persists audit events to the audit_events table. It is
// registered as a sink on the audit Publisher.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "verigate/pkg/platform/audit"
	txcontext "verigate/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	action      TEXT NOT NULL,
	provider_id TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	capability  TEXT NOT NULL DEFAULT '',
	from_state  TEXT NOT NULL DEFAULT '',
	to_state    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_provider_idx ON audit_events (provider_id, timestamp);
`

// Sink implements audit.Sink on PostgreSQL.
type Sink struct {
	db *sql.DB
}

func New(db *sql.DB) *Sink {
	return &Sink{db: db}
}

// EnsureSchema creates the audit table when missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (s *Sink) Name() string { return "postgres" }

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Sink) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Write inserts a batch atomically. Duplicate ids are ignored so a retried
// batch does not double-count.
func (s *Sink) Write(ctx context.Context, events []audit.Event) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		for _, e := range events {
			if err := s.append(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Sink) append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, provider_id, session_id,
			request_id, capability, from_state, to_state, reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		string(category),
		event.Timestamp,
		event.Action,
		event.ProviderID,
		event.SessionID,
		event.RequestID,
		event.Capability,
		event.From,
		event.To,
		event.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByProvider returns events for one provider, oldest first.
func (s *Sink) ListByProvider(ctx context.Context, providerID string) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, action, provider_id, session_id,
			   request_id, capability, from_state, to_state, reason
		FROM audit_events
		WHERE provider_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Sink) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, action, provider_id, session_id,
			   request_id, capability, from_state, to_state, reason
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
		)
		if err := rows.Scan(
			&e.ID, &category, &e.Timestamp, &e.Action, &e.ProviderID, &e.SessionID,
			&e.RequestID, &e.Capability, &e.From, &e.To, &e.Reason,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
