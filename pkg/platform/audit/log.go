package audit

import (
	"context"
	"log/slog"

	"verigate/pkg/requestcontext"
)

// LogAudit is a shared helper for recording audit events across routing
// components. It logs to the structured logger and hands the event to the
// emitter if available.
func LogAudit(ctx context.Context, logger *slog.Logger, emitter Emitter, event Event, attrs ...any) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	if event.ProviderID != "" {
		attrs = append(attrs, "provider_id", event.ProviderID)
	}
	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	args := append(attrs, "event", event.Action, "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
