// Package consumer routes audit batches to per-category sinks, so compliance
// events can go to durable storage while operational chatter stays local.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	audit "verigate/pkg/platform/audit"
)

// Router is an audit.Sink that splits each batch by event category.
type Router struct {
	sinks    map[audit.EventCategory]audit.Sink
	fallback audit.Sink
	logger   *slog.Logger
}

// NewRouter creates a category router with an optional fallback sink.
func NewRouter(logger *slog.Logger, fallback audit.Sink) *Router {
	return &Router{
		sinks:    make(map[audit.EventCategory]audit.Sink),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a sink for a specific category.
func (r *Router) Register(category audit.EventCategory, sink audit.Sink) {
	r.sinks[category] = sink
}

func (r *Router) Name() string { return "category-router" }

// Write delivers each category's slice of the batch. Events with no matching
// sink and no fallback are dropped.
func (r *Router) Write(ctx context.Context, events []audit.Event) error {
	groups := make(map[audit.Sink][]audit.Event)
	var order []audit.Sink
	dropped := 0
	for _, e := range events {
		category := e.Category
		if category == "" {
			category = audit.AuditEvent(e.Action).Category()
		}
		sink, ok := r.sinks[category]
		if !ok {
			sink = r.fallback
		}
		if sink == nil {
			dropped++
			continue
		}
		if _, seen := groups[sink]; !seen {
			order = append(order, sink)
		}
		groups[sink] = append(groups[sink], e)
	}
	if dropped > 0 && r.logger != nil {
		r.logger.DebugContext(ctx, "no sink for audit category, dropping events", "count", dropped)
	}

	var errs []error
	for _, sink := range order {
		if err := sink.Write(ctx, groups[sink]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
