package router

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Execute routes req, dispatches it and reports the outcome. A failed call
// advances to the next candidate by re-routing with the failed provider
// excluded, up to MaxAttempts. When nothing is left the request ends in the
// manual queue, which is a normal result.
//
// The session's in-flight count covers each dispatch and is decremented even
// if the dispatcher panics.
func (r *Router) Execute(ctx context.Context, req Request, dispatcher Dispatcher) (*Execution, error) {
	ctx, span := tracer.Start(ctx, "Router.Execute")
	defer span.End()

	exec, err := r.execute(ctx, req, dispatcher)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("provider_id", exec.ProviderID),
		attribute.Int("attempts", len(exec.Attempts)),
		attribute.Bool("manual_queue", exec.ManualQueue),
	)
	return exec, nil
}

func (r *Router) execute(ctx context.Context, req Request, dispatcher Dispatcher) (*Execution, error) {
	exec := &Execution{Attempts: []Attempt{}}
	req.Exclude = append([]string(nil), req.Exclude...)

	for {
		d, err := r.Route(ctx, req)
		if err != nil {
			return nil, err
		}
		req.ID = d.RequestID
		exec.RequestID = d.RequestID
		exec.Reason = d.Reason
		if d.ManualQueue {
			exec.ManualQueue = true
			exec.PendingID = d.PendingID
			return exec, nil
		}

		res := r.dispatch(ctx, d, req, dispatcher)
		exec.Attempts = append(exec.Attempts, Attempt{
			ProviderID: d.ProviderID,
			Success:    res.Success,
			ErrorKind:  res.Outcome().ErrorKind,
			Latency:    res.Latency,
		})

		// The caller gave up; that says nothing about the provider.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := r.Report(ctx, d.ProviderID, res.Outcome()); err != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "failed to record dispatch outcome", "provider_id", d.ProviderID, "error", err)
		}
		if res.Success {
			exec.ProviderID = d.ProviderID
			exec.Response = res.Body
			return exec, nil
		}

		if r.logger != nil {
			r.logger.InfoContext(ctx, "dispatch failed, advancing fallback chain",
				"provider_id", d.ProviderID,
				"request_id", req.ID,
				"error_kind", res.Outcome().ErrorKind,
				"attempt", len(exec.Attempts),
			)
		}
		req.Exclude = append(req.Exclude, d.ProviderID)
		if len(exec.Attempts) >= r.cfg.MaxAttempts {
			md := &Decision{RequestID: req.ID, Consulted: req.Exclude}
			if err := r.deferToManualQueue(ctx, md, req, ReasonAttemptsExhausted); err != nil {
				return nil, err
			}
			r.metrics.IncrementRouteDecision(string(req.Capability), string(ReasonAttemptsExhausted))
			exec.ManualQueue = true
			exec.PendingID = md.PendingID
			exec.Reason = md.Reason
			return exec, nil
		}
	}
}

// dispatch runs one call with the admission slot and session lease held.
func (r *Router) dispatch(ctx context.Context, d *Decision, req Request, dispatcher Dispatcher) Result {
	defer d.Release()
	if r.cfg.SessionAffinity && req.SessionID != "" {
		lease := r.sessions.Acquire(ctx, req.SessionID)
		defer lease.Done()
	}
	return dispatcher.Call(ctx, d.ProviderID, req)
}
