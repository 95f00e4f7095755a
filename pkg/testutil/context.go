package testutil

import (
	"context"
	"net/http"

	"verigate/pkg/requestcontext"
)

// WithOperator adds an authenticated operator and role to the request context.
// This simulates what the auth middleware does for a valid bearer token.
func WithOperator(req *http.Request, subject, role string) *http.Request {
	ctx := requestcontext.WithOperator(req.Context(), subject)
	if role != "" {
		ctx = requestcontext.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
