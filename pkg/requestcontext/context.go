// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; routing services read them for log and audit
// correlation without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	ctx = requestcontext.WithOperator(ctx, "ops@example.org")
package requestcontext

import (
	"context"
)

type (
	requestIDKey struct{}
	operatorKey  struct{}
	roleKey      struct{}
	clientIPKey  struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID = requestIDKey{}
	ContextKeyOperator  = operatorKey{}
	ContextKeyRole      = roleKey{}
	ContextKeyClientIP  = clientIPKey{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Operator retrieves the authenticated operator subject set by the auth
// middleware. Empty for unauthenticated requests.
func Operator(ctx context.Context) string {
	if sub, ok := ctx.Value(ContextKeyOperator).(string); ok {
		return sub
	}
	return ""
}

// WithOperator injects the authenticated operator subject.
func WithOperator(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeyOperator, subject)
}

// Role retrieves the authenticated operator's role.
func Role(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyRole).(string); ok {
		return role
	}
	return ""
}

// WithRole injects the authenticated operator's role.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// ClientIP retrieves the caller IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the caller IP address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}
