// Package admin restricts capacity and catalog changes to admin operators.
package admin

import (
	"log/slog"
	"net/http"

	"verigate/pkg/requestcontext"
)

// RoleAdmin is the token role allowed through RequireAdmin.
const RoleAdmin = "admin"

// RequireAdmin must run after auth.RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.Role(ctx) != RoleAdmin {
				logger.WarnContext(ctx, "admin role required",
					"operator", requestcontext.Operator(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin role required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
