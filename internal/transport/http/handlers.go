package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"verigate/internal/providers"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/requestcontext"
)

const maxAuditLimit = 1000

// Register mounts the routing endpoints. auth guards operator mutations and
// admin additionally guards catalog and capacity changes.
func (h *Handler) Register(r chi.Router, auth, admin func(http.Handler) http.Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/verifications", h.HandleExecute)
		r.Post("/route/preview", h.HandlePreview)
		r.Get("/providers", h.HandleListProviders)
		r.Get("/providers/{id}/health", h.HandleProviderHealth)
		r.Get("/sessions/{id}", h.HandleGetSession)
		r.Get("/pending", h.HandleListPending)
		r.Get("/pending/{id}", h.HandleGetPending)
		r.Get("/capacity", h.HandleCapacity)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/providers/{id}/outcomes", h.HandleReportOutcome)
			r.Put("/sessions/{id}/binding", h.HandleBindSession)
			r.Delete("/sessions/{id}", h.HandleReleaseSession)
			r.Post("/pending/{id}/resolve", h.HandleResolvePending)
			r.Get("/audit", h.HandleListAudit)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Put("/providers/{id}", h.HandleRegisterProvider)
				r.Post("/capacity/scale", h.HandleScale)
			})
		})
	})
}

// HandleExecute handles POST /v1/verifications: route, dispatch and report,
// retrying on other providers. A manual-queue outcome answers 202.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req VerificationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	exec, err := h.routing.Execute(ctx, req.ToRouterRequest(ctx), h.dispatcher)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"capability", req.Capability,
			"error", err,
		)
		writeRoutingError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification executed",
		"request_id", exec.RequestID,
		"capability", req.Capability,
		"provider_id", exec.ProviderID,
		"manual_queue", exec.ManualQueue,
		"attempts", len(exec.Attempts),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusOK
	if exec.ManualQueue {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, exec)
}

// HandlePreview handles POST /v1/route/preview without admitting or binding.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerificationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	preview, err := h.routing.Preview(ctx, req.ToRouterRequest(ctx))
	if err != nil {
		writeRoutingError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, preview)
}

// HandleListProviders handles GET /v1/providers.
func (h *Handler) HandleListProviders(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ProvidersResponse{Providers: h.routing.Providers()})
}

// HandleProviderHealth handles GET /v1/providers/{id}/health.
func (h *Handler) HandleProviderHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := h.routing.ProviderHealth(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleRegisterProvider handles PUT /v1/providers/{id}.
func (h *Handler) HandleRegisterProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ProviderRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	p, err := req.ToProvider(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.routing.RegisterProvider(ctx, p)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConfiguration) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "provider registered via api",
		"provider_id", p.ID,
		"created", created,
		"operator", requestcontext.Operator(ctx),
	)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, RegisterResponse{ProviderID: p.ID, Created: created})
}

// HandleReportOutcome handles POST /v1/providers/{id}/outcomes for callers
// that dispatch outside Execute.
func (h *Handler) HandleReportOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req OutcomeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	snap, err := h.routing.Report(ctx, chi.URLParam(r, "id"), req.ToOutcome())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

// HandleGetSession handles GET /v1/sessions/{id}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	s, err := h.routing.Session(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := SessionResponse{Session: s}
	if h.trails != nil {
		trail, err := h.trails.Trail(ctx, id)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "failed to load session trail", "session_id", id, "error", err)
		}
		resp.Trail = trail
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleBindSession handles PUT /v1/sessions/{id}/binding.
func (h *Handler) HandleBindSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req BindRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	s, err := h.routing.BindSession(ctx, chi.URLParam(r, "id"), req.ProviderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SessionResponse{Session: s})
}

// HandleReleaseSession handles DELETE /v1/sessions/{id}.
func (h *Handler) HandleReleaseSession(w http.ResponseWriter, r *http.Request) {
	if !h.routing.ReleaseSession(r.Context(), chi.URLParam(r, "id")) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListPending handles GET /v1/pending?status=.
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatus(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PendingListResponse{Records: h.pending.List(status)})
}

// HandleGetPending handles GET /v1/pending/{id}.
func (h *Handler) HandleGetPending(w http.ResponseWriter, r *http.Request) {
	rec, err := h.pending.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleResolvePending handles POST /v1/pending/{id}/resolve.
func (h *Handler) HandleResolvePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ResolveRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.pending.Resolve(ctx, chi.URLParam(r, "id"), req.ProviderID, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "pending record resolved",
		"request_id", rec.ID,
		"provider_id", rec.ResolvedBy,
		"operator", requestcontext.Operator(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleCapacity handles GET /v1/capacity.
func (h *Handler) HandleCapacity(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.capacitySnapshot())
}

// HandleScale handles POST /v1/capacity/scale.
func (h *Handler) HandleScale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ScaleRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.capacity.Scale(ctx, req.Nodes); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "capacity scaled via api",
		"nodes", req.Nodes,
		"operator", requestcontext.Operator(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, h.capacitySnapshot())
}

// HandleListAudit handles GET /v1/audit?limit=.
func (h *Handler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "audit listing is not enabled"))
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxAuditLimit))
			return
		}
		limit = n
	}
	events, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAuditEvents(events))
}

// writeRoutingError reports an unserved capability as a client error; the
// core treats it as a configuration defect.
func writeRoutingError(w http.ResponseWriter, err error) {
	if errors.Is(err, providers.ErrUnknownCapability) {
		err = dErrors.Wrap(err, dErrors.CodeValidation, "no provider supports the requested capability")
	}
	httputil.WriteError(w, err)
}

func (h *Handler) capacitySnapshot() CapacityResponse {
	return CapacityResponse{
		Nodes:    h.capacity.Nodes(),
		Capacity: h.capacity.Capacity(),
		InFlight: h.capacity.InFlight(),
	}
}
