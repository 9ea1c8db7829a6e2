// protocol.go — обработчики административного управления протоколом
// и квоты вызывающего актора.
package handlers

import (
	"net/http"

	"github.com/bigkaa/collectible-registry/internal/api/openapi"
)

// GetProtocolState — GET /api/v1/protocol.
func (h *APIHandler) GetProtocolState(w http.ResponseWriter, r *http.Request) {
	state, err := h.protocol.State(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "protocol_state", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProtocol(state))
}

// PauseProtocol — POST /api/v1/protocol/pause. Только администратор.
// Тело с причиной необязательно.
func (h *APIHandler) PauseProtocol(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.PauseRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}

	state, err := h.protocol.Pause(r.Context(), actor, reason)
	if err != nil {
		h.writeServiceError(w, r, "pause", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProtocol(state))
}

// ResumeProtocol — POST /api/v1/protocol/resume. Только администратор.
func (h *APIHandler) ResumeProtocol(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	state, err := h.protocol.Resume(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, "resume", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProtocol(state))
}

// SetRateLimit — PUT /api/v1/protocol/rate-limit. Только администратор.
func (h *APIHandler) SetRateLimit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.RateLimitSettings
	if !decodeJSON(w, r, &req, false) {
		return
	}

	state, err := h.protocol.SetRateLimit(r.Context(), actor, req.Window, req.Max)
	if err != nil {
		h.writeServiceError(w, r, "set_rate_limit", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProtocol(state))
}

// GetMyRateLimit — GET /api/v1/rate-limit/me.
func (h *APIHandler) GetMyRateLimit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	status, err := h.limiter.Status(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, "rate_limit_status", err)
		return
	}
	writeJSON(w, http.StatusOK, mapQuota(status))
}
