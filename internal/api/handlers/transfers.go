// transfers.go — обработчики отложенных передач владения.
// Планирование, исполнение, отмена, чтение.
package handlers

import (
	"net/http"

	"github.com/bigkaa/collectible-registry/internal/api/openapi"
)

// ScheduleTransfer — POST /api/v1/records/{id}/transfers.
func (h *APIHandler) ScheduleTransfer(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.TransferRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	op, err := h.transfers.Schedule(r.Context(), actor, id, req.NewOwner, req.VerificationHash)
	if err != nil {
		h.writeServiceError(w, r, "schedule_transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOperation(op))
}

// ListTransfers — GET /api/v1/records/{id}/transfers.
func (h *APIHandler) ListTransfers(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ops, err := h.transfers.ListForRecord(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, "list_transfers", err)
		return
	}

	items := make([]openapi.Operation, 0, len(ops))
	for _, op := range ops {
		items = append(items, mapOperation(op))
	}
	writeJSON(w, http.StatusOK, openapi.OperationList{Items: items})
}

// GetTransfer — GET /api/v1/records/{id}/transfers/{seq}.
func (h *APIHandler) GetTransfer(w http.ResponseWriter, r *http.Request, id int64, seq int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	op, err := h.transfers.Get(r.Context(), actor, seq, id)
	if err != nil {
		h.writeServiceError(w, r, "get_transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, mapOperation(op))
}

// ExecuteTransfer — POST /api/v1/records/{id}/transfers/{seq}/execute.
func (h *APIHandler) ExecuteTransfer(w http.ResponseWriter, r *http.Request, id int64, seq int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.ExecuteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	op, err := h.transfers.Execute(r.Context(), actor, seq, id, req.VerificationHash)
	if err != nil {
		h.writeServiceError(w, r, "execute_transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, mapOperation(op))
}

// CancelTransfer — POST /api/v1/records/{id}/transfers/{seq}/cancel.
func (h *APIHandler) CancelTransfer(w http.ResponseWriter, r *http.Request, id int64, seq int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	op, err := h.transfers.Cancel(r.Context(), actor, seq, id)
	if err != nil {
		h.writeServiceError(w, r, "cancel_transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, mapOperation(op))
}
