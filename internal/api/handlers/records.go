// records.go — обработчики /api/v1/records endpoints.
// Регистрация, чтение, замена метаданных, передача владения, удаление.
package handlers

import (
	"net/http"

	"github.com/bigkaa/collectible-registry/internal/api/openapi"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// RegisterRecord — POST /api/v1/records.
// Регистрация через API всегда проходит через rate limiter.
func (h *APIHandler) RegisterRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.RecordFields
	if !decodeJSON(w, r, &req, false) {
		return
	}

	rec, err := h.records.RegisterRateLimited(r.Context(), actor, mapFields(req))
	if err != nil {
		h.writeServiceError(w, r, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, mapRecord(rec))
}

// ListRecords — GET /api/v1/records.
func (h *APIHandler) ListRecords(w http.ResponseWriter, r *http.Request, params openapi.ListRecordsParams) {
	limit, offset := paginationDefaults(params.Limit, params.Offset)
	filter := repository.RecordFilter{
		Creator:  params.Creator,
		Category: params.Category,
	}

	records, total, err := h.records.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "list_records", err)
		return
	}

	items := make([]openapi.Record, 0, len(records))
	for _, rec := range records {
		items = append(items, mapRecord(rec))
	}

	writeJSON(w, http.StatusOK, openapi.RecordList{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetRecord — GET /api/v1/records/{id}.
func (h *APIHandler) GetRecord(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_record", err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecord(rec))
}

// UpdateRecord — PUT /api/v1/records/{id}. Полная замена изменяемых полей.
func (h *APIHandler) UpdateRecord(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.RecordFields
	if !decodeJSON(w, r, &req, false) {
		return
	}

	rec, err := h.records.UpdateMetadata(r.Context(), actor, id, mapFields(req))
	if err != nil {
		h.writeServiceError(w, r, "update_metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecord(rec))
}

// TransferOwnership — POST /api/v1/records/{id}/owner.
func (h *APIHandler) TransferOwnership(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.OwnerChange
	if !decodeJSON(w, r, &req, false) {
		return
	}

	rec, err := h.records.TransferOwnership(r.Context(), actor, id, req.NewOwner)
	if err != nil {
		h.writeServiceError(w, r, "transfer_ownership", err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecord(rec))
}

// UnregisterRecord — DELETE /api/v1/records/{id}.
func (h *APIHandler) UnregisterRecord(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.records.Unregister(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, "unregister", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
