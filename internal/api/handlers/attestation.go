// attestation.go — обработчики аттестации подлинности записи.
package handlers

import (
	"net/http"

	"github.com/bigkaa/collectible-registry/internal/api/openapi"
)

// GetAttestation — GET /api/v1/records/{id}/attestation.
func (h *APIHandler) GetAttestation(w http.ResponseWriter, r *http.Request, id int64) {
	att, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_attestation", err)
		return
	}
	writeJSON(w, http.StatusOK, mapAttestation(att))
}

// Attest — PUT /api/v1/records/{id}/attestation.
// Существующая аттестация перезаписывается только при replace=true.
func (h *APIHandler) Attest(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.AttestationRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	replace := req.Replace != nil && *req.Replace

	att, err := h.ledger.Attest(r.Context(), actor, id, req.Hash, req.Method, replace)
	if err != nil {
		h.writeServiceError(w, r, "attest", err)
		return
	}
	writeJSON(w, http.StatusOK, mapAttestation(att))
}

// VerifyAttestation — POST /api/v1/records/{id}/attestation/verify.
// Несовпадение хеша — 422 HASH_MISMATCH.
func (h *APIHandler) VerifyAttestation(w http.ResponseWriter, r *http.Request, id int64) {
	var req openapi.VerifyRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := h.ledger.Verify(r.Context(), id, req.Hash); err != nil {
		h.writeServiceError(w, r, "verify", err)
		return
	}
	writeJSON(w, http.StatusOK, openapi.VerifyResult{RecordID: id, Valid: true})
}
