package handlers

import (
	"fmt"
	"net/http"
	"testing"

	apierrors "github.com/bigkaa/collectible-registry/internal/api/errors"
	"github.com/bigkaa/collectible-registry/internal/api/openapi"
)

func TestAttestation(t *testing.T) {
	s := newTestServer(t)
	rec := s.mustRegister(t, alice)
	base := fmt.Sprintf("/api/v1/records/%d/attestation", rec.ID)

	expectError(t, s.do(t, bob, http.MethodGet, base, nil), http.StatusNotFound, apierrors.CodeNoAttestation)
	expectError(t, s.do(t, bob, http.MethodPost, base+"/verify", openapi.VerifyRequest{Hash: "x"}),
		http.StatusNotFound, apierrors.CodeNoAttestation)

	attest := openapi.AttestationRequest{Hash: "abc123", Method: "sha256"}
	expectError(t, s.do(t, bob, http.MethodPut, base, attest), http.StatusForbidden, apierrors.CodeForbidden)
	expectError(t, s.do(t, alice, http.MethodPut, base, openapi.AttestationRequest{Hash: "abc", Method: "md5"}),
		http.StatusBadRequest, apierrors.CodeValidationError)

	var att openapi.Attestation
	expect(t, s.do(t, alice, http.MethodPut, base, attest), http.StatusOK, &att)
	if att.Hash != "abc123" || att.Attestor != alice {
		t.Errorf("аттестация = %+v", att)
	}

	expectError(t, s.do(t, alice, http.MethodPut, base, openapi.AttestationRequest{Hash: "def", Method: "keccak256"}),
		http.StatusConflict, apierrors.CodeConflict)

	replace := true
	expect(t, s.do(t, alice, http.MethodPut, base,
		openapi.AttestationRequest{Hash: "def", Method: "keccak256", Replace: &replace}), http.StatusOK, &att)
	if att.Hash != "def" || att.Method != "keccak256" {
		t.Errorf("после замены %+v", att)
	}

	var result openapi.VerifyResult
	expect(t, s.do(t, carol, http.MethodPost, base+"/verify", openapi.VerifyRequest{Hash: "def"}), http.StatusOK, &result)
	if !result.Valid {
		t.Error("Valid = false, ожидается true")
	}
	expectError(t, s.do(t, carol, http.MethodPost, base+"/verify", openapi.VerifyRequest{Hash: "abc123"}),
		http.StatusUnprocessableEntity, apierrors.CodeHashMismatch)
}
