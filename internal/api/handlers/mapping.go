// mapping.go — преобразование доменных моделей в типы API.
package handlers

import (
	"github.com/bigkaa/collectible-registry/internal/api/openapi"
	"github.com/bigkaa/collectible-registry/internal/domain/access"
	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/service"
)

func mapRecord(rec *model.Record) openapi.Record {
	categories := rec.Categories
	if categories == nil {
		categories = []string{}
	}
	return openapi.Record{
		ID:            rec.ID,
		Name:          rec.Name,
		Creator:       rec.Creator,
		Size:          rec.Size,
		Details:       rec.Details,
		Categories:    categories,
		CreatedHeight: rec.CreatedHeight,
		UpdatedHeight: rec.UpdatedHeight,
	}
}

func mapFields(f openapi.RecordFields) model.RecordFields {
	return model.RecordFields{
		Name:       f.Name,
		Size:       f.Size,
		Details:    f.Details,
		Categories: f.Categories,
	}
}

func mapPermission(p *model.GranularPermission) openapi.Permission {
	return openapi.Permission{
		RecordID:      p.RecordID,
		Participant:   p.Participant,
		Level:         access.Level(p.Level).String(),
		GrantedBy:     p.GrantedBy,
		GrantedHeight: p.GrantedHeight,
	}
}

func mapViewer(v *model.ViewerPrivilege) openapi.Viewer {
	return openapi.Viewer{
		RecordID:      v.RecordID,
		Observer:      v.Observer,
		CanView:       v.CanView,
		GrantedBy:     v.GrantedBy,
		GrantedHeight: v.GrantedHeight,
	}
}

func mapAttestation(a *model.AuthenticityRecord) openapi.Attestation {
	return openapi.Attestation{
		RecordID:       a.RecordID,
		Hash:           a.Hash,
		Method:         a.Method,
		Attestor:       a.Attestor,
		AttestedHeight: a.AttestedHeight,
	}
}

// mapOperation не переносит VerificationHash: хеш предъявляется при исполнении.
func mapOperation(op *model.ScheduledOperation) openapi.Operation {
	return openapi.Operation{
		Seq:             op.Seq,
		RecordID:        op.RecordID,
		Kind:            op.Kind,
		Requester:       op.Requester,
		Recipient:       op.Recipient,
		RequestedHeight: op.RequestedHeight,
		ExpiresHeight:   op.ExpiresHeight,
		Status:          op.Status,
		ResolvedBy:      op.ResolvedBy,
		ResolvedHeight:  op.ResolvedHeight,
	}
}

func mapProtocol(s *model.ProtocolState) openapi.ProtocolState {
	return openapi.ProtocolState{
		Paused:        s.Paused,
		PauseReason:   s.PauseReason,
		PausedBy:      s.PausedBy,
		PausedHeight:  s.PausedHeight,
		RateWindow:    s.RateWindow,
		RateMax:       s.RateMax,
		UpdatedHeight: s.UpdatedHeight,
	}
}

func mapQuota(q *service.QuotaStatus) openapi.QuotaStatus {
	return openapi.QuotaStatus{
		Actor:      q.Actor,
		Height:     q.Height,
		LastHeight: q.LastHeight,
		CallCount:  q.CallCount,
		Remaining:  q.Remaining,
		Window:     q.Window,
		Max:        q.Max,
	}
}
