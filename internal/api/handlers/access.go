// access.go — обработчики прав доступа к записи.
// Проверка уровня, градуированные права, привилегии просмотра.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/collectible-registry/internal/api/errors"
	"github.com/bigkaa/collectible-registry/internal/api/openapi"
	"github.com/bigkaa/collectible-registry/internal/domain/access"
)

// CheckAccess — GET /api/v1/records/{id}/access.
// Свой уровень может проверить любой актор; чужой — только тот, кто видит запись.
// Для несуществующей записи собственная проверка возвращает has_access=false.
func (h *APIHandler) CheckAccess(w http.ResponseWriter, r *http.Request, id int64, params openapi.CheckAccessParams) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	level, err := access.ParseLevel(params.Level)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	participant := actor
	if params.Participant != nil && *params.Participant != "" {
		participant = *params.Participant
	}

	if participant != actor {
		canView, err := h.access.CanView(r.Context(), id, actor)
		if err != nil {
			h.writeServiceError(w, r, "has_access", err)
			return
		}
		if !canView {
			apierrors.Forbidden(w, "Недостаточно прав: проверка чужого доступа требует права просмотра записи")
			return
		}
	}

	has, err := h.access.HasAccess(r.Context(), id, participant, level)
	if err != nil {
		h.writeServiceError(w, r, "has_access", err)
		return
	}

	writeJSON(w, http.StatusOK, openapi.AccessCheck{
		RecordID:    id,
		Participant: participant,
		Level:       level.String(),
		HasAccess:   has,
	})
}

// ListPermissions — GET /api/v1/records/{id}/permissions.
func (h *APIHandler) ListPermissions(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	perms, err := h.access.ListPermissions(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, "list_permissions", err)
		return
	}

	items := make([]openapi.Permission, 0, len(perms))
	for _, p := range perms {
		items = append(items, mapPermission(p))
	}
	writeJSON(w, http.StatusOK, openapi.PermissionList{Items: items})
}

// SetPermission — PUT /api/v1/records/{id}/permissions/{participant}.
// Только создатель записи. Уровень none сохраняется как явный запрет.
func (h *APIHandler) SetPermission(w http.ResponseWriter, r *http.Request, id int64, participant string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req openapi.PermissionGrant
	if !decodeJSON(w, r, &req, false) {
		return
	}

	perm, err := h.access.AuthorizeNamed(r.Context(), actor, id, participant, req.Level)
	if err != nil {
		h.writeServiceError(w, r, "authorize", err)
		return
	}
	writeJSON(w, http.StatusOK, mapPermission(perm))
}

// ListViewers — GET /api/v1/records/{id}/viewers.
func (h *APIHandler) ListViewers(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	viewers, err := h.access.ListViewers(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, "list_viewers", err)
		return
	}

	items := make([]openapi.Viewer, 0, len(viewers))
	for _, v := range viewers {
		items = append(items, mapViewer(v))
	}
	writeJSON(w, http.StatusOK, openapi.ViewerList{Items: items})
}

// GrantViewer — PUT /api/v1/records/{id}/viewers/{observer}.
func (h *APIHandler) GrantViewer(w http.ResponseWriter, r *http.Request, id int64, observer string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	priv, err := h.access.GrantViewer(r.Context(), actor, id, observer)
	if err != nil {
		h.writeServiceError(w, r, "grant_viewer", err)
		return
	}
	writeJSON(w, http.StatusOK, mapViewer(priv))
}

// RevokeViewer — DELETE /api/v1/records/{id}/viewers/{observer}.
func (h *APIHandler) RevokeViewer(w http.ResponseWriter, r *http.Request, id int64, observer string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.access.RevokeViewer(r.Context(), actor, id, observer); err != nil {
		h.writeServiceError(w, r, "revoke_viewer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
