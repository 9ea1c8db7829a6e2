// handler.go — основной обработчик API, реализующий openapi.ServerInterface.
// Объединяет все доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	apierrors "github.com/bigkaa/collectible-registry/internal/api/errors"
	"github.com/bigkaa/collectible-registry/internal/api/middleware"
	"github.com/bigkaa/collectible-registry/internal/service"
)

// Services — сервисный слой, которому обработчик делегирует операции.
type Services struct {
	Records   *service.RecordService
	Access    *service.AccessService
	Ledger    *service.AuthenticityService
	Transfers *service.TransferService
	Protocol  *service.ProtocolService
	Limiter   *service.RateLimiter
}

// APIHandler — основной обработчик API реестра.
type APIHandler struct {
	health    *HealthHandler
	records   *service.RecordService
	access    *service.AccessService
	ledger    *service.AuthenticityService
	transfers *service.TransferService
	protocol  *service.ProtocolService
	limiter   *service.RateLimiter
	doc       *openapi3.T
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// doc — OpenAPI-документ, отдаваемый по /api/v1/openapi.json (может быть nil).
func NewAPIHandler(health *HealthHandler, svc Services, doc *openapi3.T, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:    health,
		records:   svc.Records,
		access:    svc.Access,
		ledger:    svc.Ledger,
		transfers: svc.Transfers,
		protocol:  svc.Protocol,
		limiter:   svc.Limiter,
		doc:       doc,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPIDocument — GET /api/v1/openapi.json.
func (h *APIHandler) GetOpenAPIDocument(w http.ResponseWriter, _ *http.Request) {
	if h.doc == nil {
		apierrors.NotFound(w, "OpenAPI-документ не загружен")
		return
	}
	writeJSON(w, http.StatusOK, h.doc)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. При ошибке пишет 400 и возвращает false.
// optional разрешает пустое тело.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
	return false
}

// requireActor возвращает идентичность вызывающего. Без неё — 401.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == "" {
		apierrors.Unauthorized(w, "Отсутствует идентичность вызывающего")
		return "", false
	}
	return actor, true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и отдаются как 500 с описанием операции.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrOperationNotFound):
		apierrors.WriteError(w, http.StatusNotFound, apierrors.CodeOperationNotFound, err.Error())
	case errors.Is(err, service.ErrNoAttestation):
		apierrors.WriteError(w, http.StatusNotFound, apierrors.CodeNoAttestation, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		apierrors.RateLimited(w, err.Error())
	case errors.Is(err, service.ErrPaused):
		apierrors.ProtocolPaused(w, err.Error())
	case errors.Is(err, service.ErrExpired):
		apierrors.Expired(w, err.Error())
	case errors.Is(err, service.ErrHashMismatch):
		apierrors.HashMismatch(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error("Ошибка операции",
			slog.String("operation", op),
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка: "+op)
	}
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}
