package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/records", "/api/v1/records"},
		{"/api/v1/records/17", "/api/v1/records/{n}"},
		{"/api/v1/records/17/transfers/3/execute", "/api/v1/records/{n}/transfers/{n}/execute"},
		{"/api/v1/records/17/viewers/bob", "/api/v1/records/{n}/viewers/bob"},
		{"/health/live", "/health/live"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидается %q", tt.path, got, tt.want)
		}
	}
}

func TestRoutePattern(t *testing.T) {
	var pattern string
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			pattern = routePattern(r)
		})
	})
	router.Get("/api/v1/records/{id}/transfers/{seq}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/records/5/transfers/9", nil))
	if pattern != "/api/v1/records/{id}/transfers/{seq}" {
		t.Errorf("шаблон = %q", pattern)
	}

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/unknown/12", nil))
	if pattern != "/api/v1/unknown/{n}" {
		t.Errorf("шаблон для 404 = %q, ожидается /api/v1/unknown/{n}", pattern)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/records", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("статус = %d, ожидается 202", rec.Code)
	}
}
