package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		statuses []string
		want     string
	}{
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{[]string{"ok"}, "ok"},
		{nil, "ok"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.statuses...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, ожидается %q", tt.statuses, got, tt.want)
		}
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		pg, jwks   ReadinessChecker
		wantCode   int
		wantStatus string
		wantChecks int
	}{
		{"всё доступно", staticChecker{"ok", ""}, staticChecker{"ok", ""}, http.StatusOK, "ok", 2},
		{"хранилище в памяти", nil, staticChecker{"ok", ""}, http.StatusOK, "ok", 1},
		{"JWKS без ключей", staticChecker{"ok", ""}, staticChecker{"degraded", "нет ключей"}, http.StatusOK, "degraded", 2},
		{"PostgreSQL недоступен", staticChecker{"fail", "timeout"}, staticChecker{"ok", ""}, http.StatusServiceUnavailable, "fail", 2},
		{"JWKS не настроен", nil, nil, http.StatusServiceUnavailable, "fail", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.jwks)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("статус = %d, ожидается %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидается %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Checks) != tt.wantChecks {
				t.Errorf("checks = %v, ожидается %d проверок", resp.Checks, tt.wantChecks)
			}
			if resp.Service != serviceName {
				t.Errorf("service = %q, ожидается %q", resp.Service, serviceName)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", rec.Code)
	}
	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, ожидается ok", resp.Status)
	}
}
