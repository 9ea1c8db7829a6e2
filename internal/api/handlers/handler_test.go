package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/collectible-registry/internal/api/errors"
	"github.com/bigkaa/collectible-registry/internal/api/middleware"
	"github.com/bigkaa/collectible-registry/internal/api/openapi"
	"github.com/bigkaa/collectible-registry/internal/clock"
	"github.com/bigkaa/collectible-registry/internal/domain/ratelimit"
	"github.com/bigkaa/collectible-registry/internal/repository/memstore"
	"github.com/bigkaa/collectible-registry/internal/service"
)

const (
	testAdmin = "admin"
	alice     = "alice"
	bob       = "bob"
	carol     = "carol"
)

// testActorHeader — заголовок, через который тесты передают идентичность
// вместо JWT.
const testActorHeader = "X-Test-Actor"

type testServer struct {
	clock  *clock.Manual
	router http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := discardLogger()
	clk := clock.NewManual(0)
	engine := service.NewEngine(memstore.New(), clk, ratelimit.Limits{Window: 100, Max: 1000}, testAdmin, logger)
	if err := engine.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	doc, err := openapi.Load()
	if err != nil {
		t.Fatalf("openapi.Load: %v", err)
	}

	h := NewAPIHandler(NewHealthHandler(nil, staticChecker{"ok", ""}), Services{
		Records:   service.NewRecordService(engine, logger),
		Access:    service.NewAccessService(engine, logger),
		Ledger:    service.NewAuthenticityService(engine, logger),
		Transfers: service.NewTransferService(engine, 10, logger),
		Protocol:  service.NewProtocolService(engine, logger),
		Limiter:   service.NewRateLimiter(engine),
	}, doc, logger)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor := r.Header.Get(testActorHeader); actor != "" {
				r = r.WithContext(middleware.WithClaims(r.Context(), &middleware.AuthClaims{Subject: actor}))
			}
			next.ServeHTTP(w, r)
		})
	})
	openapi.HandlerWithOptions(h, openapi.ChiServerOptions{
		BaseRouter: router,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			apierrors.ValidationError(w, err.Error())
		},
	})

	return &testServer{clock: clk, router: router}
}

// do выполняет запрос от имени actor (пустой — без идентичности).
func (s *testServer) do(t *testing.T, actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(testActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// expect проверяет статус ответа и, если out не nil, разбирает тело.
func expect(t *testing.T, rec *httptest.ResponseRecorder, status int, out any) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("статус = %d, ожидается %d; тело: %s", rec.Code, status, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("разбор ответа: %v; тело: %s", err, rec.Body.String())
		}
	}
}

// expectError проверяет статус и код ошибки.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	expect(t, rec, status, &body)
	if body.Error.Code != code {
		t.Errorf("код ошибки = %q, ожидается %q (%s)", body.Error.Code, code, body.Error.Message)
	}
}

func validRecord() openapi.RecordFields {
	return openapi.RecordFields{
		Name:       "Golden Ticket",
		Size:       42,
		Details:    "Один из пяти",
		Categories: []string{"tickets", "gold"},
	}
}

func (s *testServer) mustRegister(t *testing.T, actor string) openapi.Record {
	t.Helper()
	var rec openapi.Record
	expect(t, s.do(t, actor, http.MethodPost, "/api/v1/records", validRecord()), http.StatusCreated, &rec)
	return rec
}

type staticChecker struct {
	status, message string
}

func (c staticChecker) CheckReady() (string, string) {
	return c.status, c.message
}

func TestPaginationDefaults(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	tests := []struct {
		name          string
		limit, offset *int
		wantL, wantO  int
	}{
		{"по умолчанию", nil, nil, 100, 0},
		{"обычные", intPtr(20), intPtr(40), 20, 40},
		{"limit меньше 1", intPtr(0), nil, 1, 0},
		{"limit больше 1000", intPtr(5000), nil, 1000, 0},
		{"отрицательный offset", nil, intPtr(-3), 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := paginationDefaults(tt.limit, tt.offset)
			if l != tt.wantL || o != tt.wantO {
				t.Errorf("paginationDefaults = (%d, %d), ожидается (%d, %d)", l, o, tt.wantL, tt.wantO)
			}
		})
	}
}

func TestMissingActor(t *testing.T) {
	s := newTestServer(t)
	expectError(t, s.do(t, "", http.MethodPost, "/api/v1/records", validRecord()), http.StatusUnauthorized, apierrors.CodeUnauthorized)
}

func TestPathBinding(t *testing.T) {
	s := newTestServer(t)
	expectError(t, s.do(t, alice, http.MethodGet, "/api/v1/records/abc", nil), http.StatusBadRequest, apierrors.CodeValidationError)
	expectError(t, s.do(t, alice, http.MethodGet, "/api/v1/records/1/transfers/x", nil), http.StatusBadRequest, apierrors.CodeValidationError)
}

func TestGetOpenAPIDocument(t *testing.T) {
	s := newTestServer(t)
	var doc struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	expect(t, s.do(t, "", http.MethodGet, "/api/v1/openapi.json", nil), http.StatusOK, &doc)
	if doc.OpenAPI != "3.0.3" {
		t.Errorf("openapi = %q, ожидается 3.0.3", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/v1/records"]; !ok {
		t.Error("в документе нет /api/v1/records")
	}
}
