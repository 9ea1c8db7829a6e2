package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bigkaa/collectible-registry/internal/clock"
	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/domain/ratelimit"
	"github.com/bigkaa/collectible-registry/internal/repository/memstore"
)

const (
	testAdmin = "admin"
	alice     = "alice"
	bob       = "bob"
	carol     = "carol"
)

// testEnv — все сервисы поверх memstore и ручного источника высоты.
type testEnv struct {
	store     *memstore.Store
	clock     *clock.Manual
	engine    *Engine
	records   *RecordService
	access    *AccessService
	auth      *AuthenticityService
	transfers *TransferService
	protocol  *ProtocolService
	limiter   *RateLimiter
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv создаёт окружение с просторной квотой, чтобы лимит
// не мешал тестам, не связанным с rate limiter.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLimits(t, ratelimit.Limits{Window: 100, Max: 1000}, 10)
}

func newTestEnvWithLimits(t *testing.T, limits ratelimit.Limits, delay int64) *testEnv {
	t.Helper()

	logger := discardLogger()
	env := &testEnv{
		store: memstore.New(),
		clock: clock.NewManual(0),
	}
	env.engine = NewEngine(env.store, env.clock, limits, testAdmin, logger)
	if err := env.engine.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	env.records = NewRecordService(env.engine, logger)
	env.access = NewAccessService(env.engine, logger)
	env.auth = NewAuthenticityService(env.engine, logger)
	env.transfers = NewTransferService(env.engine, delay, logger)
	env.protocol = NewProtocolService(env.engine, logger)
	env.limiter = NewRateLimiter(env.engine)
	return env
}

func validFields() model.RecordFields {
	return model.RecordFields{
		Name:       "Golden Ticket",
		Size:       42,
		Details:    "First edition",
		Categories: []string{"tickets", "gold"},
	}
}

// mustRegister регистрирует запись от имени actor.
func (e *testEnv) mustRegister(t *testing.T, actor string) *model.Record {
	t.Helper()
	rec, err := e.records.Register(context.Background(), actor, validFields())
	if err != nil {
		t.Fatalf("Register(%s): %v", actor, err)
	}
	return rec
}

func wantErr(t *testing.T, op string, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: ошибка = %v, ожидается %v", op, err, target)
	}
}
