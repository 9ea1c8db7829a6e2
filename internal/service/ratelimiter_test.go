package service

import (
	"context"
	"testing"

	"github.com/bigkaa/collectible-registry/internal/domain/ratelimit"
)

func TestRateLimiter_WindowResetsFromLastCall(t *testing.T) {
	env := newTestEnvWithLimits(t, ratelimit.Limits{Window: 100, Max: 10}, 10)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := env.records.RegisterRateLimited(ctx, alice, validFields()); err != nil {
			t.Fatalf("вызов %d на высоте 0: %v", i+1, err)
		}
	}

	env.clock.Set(50)
	_, err := env.records.RegisterRateLimited(ctx, alice, validFields())
	wantErr(t, "11-й вызов на высоте 50", err, ErrRateLimited)

	status, err := env.limiter.Status(ctx, alice)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Remaining != 0 || status.CallCount != 10 || status.LastHeight != 0 {
		t.Errorf("Status после отказа = %+v, ожидается 10 вызовов на высоте 0 и 0 оставшихся", status)
	}

	env.clock.Set(101)
	if _, err := env.records.RegisterRateLimited(ctx, alice, validFields()); err != nil {
		t.Fatalf("вызов на высоте 101: %v", err)
	}

	status, _ = env.limiter.Status(ctx, alice)
	if status.CallCount != 1 || status.LastHeight != 101 || status.Remaining != 9 {
		t.Errorf("Status после сброса = %+v, ожидается 1 вызов на высоте 101", status)
	}
}

func TestRateLimiter_PerActor(t *testing.T) {
	env := newTestEnvWithLimits(t, ratelimit.Limits{Window: 100, Max: 1}, 10)
	ctx := context.Background()

	if _, err := env.records.RegisterRateLimited(ctx, alice, validFields()); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if _, err := env.records.RegisterRateLimited(ctx, bob, validFields()); err != nil {
		t.Fatalf("bob: квота другого актора не должна влиять: %v", err)
	}
	_, err := env.records.RegisterRateLimited(ctx, alice, validFields())
	wantErr(t, "второй вызов alice", err, ErrRateLimited)
}

func TestRateLimiter_PlainRegisterIsNotGated(t *testing.T) {
	env := newTestEnvWithLimits(t, ratelimit.Limits{Window: 100, Max: 1}, 10)
	ctx := context.Background()

	if _, err := env.records.RegisterRateLimited(ctx, alice, validFields()); err != nil {
		t.Fatalf("RegisterRateLimited: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.records.Register(ctx, alice, validFields()); err != nil {
			t.Fatalf("Register %d: %v", i+1, err)
		}
	}
}

func TestRateLimiter_FailedOperationDoesNotConsumeQuota(t *testing.T) {
	env := newTestEnvWithLimits(t, ratelimit.Limits{Window: 100, Max: 1}, 10)
	ctx := context.Background()
	rec := env.mustRegister(t, alice)

	// чужая запись: Unauthorized откатывает и списание квоты
	_, err := env.records.UpdateMetadata(ctx, bob, rec.ID, validFields())
	wantErr(t, "UpdateMetadata(bob)", err, ErrUnauthorized)

	// невалидные поля: квота тоже не расходуется
	bad := validFields()
	bad.Name = ""
	_, err = env.records.RegisterRateLimited(ctx, bob, bad)
	wantErr(t, "RegisterRateLimited(пустое название)", err, ErrInvalidName)

	status, err := env.limiter.Status(ctx, bob)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CallCount != 0 || status.Remaining != 1 {
		t.Errorf("Status(bob) = %+v, ожидается нетронутую квоту", status)
	}

	if _, err := env.records.RegisterRateLimited(ctx, bob, validFields()); err != nil {
		t.Fatalf("RegisterRateLimited(bob): %v", err)
	}
}

func TestRateLimiter_StatusOfNewActor(t *testing.T) {
	env := newTestEnvWithLimits(t, ratelimit.Limits{Window: 20, Max: 3}, 10)

	status, err := env.limiter.Status(context.Background(), carol)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Remaining != 3 || status.Window != 20 || status.Max != 3 || status.CallCount != 0 {
		t.Errorf("Status = %+v, ожидается полную квоту 3/20", status)
	}
}
