// ratelimiter.go — rate limiter изменяющих вызовов актора.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/domain/ratelimit"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// QuotaStatus — состояние квоты актора на текущей высоте.
type QuotaStatus struct {
	Actor string
	// Height — высота, на которой вычислено состояние
	Height int64
	// LastHeight — высота последнего учтённого вызова (0, если вызовов не было)
	LastHeight int64
	// CallCount — вызовов в текущем окне
	CallCount int
	// Remaining — сколько вызовов ещё доступно
	Remaining int
	Window    int64
	Max       int
}

// RateLimiter — чтение квот акторов. Списание квоты выполняется
// в Engine.mutate внутри транзакции операции.
type RateLimiter struct {
	engine *Engine
}

// NewRateLimiter создаёт сервис квот.
func NewRateLimiter(engine *Engine) *RateLimiter {
	return &RateLimiter{engine: engine}
}

// Status возвращает состояние квоты актора.
func (r *RateLimiter) Status(ctx context.Context, actor string) (*QuotaStatus, error) {
	var status *QuotaStatus
	err := r.engine.read(ctx, func(ctx context.Context, tx repository.Tx, height int64) error {
		state, err := r.engine.viewProtocolState(ctx, tx)
		if err != nil {
			return err
		}
		limits := ratelimit.Limits{Window: state.RateWindow, Max: state.RateMax}

		prev, err := loadQuota(ctx, tx, actor, false)
		if err != nil {
			return err
		}

		status = &QuotaStatus{
			Actor:     actor,
			Height:    height,
			Remaining: ratelimit.Remaining(prev, height, limits),
			Window:    limits.Window,
			Max:       limits.Max,
		}
		if prev != nil {
			status.LastHeight = prev.LastHeight
			status.CallCount = prev.Count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// loadQuota читает счётчик актора; nil — актор ещё не вызывал методы.
func loadQuota(ctx context.Context, tx repository.Tx, actor string, forUpdate bool) (*ratelimit.State, error) {
	get := tx.Monitors().Get
	if forUpdate {
		get = tx.Monitors().GetForUpdate
	}
	mon, err := get(ctx, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("получение счётчика актора: %w", err)
	}
	return &ratelimit.State{LastHeight: mon.LastHeight, Count: mon.CallCount}, nil
}

// consumeQuota списывает один вызов из квоты актора.
// При отказе счётчик не меняется.
func consumeQuota(ctx context.Context, tx repository.Tx, actor string, height int64, limits ratelimit.Limits) error {
	prev, err := loadQuota(ctx, tx, actor, true)
	if err != nil {
		return err
	}

	next, ok := ratelimit.Evaluate(prev, height, limits)
	if !ok {
		rateLimitedTotal.Inc()
		return fmt.Errorf("%w: не более %d вызовов за %d высот, повторите после высоты %d",
			ErrRateLimited, limits.Max, limits.Window, prev.LastHeight+limits.Window)
	}

	return tx.Monitors().Upsert(ctx, &model.TransactionMonitor{
		Actor:      actor,
		LastHeight: next.LastHeight,
		CallCount:  next.Count,
	})
}
