// engine.go — общий каркас операций реестра.
//
// Каждая операция выполняется в одной транзакции хранилища: сначала
// проверяются пауза протокола и квота актора, затем предусловия операции,
// и только потом выполняются записи. Любая ошибка откатывает транзакцию
// целиком, включая счётчик rate limiter.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/collectible-registry/internal/clock"
	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/domain/ratelimit"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// Prometheus метрики операций
var (
	// operationsTotal — количество операций по имени и результату.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cr_operations_total",
		Help: "Общее количество операций реестра по результату",
	}, []string{"operation", "result"})

	// rateLimitedTotal — количество вызовов, отклонённых rate limiter.
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cr_rate_limited_total",
		Help: "Количество вызовов, отклонённых rate limiter",
	})
)

// txFunc — тело операции внутри транзакции на высоте height.
type txFunc func(ctx context.Context, tx repository.Tx, height int64) error

// Engine — общий исполнитель операций: хранилище, источник высоты
// и начальные настройки протокола.
type Engine struct {
	store        repository.Store
	clock        clock.HeightSource
	defaults     ratelimit.Limits
	adminSubject string
	logger       *slog.Logger
}

// NewEngine создаёт исполнитель операций.
// defaults — настройки rate limiter при первой инициализации состояния протокола.
func NewEngine(
	store repository.Store,
	clk clock.HeightSource,
	defaults ratelimit.Limits,
	adminSubject string,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:        store,
		clock:        clk,
		defaults:     defaults,
		adminSubject: adminSubject,
		logger:       logger.With(slog.String("component", "engine")),
	}
}

// Height возвращает текущую высоту.
func (e *Engine) Height() int64 {
	return e.clock.Height()
}

// IsAdmin сообщает, что actor — административная идентичность.
func (e *Engine) IsAdmin(actor string) bool {
	return e.adminSubject != "" && actor == e.adminSubject
}

// Bootstrap создаёт состояние протокола, если его ещё нет.
// Вызывается один раз при старте; повторный вызов ничего не меняет.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if err := e.defaults.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLimits, err) //nolint:errorlint // намеренный двойной wrap
	}
	return e.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Protocol().Ensure(ctx, e.defaultState())
	})
}

func (e *Engine) defaultState() *model.ProtocolState {
	return &model.ProtocolState{
		RateWindow:    e.defaults.Window,
		RateMax:       e.defaults.Max,
		UpdatedHeight: e.clock.Height(),
	}
}

// protocolState читает состояние протокола, создавая его при отсутствии.
func (e *Engine) protocolState(ctx context.Context, tx repository.Tx, forUpdate bool) (*model.ProtocolState, error) {
	get := tx.Protocol().Get
	if forUpdate {
		get = tx.Protocol().GetForUpdate
	}

	state, err := get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		if err := tx.Protocol().Ensure(ctx, e.defaultState()); err != nil {
			return nil, err
		}
		state, err = get(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("чтение состояния протокола: %w", err)
	}
	return state, nil
}

// viewProtocolState читает состояние протокола в транзакции только для чтения.
// Если состояние ещё не создано, возвращаются настройки по умолчанию.
func (e *Engine) viewProtocolState(ctx context.Context, tx repository.Tx) (*model.ProtocolState, error) {
	state, err := tx.Protocol().Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return e.defaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение состояния протокола: %w", err)
	}
	return state, nil
}

// mutate выполняет изменяющую операцию актора.
// При паузе протокола операция отклоняется с ErrPaused.
// gated — операция расходует квоту rate limiter.
func (e *Engine) mutate(ctx context.Context, op, actor string, gated bool, fn txFunc) error {
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		height := e.clock.Height()

		state, err := e.protocolState(ctx, tx, false)
		if err != nil {
			return err
		}
		if state.Paused {
			return pausedError(state)
		}

		if gated {
			limits := ratelimit.Limits{Window: state.RateWindow, Max: state.RateMax}
			if err := consumeQuota(ctx, tx, actor, height, limits); err != nil {
				return err
			}
		}

		return fn(ctx, tx, height)
	})
	observe(op, err)
	return err
}

// admin выполняет административную операцию.
// Пауза и квота не проверяются; состояние протокола блокируется на запись.
func (e *Engine) admin(ctx context.Context, op, actor string, fn func(ctx context.Context, tx repository.Tx, state *model.ProtocolState, height int64) error) error {
	if !e.IsAdmin(actor) {
		observe(op, ErrUnauthorized)
		return fmt.Errorf("%w: операция доступна только администратору", ErrUnauthorized)
	}
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		height := e.clock.Height()
		state, err := e.protocolState(ctx, tx, true)
		if err != nil {
			return err
		}
		return fn(ctx, tx, state, height)
	})
	observe(op, err)
	return err
}

// read выполняет операцию только для чтения.
func (e *Engine) read(ctx context.Context, fn txFunc) error {
	return e.store.RunInReadTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, tx, e.clock.Height())
	})
}

// system выполняет изменяющую операцию без актора (фоновые задачи).
// Пауза и квота не проверяются.
func (e *Engine) system(ctx context.Context, fn txFunc) error {
	return e.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, tx, e.clock.Height())
	})
}

func pausedError(state *model.ProtocolState) error {
	if state.PauseReason != nil && *state.PauseReason != "" {
		return fmt.Errorf("%w: %s", ErrPaused, *state.PauseReason)
	}
	return ErrPaused
}

// loadRecord читает запись с блокировкой до конца транзакции.
func loadRecord(ctx context.Context, tx repository.Tx, id int64) (*model.Record, error) {
	rec, err := tx.Records().GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}
	return rec, nil
}

// loadOwnedRecord читает запись и проверяет, что actor — её создатель.
func loadOwnedRecord(ctx context.Context, tx repository.Tx, id int64, actor string) (*model.Record, error) {
	rec, err := loadRecord(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if rec.Creator != actor {
		return nil, fmt.Errorf("%w: операция доступна только создателю записи", ErrUnauthorized)
	}
	return rec, nil
}

// observe обновляет счётчик операций.
func observe(op string, err error) {
	operationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

// resultLabel возвращает вид ошибки для метрик.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrHashMismatch):
		return "hash_mismatch"
	default:
		return "error"
	}
}
