// protocol.go — административное управление протоколом: пауза
// и настройки rate limiter.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/domain/ratelimit"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// ProtocolService — сервис состояния протокола.
type ProtocolService struct {
	engine *Engine
	logger *slog.Logger
}

// NewProtocolService создаёт сервис состояния протокола.
func NewProtocolService(engine *Engine, logger *slog.Logger) *ProtocolService {
	return &ProtocolService{
		engine: engine,
		logger: logger.With(slog.String("component", "protocol_service")),
	}
}

// State возвращает текущее состояние протокола. Доступно всем.
func (s *ProtocolService) State(ctx context.Context) (*model.ProtocolState, error) {
	var state *model.ProtocolState
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		var err error
		state, err = s.engine.viewProtocolState(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Pause приостанавливает все изменяющие операции. Повторная пауза
// обновляет причину.
func (s *ProtocolService) Pause(ctx context.Context, actor, reason string) (*model.ProtocolState, error) {
	var result *model.ProtocolState
	err := s.engine.admin(ctx, "pause", actor, func(ctx context.Context, tx repository.Tx, state *model.ProtocolState, height int64) error {
		if utf8.RuneCountInString(reason) > MaxReasonLen {
			return ErrInvalidReason
		}

		by, h := actor, height
		state.Paused = true
		state.PausedBy = &by
		state.PausedHeight = &h
		state.PauseReason = nil
		if reason != "" {
			r := reason
			state.PauseReason = &r
		}
		state.UpdatedHeight = height
		if err := tx.Protocol().Update(ctx, state); err != nil {
			return fmt.Errorf("сохранение состояния протокола: %w", err)
		}
		result = state
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Протокол приостановлен",
		slog.String("actor", actor),
		slog.String("reason", reason),
	)
	return result, nil
}

// Resume снимает паузу. Причина и автор паузы очищаются.
func (s *ProtocolService) Resume(ctx context.Context, actor string) (*model.ProtocolState, error) {
	var result *model.ProtocolState
	err := s.engine.admin(ctx, "resume", actor, func(ctx context.Context, tx repository.Tx, state *model.ProtocolState, height int64) error {
		state.Paused = false
		state.PauseReason = nil
		state.PausedBy = nil
		state.PausedHeight = nil
		state.UpdatedHeight = height
		if err := tx.Protocol().Update(ctx, state); err != nil {
			return fmt.Errorf("сохранение состояния протокола: %w", err)
		}
		result = state
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Протокол возобновлён", slog.String("actor", actor))
	return result, nil
}

// SetRateLimit меняет окно и максимум вызовов rate limiter.
// Существующие счётчики акторов не сбрасываются.
func (s *ProtocolService) SetRateLimit(ctx context.Context, actor string, window int64, limit int) (*model.ProtocolState, error) {
	var result *model.ProtocolState
	err := s.engine.admin(ctx, "set_rate_limit", actor, func(ctx context.Context, tx repository.Tx, state *model.ProtocolState, height int64) error {
		if err := (ratelimit.Limits{Window: window, Max: limit}).Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLimits, err) //nolint:errorlint // причина только для текста
		}

		state.RateWindow = window
		state.RateMax = limit
		state.UpdatedHeight = height
		if err := tx.Protocol().Update(ctx, state); err != nil {
			return fmt.Errorf("сохранение состояния протокола: %w", err)
		}
		result = state
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Настройки rate limiter изменены",
		slog.String("actor", actor),
		slog.Int64("window", window),
		slog.Int("max", limit),
	)
	return result, nil
}
