package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// protocolRepo — реализация ProtocolRepository (одна строка, id = 1).
// В транзакции READ ONLY строка читается без блокировки.
type protocolRepo struct {
	db       DBTX
	readOnly bool
}

func (r *protocolRepo) Ensure(ctx context.Context, defaults *model.ProtocolState) error {
	query := `
		INSERT INTO protocol_state (id, paused, rate_window, rate_max, updated_height)
		VALUES (1, FALSE, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, defaults.RateWindow, defaults.RateMax, defaults.UpdatedHeight)
	if err != nil {
		return fmt.Errorf("ошибка инициализации protocol_state: %w", err)
	}
	return nil
}

// Get блокирует строку в разделяемом режиме: пауза, поставленная
// параллельно, дождётся завершения текущей операции.
func (r *protocolRepo) Get(ctx context.Context) (*model.ProtocolState, error) {
	if r.readOnly {
		return r.get(ctx, "")
	}
	return r.get(ctx, " FOR SHARE")
}

func (r *protocolRepo) GetForUpdate(ctx context.Context) (*model.ProtocolState, error) {
	return r.get(ctx, " FOR UPDATE")
}

func (r *protocolRepo) get(ctx context.Context, lock string) (*model.ProtocolState, error) {
	query := `
		SELECT paused, pause_reason, paused_by, paused_height, rate_window, rate_max, updated_height
		FROM protocol_state
		WHERE id = 1` + lock

	s := &model.ProtocolState{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.Paused, &s.PauseReason, &s.PausedBy, &s.PausedHeight,
		&s.RateWindow, &s.RateMax, &s.UpdatedHeight,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения protocol_state: %w", err)
	}
	return s, nil
}

func (r *protocolRepo) Update(ctx context.Context, s *model.ProtocolState) error {
	query := `
		UPDATE protocol_state
		SET paused = $1, pause_reason = $2, paused_by = $3, paused_height = $4,
			rate_window = $5, rate_max = $6, updated_height = $7
		WHERE id = 1`

	tag, err := r.db.Exec(ctx, query,
		s.Paused, s.PauseReason, s.PausedBy, s.PausedHeight,
		s.RateWindow, s.RateMax, s.UpdatedHeight,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления protocol_state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
