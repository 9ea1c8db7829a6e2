package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// monitorRepo — реализация MonitorRepository.
type monitorRepo struct {
	db DBTX
}

// GetForUpdate сначала берёт транзакционную advisory-блокировку по актору:
// строки может ещё не быть, а два первых вызова актора не должны
// разойтись в подсчёте.
func (r *monitorRepo) GetForUpdate(ctx context.Context, actor string) (*model.TransactionMonitor, error) {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, actor); err != nil {
		return nil, fmt.Errorf("ошибка блокировки счётчика актора: %w", err)
	}
	return r.get(ctx, actor, " FOR UPDATE")
}

func (r *monitorRepo) Get(ctx context.Context, actor string) (*model.TransactionMonitor, error) {
	return r.get(ctx, actor, "")
}

func (r *monitorRepo) get(ctx context.Context, actor, lock string) (*model.TransactionMonitor, error) {
	query := `SELECT actor, last_height, call_count FROM transaction_monitors WHERE actor = $1` + lock

	m := &model.TransactionMonitor{}
	err := r.db.QueryRow(ctx, query, actor).Scan(&m.Actor, &m.LastHeight, &m.CallCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения счётчика актора: %w", err)
	}
	return m, nil
}

func (r *monitorRepo) Upsert(ctx context.Context, m *model.TransactionMonitor) error {
	query := `
		INSERT INTO transaction_monitors (actor, last_height, call_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (actor) DO UPDATE
		SET last_height = EXCLUDED.last_height,
			call_count = EXCLUDED.call_count`

	if _, err := r.db.Exec(ctx, query, m.Actor, m.LastHeight, m.CallCount); err != nil {
		return fmt.Errorf("ошибка сохранения счётчика актора: %w", err)
	}
	return nil
}
