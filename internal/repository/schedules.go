package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// scheduleRepo — реализация ScheduleRepository.
type scheduleRepo struct {
	db DBTX
}

const scheduleColumns = `seq, record_id, kind, requester, recipient, requested_height,
	verification_hash, expires_height, status, resolved_by, resolved_height`

func scanSchedule(row pgx.Row) (*model.ScheduledOperation, error) {
	op := &model.ScheduledOperation{}
	err := row.Scan(
		&op.Seq, &op.RecordID, &op.Kind, &op.Requester, &op.Recipient, &op.RequestedHeight,
		&op.VerificationHash, &op.ExpiresHeight, &op.Status, &op.ResolvedBy, &op.ResolvedHeight,
	)
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (r *scheduleRepo) Insert(ctx context.Context, op *model.ScheduledOperation) error {
	query := `
		INSERT INTO scheduled_operations (record_id, kind, requester, recipient, requested_height,
			verification_hash, expires_height, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`

	err := r.db.QueryRow(ctx, query,
		op.RecordID, op.Kind, op.Requester, op.Recipient, op.RequestedHeight,
		op.VerificationHash, op.ExpiresHeight, op.Status,
	).Scan(&op.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: у записи уже есть ожидающая операция", ErrConflict)
		}
		return fmt.Errorf("ошибка вставки операции: %w", err)
	}
	return nil
}

func (r *scheduleRepo) Get(ctx context.Context, seq, recordID int64) (*model.ScheduledOperation, error) {
	return r.get(ctx, seq, recordID, "")
}

func (r *scheduleRepo) GetForUpdate(ctx context.Context, seq, recordID int64) (*model.ScheduledOperation, error) {
	return r.get(ctx, seq, recordID, " FOR UPDATE")
}

func (r *scheduleRepo) get(ctx context.Context, seq, recordID int64, lock string) (*model.ScheduledOperation, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_operations WHERE seq = $1 AND record_id = $2` + lock

	op, err := scanSchedule(r.db.QueryRow(ctx, query, seq, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения операции: %w", err)
	}
	return op, nil
}

func (r *scheduleRepo) Resolve(ctx context.Context, seq int64, status string, by *string, height int64) error {
	query := `
		UPDATE scheduled_operations
		SET status = $2, resolved_by = $3, resolved_height = $4
		WHERE seq = $1`

	tag, err := r.db.Exec(ctx, query, seq, status, by, height)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса операции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *scheduleRepo) ExpirePending(ctx context.Context, recordID *int64, height int64) (int, error) {
	query := `
		UPDATE scheduled_operations
		SET status = 'expired', resolved_by = NULL, resolved_height = $1
		WHERE status = 'pending' AND expires_height < $1
			AND ($2::BIGINT IS NULL OR record_id = $2)`

	tag, err := r.db.Exec(ctx, query, height, recordID)
	if err != nil {
		return 0, fmt.Errorf("ошибка истечения операций: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *scheduleRepo) CancelPending(ctx context.Context, recordID int64, by string, height int64) (int, error) {
	query := `
		UPDATE scheduled_operations
		SET status = 'cancelled', resolved_by = $2, resolved_height = $3
		WHERE status = 'pending' AND record_id = $1`

	tag, err := r.db.Exec(ctx, query, recordID, by, height)
	if err != nil {
		return 0, fmt.Errorf("ошибка отмены операций: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *scheduleRepo) ListByRecord(ctx context.Context, recordID int64) ([]*model.ScheduledOperation, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_operations WHERE record_id = $1 ORDER BY seq`

	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения операций: %w", err)
	}
	defer rows.Close()

	var result []*model.ScheduledOperation
	for rows.Next() {
		op, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования операции: %w", err)
		}
		result = append(result, op)
	}
	return result, rows.Err()
}
