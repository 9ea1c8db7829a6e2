package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// recordRepo — реализация RecordRepository.
type recordRepo struct {
	db DBTX
}

const recordColumns = `id, name, creator, size, details, categories, created_height, updated_height`

func scanRecord(row pgx.Row) (*model.Record, error) {
	rec := &model.Record{}
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Creator, &rec.Size, &rec.Details,
		&rec.Categories, &rec.CreatedHeight, &rec.UpdatedHeight,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *recordRepo) Insert(ctx context.Context, rec *model.Record) error {
	query := `
		INSERT INTO records (name, creator, size, details, categories, created_height, updated_height)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		rec.Name, rec.Creator, rec.Size, rec.Details, rec.Categories,
		rec.CreatedHeight, rec.UpdatedHeight,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи: %w", err)
	}
	return nil
}

func (r *recordRepo) Get(ctx context.Context, id int64) (*model.Record, error) {
	return r.get(ctx, id, "")
}

func (r *recordRepo) GetForUpdate(ctx context.Context, id int64) (*model.Record, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *recordRepo) get(ctx context.Context, id int64, lock string) (*model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1` + lock

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

func (r *recordRepo) Update(ctx context.Context, rec *model.Record) error {
	query := `
		UPDATE records
		SET name = $2, creator = $3, size = $4, details = $5, categories = $6, updated_height = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		rec.ID, rec.Name, rec.Creator, rec.Size, rec.Details, rec.Categories, rec.UpdatedHeight,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет запись; права, аттестация и операции удаляются каскадно (FK).
func (r *recordRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildRecordWhere строит WHERE-условие и аргументы для фильтрации записей.
func buildRecordWhere(filter RecordFilter, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filter.Creator != nil {
		conditions = append(conditions, fmt.Sprintf("creator = $%d", argNum))
		args = append(args, *filter.Creator)
		argNum++
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(categories)", argNum))
		args = append(args, *filter.Category)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *recordRepo) List(ctx context.Context, filter RecordFilter, limit, offset int) ([]*model.Record, error) {
	where, args := buildRecordWhere(filter, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`SELECT %s FROM records%s ORDER BY id LIMIT $%d OFFSET $%d`,
		recordColumns, where, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	var result []*model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *recordRepo) Count(ctx context.Context, filter RecordFilter) (int, error) {
	where, args := buildRecordWhere(filter, 1)

	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return count, nil
}
