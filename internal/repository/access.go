package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// accessRepo — реализация AccessRepository.
type accessRepo struct {
	db DBTX
}

func (r *accessRepo) UpsertPermission(ctx context.Context, p *model.GranularPermission) error {
	query := `
		INSERT INTO granular_permissions (record_id, participant, level, granted_by, granted_height)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_id, participant) DO UPDATE
		SET level = EXCLUDED.level,
			granted_by = EXCLUDED.granted_by,
			granted_height = EXCLUDED.granted_height`

	_, err := r.db.Exec(ctx, query, p.RecordID, p.Participant, p.Level, p.GrantedBy, p.GrantedHeight)
	if err != nil {
		return fmt.Errorf("ошибка сохранения права доступа: %w", err)
	}
	return nil
}

func (r *accessRepo) GetPermission(ctx context.Context, recordID int64, participant string) (*model.GranularPermission, error) {
	query := `
		SELECT record_id, participant, level, granted_by, granted_height
		FROM granular_permissions
		WHERE record_id = $1 AND participant = $2`

	p := &model.GranularPermission{}
	err := r.db.QueryRow(ctx, query, recordID, participant).Scan(
		&p.RecordID, &p.Participant, &p.Level, &p.GrantedBy, &p.GrantedHeight,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения права доступа: %w", err)
	}
	return p, nil
}

func (r *accessRepo) ListPermissions(ctx context.Context, recordID int64) ([]*model.GranularPermission, error) {
	query := `
		SELECT record_id, participant, level, granted_by, granted_height
		FROM granular_permissions
		WHERE record_id = $1
		ORDER BY participant`

	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения прав доступа: %w", err)
	}
	defer rows.Close()

	var result []*model.GranularPermission
	for rows.Next() {
		p := &model.GranularPermission{}
		if err := rows.Scan(&p.RecordID, &p.Participant, &p.Level, &p.GrantedBy, &p.GrantedHeight); err != nil {
			return nil, fmt.Errorf("ошибка сканирования права доступа: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *accessRepo) UpsertViewer(ctx context.Context, v *model.ViewerPrivilege) error {
	query := `
		INSERT INTO viewer_privileges (record_id, observer, can_view, granted_by, granted_height)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_id, observer) DO UPDATE
		SET can_view = EXCLUDED.can_view,
			granted_by = EXCLUDED.granted_by,
			granted_height = EXCLUDED.granted_height`

	_, err := r.db.Exec(ctx, query, v.RecordID, v.Observer, v.CanView, v.GrantedBy, v.GrantedHeight)
	if err != nil {
		return fmt.Errorf("ошибка сохранения привилегии просмотра: %w", err)
	}
	return nil
}

func (r *accessRepo) GetViewer(ctx context.Context, recordID int64, observer string) (*model.ViewerPrivilege, error) {
	query := `
		SELECT record_id, observer, can_view, granted_by, granted_height
		FROM viewer_privileges
		WHERE record_id = $1 AND observer = $2`

	v := &model.ViewerPrivilege{}
	err := r.db.QueryRow(ctx, query, recordID, observer).Scan(
		&v.RecordID, &v.Observer, &v.CanView, &v.GrantedBy, &v.GrantedHeight,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения привилегии просмотра: %w", err)
	}
	return v, nil
}

func (r *accessRepo) DeleteViewer(ctx context.Context, recordID int64, observer string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM viewer_privileges WHERE record_id = $1 AND observer = $2`, recordID, observer)
	if err != nil {
		return fmt.Errorf("ошибка удаления привилегии просмотра: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accessRepo) ListViewers(ctx context.Context, recordID int64) ([]*model.ViewerPrivilege, error) {
	query := `
		SELECT record_id, observer, can_view, granted_by, granted_height
		FROM viewer_privileges
		WHERE record_id = $1
		ORDER BY observer`

	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения привилегий просмотра: %w", err)
	}
	defer rows.Close()

	var result []*model.ViewerPrivilege
	for rows.Next() {
		v := &model.ViewerPrivilege{}
		if err := rows.Scan(&v.RecordID, &v.Observer, &v.CanView, &v.GrantedBy, &v.GrantedHeight); err != nil {
			return nil, fmt.Errorf("ошибка сканирования привилегии просмотра: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}
