package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// authenticityRepo — реализация AuthenticityRepository.
type authenticityRepo struct {
	db DBTX
}

func (r *authenticityRepo) Get(ctx context.Context, recordID int64) (*model.AuthenticityRecord, error) {
	query := `
		SELECT record_id, hash, method, attestor, attested_height
		FROM attestations
		WHERE record_id = $1`

	a := &model.AuthenticityRecord{}
	err := r.db.QueryRow(ctx, query, recordID).Scan(
		&a.RecordID, &a.Hash, &a.Method, &a.Attestor, &a.AttestedHeight,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения аттестации: %w", err)
	}
	return a, nil
}

func (r *authenticityRepo) Upsert(ctx context.Context, a *model.AuthenticityRecord) error {
	query := `
		INSERT INTO attestations (record_id, hash, method, attestor, attested_height)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_id) DO UPDATE
		SET hash = EXCLUDED.hash,
			method = EXCLUDED.method,
			attestor = EXCLUDED.attestor,
			attested_height = EXCLUDED.attested_height`

	_, err := r.db.Exec(ctx, query, a.RecordID, a.Hash, a.Method, a.Attestor, a.AttestedHeight)
	if err != nil {
		return fmt.Errorf("ошибка сохранения аттестации: %w", err)
	}
	return nil
}
