// authenticity.go — Authenticity Ledger: аттестация подлинности записи
// непрозрачным хешем и публичная проверка.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// AuthenticityService — сервис аттестаций.
type AuthenticityService struct {
	engine *Engine
	logger *slog.Logger
}

// NewAuthenticityService создаёт сервис аттестаций.
func NewAuthenticityService(engine *Engine, logger *slog.Logger) *AuthenticityService {
	return &AuthenticityService{
		engine: engine,
		logger: logger.With(slog.String("component", "authenticity_service")),
	}
}

// Attest сохраняет аттестацию записи. Только создатель.
// Существующая аттестация перезаписывается только при replace = true,
// иначе — ErrAlreadyAttested.
func (s *AuthenticityService) Attest(ctx context.Context, actor string, id int64, hash, method string, replace bool) (*model.AuthenticityRecord, error) {
	var att *model.AuthenticityRecord
	err := s.engine.mutate(ctx, "attest", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		if _, err := loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		if err := validateMethod(method); err != nil {
			return err
		}
		if err := validateHash(hash); err != nil {
			return err
		}

		_, err := tx.Authenticity().Get(ctx, id)
		switch {
		case err == nil:
			if !replace {
				return ErrAlreadyAttested
			}
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("получение аттестации: %w", err)
		}

		att = &model.AuthenticityRecord{
			RecordID:       id,
			Hash:           hash,
			Method:         method,
			Attestor:       actor,
			AttestedHeight: height,
		}
		return tx.Authenticity().Upsert(ctx, att)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Запись аттестована",
		slog.Int64("record_id", id),
		slog.String("actor", actor),
		slog.String("method", method),
		slog.Bool("replace", replace),
	)
	return att, nil
}

// Get возвращает аттестацию записи. Доступно всем.
func (s *AuthenticityService) Get(ctx context.Context, id int64) (*model.AuthenticityRecord, error) {
	var att *model.AuthenticityRecord
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		var err error
		att, err = loadAttestation(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// Verify сравнивает candidate с сохранённым хешем. Доступно всем,
// состояние не меняется.
func (s *AuthenticityService) Verify(ctx context.Context, id int64, candidate string) error {
	return s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		att, err := loadAttestation(ctx, tx, id)
		if err != nil {
			return err
		}
		if att.Hash != candidate {
			return ErrHashMismatch
		}
		return nil
	})
}

func loadAttestation(ctx context.Context, tx repository.Tx, id int64) (*model.AuthenticityRecord, error) {
	att, err := tx.Authenticity().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrNoAttestation, id)
		}
		return nil, fmt.Errorf("получение аттестации: %w", err)
	}
	return att, nil
}
