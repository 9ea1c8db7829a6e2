// records.go — Record Store: регистрация, чтение, изменение, передача
// владения и удаление записей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// RecordService — сервис записей реестра.
type RecordService struct {
	engine *Engine
	logger *slog.Logger
}

// NewRecordService создаёт сервис записей.
func NewRecordService(engine *Engine, logger *slog.Logger) *RecordService {
	return &RecordService{
		engine: engine,
		logger: logger.With(slog.String("component", "record_service")),
	}
}

// Register регистрирует запись без учёта квоты актора.
// Создатель автоматически получает привилегию просмотра.
func (s *RecordService) Register(ctx context.Context, actor string, fields model.RecordFields) (*model.Record, error) {
	return s.register(ctx, "register", actor, fields, false)
}

// RegisterRateLimited регистрирует запись, предварительно списав вызов из квоты актора.
func (s *RecordService) RegisterRateLimited(ctx context.Context, actor string, fields model.RecordFields) (*model.Record, error) {
	return s.register(ctx, "register_rate_limited", actor, fields, true)
}

func (s *RecordService) register(ctx context.Context, op, actor string, fields model.RecordFields, gated bool) (*model.Record, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	var rec *model.Record
	err := s.engine.mutate(ctx, op, actor, gated, func(ctx context.Context, tx repository.Tx, height int64) error {
		if err := ValidateFields(fields); err != nil {
			return err
		}

		rec = &model.Record{
			Creator:       actor,
			CreatedHeight: height,
			UpdatedHeight: height,
		}
		rec.Apply(fields)
		if err := tx.Records().Insert(ctx, rec); err != nil {
			return fmt.Errorf("сохранение записи: %w", err)
		}

		return tx.Access().UpsertViewer(ctx, &model.ViewerPrivilege{
			RecordID:      rec.ID,
			Observer:      actor,
			CanView:       true,
			GrantedBy:     actor,
			GrantedHeight: height,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Запись зарегистрирована",
		slog.Int64("record_id", rec.ID),
		slog.String("actor", actor),
		slog.Int64("height", rec.CreatedHeight),
	)
	return rec, nil
}

// Get возвращает запись по ID.
func (s *RecordService) Get(ctx context.Context, id int64) (*model.Record, error) {
	var rec *model.Record
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		var err error
		rec, err = tx.Records().Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: id=%d", ErrRecordNotFound, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List возвращает страницу записей и общее количество по фильтру.
func (s *RecordService) List(ctx context.Context, filter repository.RecordFilter, limit, offset int) ([]*model.Record, int, error) {
	var (
		items []*model.Record
		total int
	)
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		var err error
		if items, err = tx.Records().List(ctx, filter, limit, offset); err != nil {
			return fmt.Errorf("получение списка записей: %w", err)
		}
		if total, err = tx.Records().Count(ctx, filter); err != nil {
			return fmt.Errorf("подсчёт записей: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateMetadata заменяет все изменяемые поля записи. Только создатель.
func (s *RecordService) UpdateMetadata(ctx context.Context, actor string, id int64, fields model.RecordFields) (*model.Record, error) {
	var rec *model.Record
	err := s.engine.mutate(ctx, "update_metadata", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		var err error
		if rec, err = loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		if err := ValidateFields(fields); err != nil {
			return err
		}

		rec.Apply(fields)
		rec.UpdatedHeight = height
		return tx.Records().Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Метаданные записи обновлены",
		slog.Int64("record_id", id),
		slog.String("actor", actor),
	)
	return rec, nil
}

// TransferOwnership передаёт запись новому владельцу. Только создатель.
// Права и привилегии просмотра остаются привязанными к записи;
// ожидающая отложенная передача этой записи отменяется.
func (s *RecordService) TransferOwnership(ctx context.Context, actor string, id int64, newOwner string) (*model.Record, error) {
	var rec *model.Record
	err := s.engine.mutate(ctx, "transfer_ownership", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		var err error
		if rec, err = loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		if err := validateActor(newOwner); err != nil {
			return err
		}

		if _, err := tx.Schedules().CancelPending(ctx, id, actor, height); err != nil {
			return fmt.Errorf("отмена ожидающих передач: %w", err)
		}

		rec.Creator = newOwner
		rec.UpdatedHeight = height
		return tx.Records().Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Владелец записи изменён",
		slog.Int64("record_id", id),
		slog.String("actor", actor),
		slog.String("new_owner", newOwner),
	)
	return rec, nil
}

// Unregister удаляет запись вместе с правами, аттестацией и отложенными
// операциями. Только создатель. ID удалённой записи не переиспользуется.
func (s *RecordService) Unregister(ctx context.Context, actor string, id int64) error {
	err := s.engine.mutate(ctx, "unregister", actor, true, func(ctx context.Context, tx repository.Tx, _ int64) error {
		if _, err := loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		return tx.Records().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Запись удалена",
		slog.Int64("record_id", id),
		slog.String("actor", actor),
	)
	return nil
}
