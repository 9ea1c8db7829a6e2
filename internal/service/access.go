// access.go — Access Control Engine.
//
// Два канала прав:
//   - градуированные права (none < view < edit < manage) — единственный
//     источник для HasAccess;
//   - булева привилегия просмотра — только для чтения закрытых данных
//     записи (CanView), и только если для актора нет градуированного права.
//
// Создатель записи не проверяется по таблицам: он всегда имеет manage.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/collectible-registry/internal/domain/access"
	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// ErrPrivilegeNotFound — у наблюдателя нет привилегии просмотра.
var ErrPrivilegeNotFound = fmt.Errorf("%w: привилегия просмотра не найдена", ErrNotFound)

// AccessService — сервис прав доступа к записям.
type AccessService struct {
	engine *Engine
	logger *slog.Logger
}

// NewAccessService создаёт сервис прав доступа.
func NewAccessService(engine *Engine, logger *slog.Logger) *AccessService {
	return &AccessService{
		engine: engine,
		logger: logger.With(slog.String("component", "access_service")),
	}
}

// HasAccess сообщает, имеет ли actor уровень не ниже required на запись id.
// Для несуществующей записи возвращает false без ошибки.
func (s *AccessService) HasAccess(ctx context.Context, id int64, actor string, required access.Level) (bool, error) {
	var ok bool
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		rec, err := tx.Records().Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("получение записи: %w", err)
		}
		grant, err := loadGrant(ctx, tx, id, actor)
		if err != nil {
			return err
		}
		ok = access.HasAccess(rec.Creator, actor, grant, required)
		return nil
	})
	return ok, err
}

// CanView сообщает, может ли actor читать закрытые данные записи.
func (s *AccessService) CanView(ctx context.Context, id int64, actor string) (bool, error) {
	var ok bool
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		rec, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		ok, err = canView(ctx, tx, rec, actor)
		return err
	})
	return ok, err
}

// Authorize выдаёт participant уровень level на запись. Только создатель.
func (s *AccessService) Authorize(ctx context.Context, actor string, id int64, participant string, level access.Level) (*model.GranularPermission, error) {
	return s.authorize(ctx, actor, id, participant, func() (access.Level, error) {
		if !level.IsValid() {
			return level, fmt.Errorf("%w: %d", ErrInvalidLevel, int(level))
		}
		return level, nil
	})
}

// AuthorizeNamed — Authorize с уровнем, заданным именем ("none", "view",
// "edit", "manage"). Имя разбирается после проверки прав создателя.
func (s *AccessService) AuthorizeNamed(ctx context.Context, actor string, id int64, participant, levelName string) (*model.GranularPermission, error) {
	return s.authorize(ctx, actor, id, participant, func() (access.Level, error) {
		level, err := access.ParseLevel(levelName)
		if err != nil {
			return level, fmt.Errorf("%w: %s", ErrInvalidLevel, err.Error())
		}
		return level, nil
	})
}

func (s *AccessService) authorize(ctx context.Context, actor string, id int64, participant string, resolve func() (access.Level, error)) (*model.GranularPermission, error) {
	var (
		perm  *model.GranularPermission
		level access.Level
	)
	err := s.engine.mutate(ctx, "authorize", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		if _, err := loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		if err := validateActor(participant); err != nil {
			return err
		}
		var err error
		if level, err = resolve(); err != nil {
			return err
		}

		perm = &model.GranularPermission{
			RecordID:      id,
			Participant:   participant,
			Level:         int(level),
			GrantedBy:     actor,
			GrantedHeight: height,
		}
		return tx.Access().UpsertPermission(ctx, perm)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Право доступа выдано",
		slog.Int64("record_id", id),
		slog.String("actor", actor),
		slog.String("participant", participant),
		slog.String("level", level.String()),
	)
	return perm, nil
}

// GrantViewer выдаёт наблюдателю привилегию просмотра. Только создатель.
func (s *AccessService) GrantViewer(ctx context.Context, actor string, id int64, observer string) (*model.ViewerPrivilege, error) {
	var priv *model.ViewerPrivilege
	err := s.engine.mutate(ctx, "grant_viewer", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		if _, err := loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		if err := validateActor(observer); err != nil {
			return err
		}

		priv = &model.ViewerPrivilege{
			RecordID:      id,
			Observer:      observer,
			CanView:       true,
			GrantedBy:     actor,
			GrantedHeight: height,
		}
		return tx.Access().UpsertViewer(ctx, priv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Привилегия просмотра выдана",
		slog.Int64("record_id", id),
		slog.String("actor", actor),
		slog.String("observer", observer),
	)
	return priv, nil
}

// RevokeViewer отзывает привилегию просмотра. Только создатель.
func (s *AccessService) RevokeViewer(ctx context.Context, actor string, id int64, observer string) error {
	err := s.engine.mutate(ctx, "revoke_viewer", actor, true, func(ctx context.Context, tx repository.Tx, _ int64) error {
		if _, err := loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		err := tx.Access().DeleteViewer(ctx, id, observer)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: observer=%s", ErrPrivilegeNotFound, observer)
		}
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("Привилегия просмотра отозвана",
		slog.Int64("record_id", id),
		slog.String("actor", actor),
		slog.String("observer", observer),
	)
	return nil
}

// ListPermissions возвращает градуированные права на запись.
// Доступно тем, кто может читать запись.
func (s *AccessService) ListPermissions(ctx context.Context, actor string, id int64) ([]*model.GranularPermission, error) {
	var perms []*model.GranularPermission
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		if err := requireView(ctx, tx, id, actor); err != nil {
			return err
		}
		var err error
		perms, err = tx.Access().ListPermissions(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// ListViewers возвращает привилегии просмотра записи.
func (s *AccessService) ListViewers(ctx context.Context, actor string, id int64) ([]*model.ViewerPrivilege, error) {
	var viewers []*model.ViewerPrivilege
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, _ int64) error {
		if err := requireView(ctx, tx, id, actor); err != nil {
			return err
		}
		var err error
		viewers, err = tx.Access().ListViewers(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return viewers, nil
}

// getRecord читает запись без блокировки.
func getRecord(ctx context.Context, tx repository.Tx, id int64) (*model.Record, error) {
	rec, err := tx.Records().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}
	return rec, nil
}

// loadGrant читает градуированное право; nil — записи в таблице нет.
func loadGrant(ctx context.Context, tx repository.Tx, id int64, actor string) (*access.Grant, error) {
	perm, err := tx.Access().GetPermission(ctx, id, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("получение права доступа: %w", err)
	}
	return &access.Grant{Level: access.Level(perm.Level)}, nil
}

func canView(ctx context.Context, tx repository.Tx, rec *model.Record, actor string) (bool, error) {
	if rec.Creator == actor {
		return true, nil
	}
	grant, err := loadGrant(ctx, tx, rec.ID, actor)
	if err != nil {
		return false, err
	}

	viewer := false
	priv, err := tx.Access().GetViewer(ctx, rec.ID, actor)
	switch {
	case err == nil:
		viewer = priv.CanView
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("получение привилегии просмотра: %w", err)
	}

	return access.CanView(rec.Creator, actor, grant, viewer), nil
}

// requireView проверяет, что запись существует и actor может её читать.
func requireView(ctx context.Context, tx repository.Tx, id int64, actor string) error {
	rec, err := getRecord(ctx, tx, id)
	if err != nil {
		return err
	}
	ok, err := canView(ctx, tx, rec, actor)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: нет права просмотра записи", ErrUnauthorized)
	}
	return nil
}
