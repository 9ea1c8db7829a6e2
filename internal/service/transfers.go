// transfers.go — Transfer Scheduler: двухфазная передача владения.
//
// Фаза 1 (Schedule) сохраняет ожидающую операцию с хешем подтверждения
// и высотой истечения. Фаза 2 (Execute) меняет владельца, если операция
// ещё действительна и предъявлен тот же хеш. Исполнить может как
// запросивший, так и получатель; отменить — запросивший или текущий
// создатель записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/domain/schedule"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

// TransferService — сервис отложенных передач владения.
type TransferService struct {
	engine *Engine
	delay  int64
	logger *slog.Logger
}

// NewTransferService создаёт сервис отложенных передач.
// delay — через сколько высот после планирования операция истекает.
func NewTransferService(engine *Engine, delay int64, logger *slog.Logger) *TransferService {
	return &TransferService{
		engine: engine,
		delay:  delay,
		logger: logger.With(slog.String("component", "transfer_service")),
	}
}

// Schedule планирует передачу записи newOwner. Только создатель.
// Просроченные ожидающие операции записи предварительно помечаются expired.
func (s *TransferService) Schedule(ctx context.Context, actor string, id int64, newOwner, verificationHash string) (*model.ScheduledOperation, error) {
	var op *model.ScheduledOperation
	err := s.engine.mutate(ctx, "schedule_transfer", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		if _, err := loadOwnedRecord(ctx, tx, id, actor); err != nil {
			return err
		}
		if err := validateActor(newOwner); err != nil {
			return err
		}
		if err := validateHash(verificationHash); err != nil {
			return err
		}

		if _, err := tx.Schedules().ExpirePending(ctx, &id, height); err != nil {
			return fmt.Errorf("истечение просроченных операций: %w", err)
		}

		recipient := newOwner
		op = &model.ScheduledOperation{
			RecordID:         id,
			Kind:             model.OperationKindTransfer,
			Requester:        actor,
			Recipient:        &recipient,
			RequestedHeight:  height,
			VerificationHash: verificationHash,
			ExpiresHeight:    schedule.ExpiresAt(height, s.delay),
			Status:           string(schedule.StatusPending),
		}
		if err := tx.Schedules().Insert(ctx, op); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyPending
			}
			return fmt.Errorf("сохранение операции: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Передача владения запланирована",
		slog.Int64("record_id", id),
		slog.Int64("seq", op.Seq),
		slog.String("actor", actor),
		slog.String("recipient", newOwner),
		slog.Int64("expires_height", op.ExpiresHeight),
	)
	return op, nil
}

// Execute исполняет запланированную передачу.
//
// Порядок проверок: операция существует → не истекла → ожидает исполнения →
// actor — запросивший или получатель → хеш совпадает → владелец записи
// не менялся после планирования.
func (s *TransferService) Execute(ctx context.Context, actor string, seq, id int64, suppliedHash string) (*model.ScheduledOperation, error) {
	var op *model.ScheduledOperation
	err := s.engine.mutate(ctx, "execute_transfer", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		rec, loaded, err := loadOperation(ctx, tx, seq, id)
		if err != nil {
			return err
		}
		op = loaded

		if err := checkResolvable(op, schedule.StatusExecuted, height); err != nil {
			return err
		}
		if actor != op.Requester && (op.Recipient == nil || actor != *op.Recipient) {
			return fmt.Errorf("%w: исполнить передачу может только запросивший или получатель", ErrUnauthorized)
		}
		if suppliedHash != op.VerificationHash {
			return ErrHashMismatch
		}
		if rec.Creator != op.Requester {
			return ErrStaleOperation
		}

		rec.Creator = *op.Recipient
		rec.UpdatedHeight = height
		if err := tx.Records().Update(ctx, rec); err != nil {
			return fmt.Errorf("смена владельца: %w", err)
		}

		by := actor
		if err := tx.Schedules().Resolve(ctx, op.Seq, string(schedule.StatusExecuted), &by, height); err != nil {
			return fmt.Errorf("завершение операции: %w", err)
		}
		op.Status = string(schedule.StatusExecuted)
		op.ResolvedBy = &by
		op.ResolvedHeight = &height
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Передача владения исполнена",
		slog.Int64("record_id", id),
		slog.Int64("seq", seq),
		slog.String("actor", actor),
		slog.String("new_owner", *op.Recipient),
	)
	return op, nil
}

// Cancel отменяет запланированную передачу.
// Доступно запросившему и текущему создателю записи.
func (s *TransferService) Cancel(ctx context.Context, actor string, seq, id int64) (*model.ScheduledOperation, error) {
	var op *model.ScheduledOperation
	err := s.engine.mutate(ctx, "cancel_transfer", actor, true, func(ctx context.Context, tx repository.Tx, height int64) error {
		rec, loaded, err := loadOperation(ctx, tx, seq, id)
		if err != nil {
			return err
		}
		op = loaded

		if err := checkResolvable(op, schedule.StatusCancelled, height); err != nil {
			return err
		}
		if actor != op.Requester && actor != rec.Creator {
			return fmt.Errorf("%w: отменить передачу может только запросивший или создатель записи", ErrUnauthorized)
		}

		by := actor
		if err := tx.Schedules().Resolve(ctx, op.Seq, string(schedule.StatusCancelled), &by, height); err != nil {
			return fmt.Errorf("отмена операции: %w", err)
		}
		op.Status = string(schedule.StatusCancelled)
		op.ResolvedBy = &by
		op.ResolvedHeight = &height
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Передача владения отменена",
		slog.Int64("record_id", id),
		slog.Int64("seq", seq),
		slog.String("actor", actor),
	)
	return op, nil
}

// Get возвращает операцию записи. Доступно тем, кто может читать запись.
// Просроченная ожидающая операция возвращается в состоянии expired.
func (s *TransferService) Get(ctx context.Context, actor string, seq, id int64) (*model.ScheduledOperation, error) {
	var op *model.ScheduledOperation
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, height int64) error {
		if err := requireView(ctx, tx, id, actor); err != nil {
			return err
		}
		var err error
		op, err = tx.Schedules().Get(ctx, seq, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: seq=%d", ErrOperationNotFound, seq)
			}
			return fmt.Errorf("получение операции: %w", err)
		}
		effective(op, height)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ListForRecord возвращает все операции записи по возрастанию seq.
func (s *TransferService) ListForRecord(ctx context.Context, actor string, id int64) ([]*model.ScheduledOperation, error) {
	var ops []*model.ScheduledOperation
	err := s.engine.read(ctx, func(ctx context.Context, tx repository.Tx, height int64) error {
		if err := requireView(ctx, tx, id, actor); err != nil {
			return err
		}
		var err error
		if ops, err = tx.Schedules().ListByRecord(ctx, id); err != nil {
			return fmt.Errorf("получение операций: %w", err)
		}
		for _, op := range ops {
			effective(op, height)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// SweepExpired помечает expired все просроченные ожидающие операции.
// Не зависит от паузы протокола.
func (s *TransferService) SweepExpired(ctx context.Context) (int, error) {
	var n int
	err := s.engine.system(ctx, func(ctx context.Context, tx repository.Tx, height int64) error {
		var err error
		n, err = tx.Schedules().ExpirePending(ctx, nil, height)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("истечение операций: %w", err)
	}
	return n, nil
}

// loadOperation блокирует запись, затем операцию. Записи блокируются
// раньше операций во всех путях, поэтому порядок блокировок один.
func loadOperation(ctx context.Context, tx repository.Tx, seq, id int64) (*model.Record, *model.ScheduledOperation, error) {
	rec, err := tx.Records().GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: seq=%d", ErrOperationNotFound, seq)
		}
		return nil, nil, fmt.Errorf("получение записи: %w", err)
	}

	op, err := tx.Schedules().GetForUpdate(ctx, seq, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: seq=%d", ErrOperationNotFound, seq)
		}
		return nil, nil, fmt.Errorf("получение операции: %w", err)
	}
	return rec, op, nil
}

// checkResolvable проверяет переход операции в состояние to и переводит
// ошибку конечного автомата в ошибку сервиса.
func checkResolvable(op *model.ScheduledOperation, to schedule.Status, height int64) error {
	err := schedule.CheckResolvable(schedule.Status(op.Status), to, op.ExpiresHeight, height)
	var te *schedule.TransitionError
	if !errors.As(err, &te) {
		return err
	}
	switch te.Code {
	case schedule.CodeNotPending:
		return fmt.Errorf("%w: %s", ErrNotPending, te.Message)
	case schedule.CodeExpired:
		return fmt.Errorf("%w: %s", ErrExpired, te.Message)
	default:
		return fmt.Errorf("%w: %s", ErrConflict, te.Message)
	}
}

func effective(op *model.ScheduledOperation, height int64) {
	op.Status = string(schedule.Effective(schedule.Status(op.Status), op.ExpiresHeight, height))
}
