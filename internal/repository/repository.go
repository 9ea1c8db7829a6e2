// Пакет repository — слой доступа к данным реестра.
// Интерфейсы Store/Tx описывают хранилище с атомарными транзакциями;
// реализация PostgreSQL — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrReadOnly — попытка изменения в транзакции только для чтения.
	ErrReadOnly = errors.New("транзакция только для чтения")
)

// RecordFilter — фильтры списка записей.
type RecordFilter struct {
	// Creator — только записи указанного владельца
	Creator *string
	// Category — только записи с указанным тегом
	Category *string
}

// RecordRepository — CRUD таблицы records.
type RecordRepository interface {
	// Insert вставляет запись и присваивает ей следующий ID.
	Insert(ctx context.Context, r *model.Record) error
	// Get возвращает запись по ID.
	Get(ctx context.Context, id int64) (*model.Record, error)
	// GetForUpdate возвращает запись и блокирует её до конца транзакции.
	GetForUpdate(ctx context.Context, id int64) (*model.Record, error)
	// Update заменяет изменяемые поля и владельца.
	Update(ctx context.Context, r *model.Record) error
	// Delete удаляет запись вместе со всеми зависимыми строками.
	Delete(ctx context.Context, id int64) error
	// List возвращает записи с фильтрацией и пагинацией (по возрастанию ID).
	List(ctx context.Context, filter RecordFilter, limit, offset int) ([]*model.Record, error)
	// Count возвращает количество записей по фильтру.
	Count(ctx context.Context, filter RecordFilter) (int, error)
}

// AccessRepository — таблицы viewer_privileges и granular_permissions.
type AccessRepository interface {
	// UpsertPermission создаёт или обновляет градуированное право.
	UpsertPermission(ctx context.Context, p *model.GranularPermission) error
	// GetPermission возвращает право участника на запись.
	GetPermission(ctx context.Context, recordID int64, participant string) (*model.GranularPermission, error)
	// ListPermissions возвращает все права на запись.
	ListPermissions(ctx context.Context, recordID int64) ([]*model.GranularPermission, error)
	// UpsertViewer создаёт или обновляет привилегию просмотра.
	UpsertViewer(ctx context.Context, v *model.ViewerPrivilege) error
	// GetViewer возвращает привилегию просмотра наблюдателя.
	GetViewer(ctx context.Context, recordID int64, observer string) (*model.ViewerPrivilege, error)
	// DeleteViewer удаляет привилегию просмотра.
	DeleteViewer(ctx context.Context, recordID int64, observer string) error
	// ListViewers возвращает привилегии просмотра записи.
	ListViewers(ctx context.Context, recordID int64) ([]*model.ViewerPrivilege, error)
}

// MonitorRepository — таблица transaction_monitors.
type MonitorRepository interface {
	// GetForUpdate возвращает счётчик актора, удерживая блокировку актора
	// до конца транзакции. ErrNotFound, если актор ещё не вызывал методы.
	GetForUpdate(ctx context.Context, actor string) (*model.TransactionMonitor, error)
	// Get возвращает счётчик актора без блокировки.
	Get(ctx context.Context, actor string) (*model.TransactionMonitor, error)
	// Upsert сохраняет счётчик актора.
	Upsert(ctx context.Context, m *model.TransactionMonitor) error
}

// AuthenticityRepository — таблица attestations.
type AuthenticityRepository interface {
	// Get возвращает аттестацию записи.
	Get(ctx context.Context, recordID int64) (*model.AuthenticityRecord, error)
	// Upsert сохраняет (перезаписывает) аттестацию записи.
	Upsert(ctx context.Context, a *model.AuthenticityRecord) error
}

// ScheduleRepository — таблица scheduled_operations.
type ScheduleRepository interface {
	// Insert сохраняет операцию и присваивает ей следующий порядковый номер.
	// ErrConflict, если у записи уже есть операция в состоянии pending.
	Insert(ctx context.Context, op *model.ScheduledOperation) error
	// GetForUpdate возвращает операцию по (seq, record_id) с блокировкой.
	GetForUpdate(ctx context.Context, seq, recordID int64) (*model.ScheduledOperation, error)
	// Get возвращает операцию по (seq, record_id).
	Get(ctx context.Context, seq, recordID int64) (*model.ScheduledOperation, error)
	// Resolve переводит операцию в конечное состояние.
	Resolve(ctx context.Context, seq int64, status string, by *string, height int64) error
	// ExpirePending помечает expired все pending операции с expires_height < height.
	// recordID == nil — по всем записям.
	ExpirePending(ctx context.Context, recordID *int64, height int64) (int, error)
	// CancelPending отменяет pending операции записи.
	CancelPending(ctx context.Context, recordID int64, by string, height int64) (int, error)
	// ListByRecord возвращает операции записи по возрастанию seq.
	ListByRecord(ctx context.Context, recordID int64) ([]*model.ScheduledOperation, error)
}

// ProtocolRepository — singleton-таблица protocol_state.
type ProtocolRepository interface {
	// Ensure создаёт строку состояния со значениями defaults, если её ещё нет.
	Ensure(ctx context.Context, defaults *model.ProtocolState) error
	// Get возвращает состояние протокола (разделяемая блокировка до конца транзакции).
	Get(ctx context.Context) (*model.ProtocolState, error)
	// GetForUpdate возвращает состояние протокола с исключительной блокировкой.
	GetForUpdate(ctx context.Context) (*model.ProtocolState, error)
	// Update сохраняет состояние протокола.
	Update(ctx context.Context, s *model.ProtocolState) error
}

// Tx — набор репозиториев, работающих внутри одной транзакции.
type Tx interface {
	Records() RecordRepository
	Access() AccessRepository
	Monitors() MonitorRepository
	Authenticity() AuthenticityRepository
	Schedules() ScheduleRepository
	Protocol() ProtocolRepository
}

// Store — хранилище с атомарными транзакциями.
// fn выполняется целиком или не оставляет никаких изменений.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// RunInReadTx выполняет fn в транзакции только для чтения.
	RunInReadTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore — реализация Store поверх pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(ctx, newPgTx(tx, false)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// RunInReadTx выполняет fn в транзакции READ ONLY.
// Запись внутри fn отклоняется PostgreSQL.
func (s *PostgresStore) RunInReadTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(ctx, newPgTx(tx, true)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// pgTx — репозитории, привязанные к одной pgx.Tx.
type pgTx struct {
	records      *recordRepo
	access       *accessRepo
	monitors     *monitorRepo
	authenticity *authenticityRepo
	schedules    *scheduleRepo
	protocol     *protocolRepo
}

func newPgTx(db DBTX, readOnly bool) *pgTx {
	return &pgTx{
		records:      &recordRepo{db: db},
		access:       &accessRepo{db: db},
		monitors:     &monitorRepo{db: db},
		authenticity: &authenticityRepo{db: db},
		schedules:    &scheduleRepo{db: db},
		protocol:     &protocolRepo{db: db, readOnly: readOnly},
	}
}

func (t *pgTx) Records() RecordRepository           { return t.records }
func (t *pgTx) Access() AccessRepository             { return t.access }
func (t *pgTx) Monitors() MonitorRepository          { return t.monitors }
func (t *pgTx) Authenticity() AuthenticityRepository { return t.authenticity }
func (t *pgTx) Schedules() ScheduleRepository        { return t.schedules }
func (t *pgTx) Protocol() ProtocolRepository         { return t.protocol }

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
