package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/collectible-registry/internal/config"
	"github.com/bigkaa/collectible-registry/internal/database"
	"github.com/bigkaa/collectible-registry/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка регистрируется через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("registry_test"),
		postgres.WithUsername("registry"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("CR_DB_HOST", host)
	t.Setenv("CR_DB_PORT", port.Port())
	t.Setenv("CR_DB_NAME", "registry_test")
	t.Setenv("CR_DB_USER", "registry")
	t.Setenv("CR_DB_PASSWORD", "test-password")
	t.Setenv("CR_DB_SSL_MODE", "disable")
	t.Setenv("CR_JWT_JWKS_URL", "http://localhost:8080/certs")
	t.Setenv("CR_ADMIN_SUBJECT", "admin")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newTestRecord(creator string) *model.Record {
	return &model.Record{
		Name:          "Первый выпуск",
		Creator:       creator,
		Size:          1024,
		Details:       "коллекционная карточка",
		Categories:    []string{"cards", "rare"},
		CreatedHeight: 5,
		UpdatedHeight: 5,
	}
}

// insertRecord вставляет запись в отдельной транзакции.
func insertRecord(t *testing.T, store Store, creator string) *model.Record {
	t.Helper()
	rec := newTestRecord(creator)
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Records().Insert(ctx, rec)
	})
	if err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	return rec
}

// --- Тесты RecordRepository ---

func TestRecordCRUD(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	rec := insertRecord(t, store, "alice")
	if rec.ID != 1 {
		t.Errorf("ID = %d, ожидается 1", rec.ID)
	}

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.Records().Get(ctx, rec.ID)
		if err != nil {
			return err
		}
		if got.Name != rec.Name {
			t.Errorf("Name = %q, ожидается %q", got.Name, rec.Name)
		}
		if len(got.Categories) != 2 || got.Categories[1] != "rare" {
			t.Errorf("Categories = %v, ожидается [cards rare]", got.Categories)
		}

		got.Creator = "bob"
		got.Details = "обновлено"
		got.UpdatedHeight = 7
		return tx.Records().Update(ctx, got)
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.Records().GetForUpdate(ctx, rec.ID)
		if err != nil {
			return err
		}
		if got.Creator != "bob" || got.UpdatedHeight != 7 {
			t.Errorf("после Update: creator=%q updated=%d", got.Creator, got.UpdatedHeight)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Records().Get(ctx, 999)
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(999) = %v, ожидается ErrNotFound", err)
	}
}

func TestRecordIDsNotReused(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	first := insertRecord(t, store, "alice")
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Records().Delete(ctx, first.ID)
	})
	if err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}

	second := insertRecord(t, store, "alice")
	if second.ID <= first.ID {
		t.Errorf("ID после удаления = %d, ожидается > %d", second.ID, first.ID)
	}
}

func TestRecordListFilters(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	insertRecord(t, store, "alice")
	insertRecord(t, store, "bob")
	insertRecord(t, store, "alice")

	alice := "alice"
	rare := "rare"
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		list, err := tx.Records().List(ctx, RecordFilter{Creator: &alice}, 10, 0)
		if err != nil {
			return err
		}
		if len(list) != 2 {
			t.Errorf("List(creator=alice) = %d записей, ожидается 2", len(list))
		}

		count, err := tx.Records().Count(ctx, RecordFilter{Category: &rare})
		if err != nil {
			return err
		}
		if count != 3 {
			t.Errorf("Count(category=rare) = %d, ожидается 3", count)
		}

		page, err := tx.Records().List(ctx, RecordFilter{}, 1, 1)
		if err != nil {
			return err
		}
		if len(page) != 1 || page[0].ID != 2 {
			t.Errorf("List(limit=1, offset=1) = %v, ожидается запись с ID 2", page)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

func TestRecordDeleteCascade(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	rec := insertRecord(t, store, "alice")

	recipient := "bob"
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Access().UpsertViewer(ctx, &model.ViewerPrivilege{
			RecordID: rec.ID, Observer: "alice", CanView: true, GrantedBy: "alice", GrantedHeight: 5,
		}); err != nil {
			return err
		}
		if err := tx.Access().UpsertPermission(ctx, &model.GranularPermission{
			RecordID: rec.ID, Participant: "bob", Level: 2, GrantedBy: "alice", GrantedHeight: 5,
		}); err != nil {
			return err
		}
		if err := tx.Authenticity().Upsert(ctx, &model.AuthenticityRecord{
			RecordID: rec.ID, Hash: "abc", Method: "sha256", Attestor: "alice", AttestedHeight: 5,
		}); err != nil {
			return err
		}
		return tx.Schedules().Insert(ctx, &model.ScheduledOperation{
			RecordID: rec.ID, Kind: model.OperationKindTransfer, Requester: "alice",
			Recipient: &recipient, RequestedHeight: 5, VerificationHash: "h",
			ExpiresHeight: 15, Status: "pending",
		})
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Records().Delete(ctx, rec.ID)
	})
	if err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Access().GetViewer(ctx, rec.ID, "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetViewer() после удаления = %v, ожидается ErrNotFound", err)
		}
		if _, err := tx.Access().GetPermission(ctx, rec.ID, "bob"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPermission() после удаления = %v, ожидается ErrNotFound", err)
		}
		if _, err := tx.Authenticity().Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Authenticity.Get() после удаления = %v, ожидается ErrNotFound", err)
		}
		ops, err := tx.Schedules().ListByRecord(ctx, rec.ID)
		if err != nil {
			return err
		}
		if len(ops) != 0 {
			t.Errorf("ListByRecord() = %d операций, ожидается 0", len(ops))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

func TestRunInTxRollback(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Records().Insert(ctx, newTestRecord("alice")); err != nil {
			return err
		}
		if err := tx.Monitors().Upsert(ctx, &model.TransactionMonitor{Actor: "alice", LastHeight: 1, CallCount: 1}); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("RunInTx() = %v, ожидается errBoom", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		count, err := tx.Records().Count(ctx, RecordFilter{})
		if err != nil {
			return err
		}
		if count != 0 {
			t.Errorf("Count() после отката = %d, ожидается 0", count)
		}
		if _, err := tx.Monitors().Get(ctx, "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Monitors.Get() после отката = %v, ожидается ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

func TestRunInReadTx(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	rec := insertRecord(t, store, "alice")
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Protocol().Ensure(ctx, &model.ProtocolState{RateWindow: 100, RateMax: 10})
	})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	err = store.RunInReadTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.Records().Get(ctx, rec.ID)
		if err != nil {
			return err
		}
		if got.Creator != "alice" {
			t.Errorf("Creator = %q, ожидается alice", got.Creator)
		}
		state, err := tx.Protocol().Get(ctx)
		if err != nil {
			return err
		}
		if state.RateWindow != 100 || state.RateMax != 10 {
			t.Errorf("состояние протокола = %+v, ожидается 100/10", state)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInReadTx() ошибка: %v", err)
	}

	// запись в транзакции READ ONLY отклоняется PostgreSQL
	err = store.RunInReadTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Monitors().Upsert(ctx, &model.TransactionMonitor{Actor: "alice", LastHeight: 1, CallCount: 1})
	})
	if err == nil {
		t.Fatal("Upsert в RunInReadTx: ожидалась ошибка")
	}
}

// --- Тесты AccessRepository ---

func TestAccessUpsert(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	rec := insertRecord(t, store, "alice")

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, level := range []int{1, 3} {
			if err := tx.Access().UpsertPermission(ctx, &model.GranularPermission{
				RecordID: rec.ID, Participant: "bob", Level: level, GrantedBy: "alice", GrantedHeight: int64(level),
			}); err != nil {
				return err
			}
		}
		p, err := tx.Access().GetPermission(ctx, rec.ID, "bob")
		if err != nil {
			return err
		}
		if p.Level != 3 || p.GrantedHeight != 3 {
			t.Errorf("Permission = %+v, ожидается level=3 height=3", p)
		}

		if err := tx.Access().UpsertViewer(ctx, &model.ViewerPrivilege{
			RecordID: rec.ID, Observer: "carol", CanView: true, GrantedBy: "alice", GrantedHeight: 4,
		}); err != nil {
			return err
		}
		viewers, err := tx.Access().ListViewers(ctx, rec.ID)
		if err != nil {
			return err
		}
		if len(viewers) != 1 || viewers[0].Observer != "carol" {
			t.Errorf("ListViewers() = %v, ожидается [carol]", viewers)
		}
		if err := tx.Access().DeleteViewer(ctx, rec.ID, "carol"); err != nil {
			return err
		}
		if err := tx.Access().DeleteViewer(ctx, rec.ID, "carol"); !errors.Is(err, ErrNotFound) {
			t.Errorf("повторный DeleteViewer() = %v, ожидается ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

// --- Тесты ScheduleRepository ---

func TestScheduleOnePendingPerRecord(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	rec := insertRecord(t, store, "alice")

	newOp := func() *model.ScheduledOperation {
		recipient := "bob"
		return &model.ScheduledOperation{
			RecordID: rec.ID, Kind: model.OperationKindTransfer, Requester: "alice",
			Recipient: &recipient, RequestedHeight: 0, VerificationHash: "h",
			ExpiresHeight: 10, Status: "pending",
		}
	}

	first := newOp()
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Schedules().Insert(ctx, first)
	})
	if err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Schedules().Insert(ctx, newOp())
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("второй Insert() = %v, ожидается ErrConflict", err)
	}

	// Истечение освобождает запись для новой операции
	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		n, err := tx.Schedules().ExpirePending(ctx, &rec.ID, 11)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("ExpirePending() = %d, ожидается 1", n)
		}
		second := newOp()
		if err := tx.Schedules().Insert(ctx, second); err != nil {
			return err
		}
		if second.Seq <= first.Seq {
			t.Errorf("Seq = %d, ожидается > %d", second.Seq, first.Seq)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.Schedules().Get(ctx, first.Seq, rec.ID)
		if err != nil {
			return err
		}
		if got.Status != "expired" || got.ResolvedBy != nil {
			t.Errorf("первая операция: status=%q resolved_by=%v", got.Status, got.ResolvedBy)
		}
		n, err := tx.Schedules().CancelPending(ctx, rec.ID, "alice", 12)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("CancelPending() = %d, ожидается 1", n)
		}
		if _, err := tx.Schedules().Get(ctx, first.Seq, rec.ID+1); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() с чужим record_id = %v, ожидается ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

// --- Тесты ProtocolRepository и MonitorRepository ---

func TestProtocolState(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Protocol().Get(ctx); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() до Ensure = %v, ожидается ErrNotFound", err)
		}
		defaults := &model.ProtocolState{RateWindow: 100, RateMax: 10}
		if err := tx.Protocol().Ensure(ctx, defaults); err != nil {
			return err
		}
		// Повторный Ensure не перезаписывает состояние
		if err := tx.Protocol().Ensure(ctx, &model.ProtocolState{RateWindow: 5, RateMax: 1}); err != nil {
			return err
		}

		s, err := tx.Protocol().GetForUpdate(ctx)
		if err != nil {
			return err
		}
		if s.RateWindow != 100 || s.RateMax != 10 || s.Paused {
			t.Errorf("State = %+v, ожидается window=100 max=10 paused=false", s)
		}

		reason := "обслуживание"
		by := "admin"
		h := int64(3)
		s.Paused, s.PauseReason, s.PausedBy, s.PausedHeight = true, &reason, &by, &h
		if err := tx.Protocol().Update(ctx, s); err != nil {
			return err
		}
		got, err := tx.Protocol().Get(ctx)
		if err != nil {
			return err
		}
		if !got.Paused || got.PauseReason == nil || *got.PauseReason != reason {
			t.Errorf("State после Update = %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

func TestMonitorUpsert(t *testing.T) {
	store := NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Monitors().GetForUpdate(ctx, "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetForUpdate() нового актора = %v, ожидается ErrNotFound", err)
		}
		if err := tx.Monitors().Upsert(ctx, &model.TransactionMonitor{Actor: "alice", LastHeight: 1, CallCount: 1}); err != nil {
			return err
		}
		if err := tx.Monitors().Upsert(ctx, &model.TransactionMonitor{Actor: "alice", LastHeight: 2, CallCount: 2}); err != nil {
			return err
		}
		m, err := tx.Monitors().GetForUpdate(ctx, "alice")
		if err != nil {
			return err
		}
		if m.LastHeight != 2 || m.CallCount != 2 {
			t.Errorf("Monitor = %+v, ожидается last=2 count=2", m)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}
