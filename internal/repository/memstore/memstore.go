// Пакет memstore — транзакционное хранилище в памяти.
// Используется в режиме CR_STORAGE=memory и в unit-тестах сервисов.
//
// Каждая изменяющая транзакция работает с копией состояния; копия заменяет
// состояние хранилища только при успешном завершении fn. Изменяющие транзакции
// сериализуются мьютексом. Транзакции только для чтения не копируют состояние
// и выполняются параллельно под RLock; запись в них возвращает
// repository.ErrReadOnly.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bigkaa/collectible-registry/internal/domain/model"
	"github.com/bigkaa/collectible-registry/internal/repository"
)

type accessKey struct {
	recordID int64
	actor    string
}

type state struct {
	records      map[int64]*model.Record
	viewers      map[accessKey]*model.ViewerPrivilege
	permissions  map[accessKey]*model.GranularPermission
	monitors     map[string]*model.TransactionMonitor
	attestations map[int64]*model.AuthenticityRecord
	schedules    map[int64]*model.ScheduledOperation
	protocol     *model.ProtocolState

	nextRecordID int64
	nextSeq      int64
}

func newState() *state {
	return &state{
		records:      map[int64]*model.Record{},
		viewers:      map[accessKey]*model.ViewerPrivilege{},
		permissions:  map[accessKey]*model.GranularPermission{},
		monitors:     map[string]*model.TransactionMonitor{},
		attestations: map[int64]*model.AuthenticityRecord{},
		schedules:    map[int64]*model.ScheduledOperation{},
		nextRecordID: 1,
		nextSeq:      1,
	}
}

func (s *state) clone() *state {
	c := &state{
		records:      make(map[int64]*model.Record, len(s.records)),
		viewers:      make(map[accessKey]*model.ViewerPrivilege, len(s.viewers)),
		permissions:  make(map[accessKey]*model.GranularPermission, len(s.permissions)),
		monitors:     make(map[string]*model.TransactionMonitor, len(s.monitors)),
		attestations: make(map[int64]*model.AuthenticityRecord, len(s.attestations)),
		schedules:    make(map[int64]*model.ScheduledOperation, len(s.schedules)),
		protocol:     s.protocol.Clone(),
		nextRecordID: s.nextRecordID,
		nextSeq:      s.nextSeq,
	}
	for k, v := range s.records {
		c.records[k] = v.Clone()
	}
	for k, v := range s.viewers {
		cp := *v
		c.viewers[k] = &cp
	}
	for k, v := range s.permissions {
		cp := *v
		c.permissions[k] = &cp
	}
	for k, v := range s.monitors {
		cp := *v
		c.monitors[k] = &cp
	}
	for k, v := range s.attestations {
		cp := *v
		c.attestations[k] = &cp
	}
	for k, v := range s.schedules {
		c.schedules[k] = v.Clone()
	}
	return c
}

// Store — хранилище в памяти, реализует repository.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{state: newState()}
}

// RunInTx выполняет fn над копией состояния и фиксирует её при успехе.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// RunInReadTx выполняет fn над текущим состоянием без копирования.
func (s *Store) RunInReadTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &tx{st: s.state, readOnly: true})
}

// tx реализует все репозитории поверх состояния транзакции.
type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return repository.ErrReadOnly
	}
	return nil
}

func (t *tx) Records() repository.RecordRepository           { return (*records)(t) }
func (t *tx) Access() repository.AccessRepository             { return (*access)(t) }
func (t *tx) Monitors() repository.MonitorRepository          { return (*monitors)(t) }
func (t *tx) Authenticity() repository.AuthenticityRepository { return (*attestations)(t) }
func (t *tx) Schedules() repository.ScheduleRepository        { return (*schedules)(t) }
func (t *tx) Protocol() repository.ProtocolRepository         { return (*protocol)(t) }

// --- records ---

type records tx

func (r *records) Insert(_ context.Context, rec *model.Record) error {
	if err := (*tx)(r).writable(); err != nil {
		return err
	}
	rec.ID = r.st.nextRecordID
	r.st.nextRecordID++
	r.st.records[rec.ID] = rec.Clone()
	return nil
}

func (r *records) Get(_ context.Context, id int64) (*model.Record, error) {
	rec, ok := r.st.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *records) GetForUpdate(ctx context.Context, id int64) (*model.Record, error) {
	return r.Get(ctx, id)
}

func (r *records) Update(_ context.Context, rec *model.Record) error {
	if err := (*tx)(r).writable(); err != nil {
		return err
	}
	if _, ok := r.st.records[rec.ID]; !ok {
		return repository.ErrNotFound
	}
	r.st.records[rec.ID] = rec.Clone()
	return nil
}

// Delete удаляет запись и все зависимые строки.
func (r *records) Delete(_ context.Context, id int64) error {
	if err := (*tx)(r).writable(); err != nil {
		return err
	}
	if _, ok := r.st.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.st.records, id)
	delete(r.st.attestations, id)
	for k := range r.st.viewers {
		if k.recordID == id {
			delete(r.st.viewers, k)
		}
	}
	for k := range r.st.permissions {
		if k.recordID == id {
			delete(r.st.permissions, k)
		}
	}
	for seq, op := range r.st.schedules {
		if op.RecordID == id {
			delete(r.st.schedules, seq)
		}
	}
	return nil
}

func (r *records) filtered(filter repository.RecordFilter) []*model.Record {
	var result []*model.Record
	for _, rec := range r.st.records {
		if filter.Creator != nil && rec.Creator != *filter.Creator {
			continue
		}
		if filter.Category != nil && !slices.Contains(rec.Categories, *filter.Category) {
			continue
		}
		result = append(result, rec)
	}
	slices.SortFunc(result, func(a, b *model.Record) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

func (r *records) List(_ context.Context, filter repository.RecordFilter, limit, offset int) ([]*model.Record, error) {
	all := r.filtered(filter)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))

	result := make([]*model.Record, 0, end-offset)
	for _, rec := range all[offset:end] {
		result = append(result, rec.Clone())
	}
	return result, nil
}

func (r *records) Count(_ context.Context, filter repository.RecordFilter) (int, error) {
	return len(r.filtered(filter)), nil
}

// --- access ---

type access tx

func (a *access) UpsertPermission(_ context.Context, p *model.GranularPermission) error {
	if err := (*tx)(a).writable(); err != nil {
		return err
	}
	cp := *p
	a.st.permissions[accessKey{p.RecordID, p.Participant}] = &cp
	return nil
}

func (a *access) GetPermission(_ context.Context, recordID int64, participant string) (*model.GranularPermission, error) {
	p, ok := a.st.permissions[accessKey{recordID, participant}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (a *access) ListPermissions(_ context.Context, recordID int64) ([]*model.GranularPermission, error) {
	var result []*model.GranularPermission
	for k, p := range a.st.permissions {
		if k.recordID == recordID {
			cp := *p
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(x, y *model.GranularPermission) int {
		return strings.Compare(x.Participant, y.Participant)
	})
	return result, nil
}

func (a *access) UpsertViewer(_ context.Context, v *model.ViewerPrivilege) error {
	if err := (*tx)(a).writable(); err != nil {
		return err
	}
	cp := *v
	a.st.viewers[accessKey{v.RecordID, v.Observer}] = &cp
	return nil
}

func (a *access) GetViewer(_ context.Context, recordID int64, observer string) (*model.ViewerPrivilege, error) {
	v, ok := a.st.viewers[accessKey{recordID, observer}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (a *access) DeleteViewer(_ context.Context, recordID int64, observer string) error {
	if err := (*tx)(a).writable(); err != nil {
		return err
	}
	key := accessKey{recordID, observer}
	if _, ok := a.st.viewers[key]; !ok {
		return repository.ErrNotFound
	}
	delete(a.st.viewers, key)
	return nil
}

func (a *access) ListViewers(_ context.Context, recordID int64) ([]*model.ViewerPrivilege, error) {
	var result []*model.ViewerPrivilege
	for k, v := range a.st.viewers {
		if k.recordID == recordID {
			cp := *v
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(x, y *model.ViewerPrivilege) int {
		return strings.Compare(x.Observer, y.Observer)
	})
	return result, nil
}

// --- monitors ---

type monitors tx

func (m *monitors) Get(_ context.Context, actor string) (*model.TransactionMonitor, error) {
	mon, ok := m.st.monitors[actor]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *mon
	return &cp, nil
}

// GetForUpdate не берёт отдельных блокировок: транзакция и так единственная.
func (m *monitors) GetForUpdate(ctx context.Context, actor string) (*model.TransactionMonitor, error) {
	return m.Get(ctx, actor)
}

func (m *monitors) Upsert(_ context.Context, mon *model.TransactionMonitor) error {
	if err := (*tx)(m).writable(); err != nil {
		return err
	}
	cp := *mon
	m.st.monitors[mon.Actor] = &cp
	return nil
}

// --- attestations ---

type attestations tx

func (a *attestations) Get(_ context.Context, recordID int64) (*model.AuthenticityRecord, error) {
	rec, ok := a.st.attestations[recordID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (a *attestations) Upsert(_ context.Context, rec *model.AuthenticityRecord) error {
	if err := (*tx)(a).writable(); err != nil {
		return err
	}
	cp := *rec
	a.st.attestations[rec.RecordID] = &cp
	return nil
}

// --- schedules ---

type schedules tx

const statusPending = "pending"

func (s *schedules) Insert(_ context.Context, op *model.ScheduledOperation) error {
	if err := (*tx)(s).writable(); err != nil {
		return err
	}
	if op.Status == statusPending {
		for _, existing := range s.st.schedules {
			if existing.RecordID == op.RecordID && existing.Status == statusPending {
				return fmt.Errorf("%w: у записи уже есть ожидающая операция", repository.ErrConflict)
			}
		}
	}
	op.Seq = s.st.nextSeq
	s.st.nextSeq++
	s.st.schedules[op.Seq] = op.Clone()
	return nil
}

func (s *schedules) Get(_ context.Context, seq, recordID int64) (*model.ScheduledOperation, error) {
	op, ok := s.st.schedules[seq]
	if !ok || op.RecordID != recordID {
		return nil, repository.ErrNotFound
	}
	return op.Clone(), nil
}

func (s *schedules) GetForUpdate(ctx context.Context, seq, recordID int64) (*model.ScheduledOperation, error) {
	return s.Get(ctx, seq, recordID)
}

func (s *schedules) Resolve(_ context.Context, seq int64, status string, by *string, height int64) error {
	if err := (*tx)(s).writable(); err != nil {
		return err
	}
	op, ok := s.st.schedules[seq]
	if !ok {
		return repository.ErrNotFound
	}
	op.Status = status
	op.ResolvedBy = nil
	if by != nil {
		v := *by
		op.ResolvedBy = &v
	}
	op.ResolvedHeight = &height
	return nil
}

func (s *schedules) ExpirePending(_ context.Context, recordID *int64, height int64) (int, error) {
	if err := (*tx)(s).writable(); err != nil {
		return 0, err
	}
	n := 0
	for _, op := range s.st.schedules {
		if op.Status != statusPending || op.ExpiresHeight >= height {
			continue
		}
		if recordID != nil && op.RecordID != *recordID {
			continue
		}
		h := height
		op.Status = "expired"
		op.ResolvedBy = nil
		op.ResolvedHeight = &h
		n++
	}
	return n, nil
}

func (s *schedules) CancelPending(_ context.Context, recordID int64, by string, height int64) (int, error) {
	if err := (*tx)(s).writable(); err != nil {
		return 0, err
	}
	n := 0
	for _, op := range s.st.schedules {
		if op.RecordID != recordID || op.Status != statusPending {
			continue
		}
		who, h := by, height
		op.Status = "cancelled"
		op.ResolvedBy = &who
		op.ResolvedHeight = &h
		n++
	}
	return n, nil
}

func (s *schedules) ListByRecord(_ context.Context, recordID int64) ([]*model.ScheduledOperation, error) {
	var result []*model.ScheduledOperation
	for _, op := range s.st.schedules {
		if op.RecordID == recordID {
			result = append(result, op.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *model.ScheduledOperation) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return result, nil
}

// --- protocol ---

type protocol tx

func (p *protocol) Ensure(_ context.Context, defaults *model.ProtocolState) error {
	if err := (*tx)(p).writable(); err != nil {
		return err
	}
	if p.st.protocol == nil {
		p.st.protocol = defaults.Clone()
	}
	return nil
}

func (p *protocol) Get(_ context.Context) (*model.ProtocolState, error) {
	if p.st.protocol == nil {
		return nil, repository.ErrNotFound
	}
	return p.st.protocol.Clone(), nil
}

func (p *protocol) GetForUpdate(ctx context.Context) (*model.ProtocolState, error) {
	return p.Get(ctx)
}

func (p *protocol) Update(_ context.Context, s *model.ProtocolState) error {
	if err := (*tx)(p).writable(); err != nil {
		return err
	}
	if p.st.protocol == nil {
		return repository.ErrNotFound
	}
	p.st.protocol = s.Clone()
	return nil
}
