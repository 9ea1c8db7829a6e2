package model

// OperationKindTransfer — отложенная передача владения.
const OperationKindTransfer = "transfer"

// ScheduledOperation — двухфазная отложенная операция над записью.
// Хранится в таблице scheduled_operations, ключ (seq, record_id).
type ScheduledOperation struct {
	// Seq — глобальный порядковый номер
	Seq      int64
	RecordID int64
	// Kind — категория операции (transfer)
	Kind string
	// Requester — кто запланировал операцию
	Requester string
	// Recipient — получатель (для transfer — новый владелец)
	Recipient *string
	// RequestedHeight — высота планирования
	RequestedHeight int64
	// VerificationHash — непрозрачный хеш, который нужно предъявить при исполнении
	VerificationHash string
	// ExpiresHeight — после этой высоты операция не может быть исполнена
	ExpiresHeight int64
	// Status — pending, executed, cancelled, expired
	Status string
	// ResolvedBy — кто перевёл операцию в конечное состояние (пусто для expired)
	ResolvedBy *string
	// ResolvedHeight — высота перехода в конечное состояние
	ResolvedHeight *int64
}

// Clone возвращает глубокую копию операции.
func (op *ScheduledOperation) Clone() *ScheduledOperation {
	if op == nil {
		return nil
	}
	c := *op
	if op.Recipient != nil {
		v := *op.Recipient
		c.Recipient = &v
	}
	if op.ResolvedBy != nil {
		v := *op.ResolvedBy
		c.ResolvedBy = &v
	}
	if op.ResolvedHeight != nil {
		v := *op.ResolvedHeight
		c.ResolvedHeight = &v
	}
	return &c
}
