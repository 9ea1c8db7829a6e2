// Пакет model — доменные модели реестра коллекционных записей.
package model

// Record — метаданные зарегистрированной коллекционной записи.
// Хранится в таблице records.
type Record struct {
	// ID — монотонный идентификатор (начинается с 1, не переиспользуется)
	ID int64
	// Name — название (1–64 символа)
	Name string
	// Creator — текущий владелец записи (actor)
	Creator string
	// Size — заявленный размер (1 ≤ size < 1 000 000 000)
	Size int64
	// Details — произвольное описание (1–128 символов)
	Details string
	// Categories — упорядоченный список тегов (1–10 тегов по 1–32 символа)
	Categories []string
	// CreatedHeight — высота, на которой запись создана
	CreatedHeight int64
	// UpdatedHeight — высота последнего изменения
	UpdatedHeight int64
}

// RecordFields — изменяемые поля записи.
// Используется при регистрации и при полной замене метаданных.
type RecordFields struct {
	Name       string
	Size       int64
	Details    string
	Categories []string
}

// Clone возвращает глубокую копию записи.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Categories = append([]string(nil), r.Categories...)
	return &c
}

// Apply заменяет изменяемые поля записи значениями из f.
func (r *Record) Apply(f RecordFields) {
	r.Name = f.Name
	r.Size = f.Size
	r.Details = f.Details
	r.Categories = append([]string(nil), f.Categories...)
}
