package model

// ProtocolState — глобальное состояние протокола (singleton, id = 1).
// Единственный владелец счётчиков паузы и настроек rate limiter.
type ProtocolState struct {
	Paused bool
	// PauseReason — причина паузы (до 128 символов), очищается при resume
	PauseReason *string
	// PausedBy — административная идентичность, поставившая паузу
	PausedBy *string
	// PausedHeight — высота постановки на паузу
	PausedHeight *int64
	// RateWindow — длина окна rate limiter в высотах
	RateWindow int64
	// RateMax — максимум изменяющих вызовов в окне
	RateMax int
	// UpdatedHeight — высота последнего изменения
	UpdatedHeight int64
}

// Clone возвращает глубокую копию состояния.
func (s *ProtocolState) Clone() *ProtocolState {
	if s == nil {
		return nil
	}
	c := *s
	if s.PauseReason != nil {
		v := *s.PauseReason
		c.PauseReason = &v
	}
	if s.PausedBy != nil {
		v := *s.PausedBy
		c.PausedBy = &v
	}
	if s.PausedHeight != nil {
		v := *s.PausedHeight
		c.PausedHeight = &v
	}
	return &c
}
