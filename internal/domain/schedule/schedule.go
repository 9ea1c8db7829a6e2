// Пакет schedule — конечный автомат отложенных операций (двухфазная передача владения).
//
// Жизненный цикл: pending → {executed, cancelled, expired}. Все три конечные.
// Операция становится неисполнимой, как только текущая высота превысила
// высоту истечения, даже если она ещё не переведена в expired фоновой очисткой.
package schedule

import "fmt"

// Status — состояние отложенной операции.
type Status string

const (
	// StatusPending — ожидает исполнения
	StatusPending Status = "pending"
	// StatusExecuted — исполнена
	StatusExecuted Status = "executed"
	// StatusCancelled — отменена
	StatusCancelled Status = "cancelled"
	// StatusExpired — истекла
	StatusExpired Status = "expired"
)

// Коды ошибок перехода.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotPending        = "NOT_PENDING"
	CodeExpired           = "EXPIRED"
)

// validTransitions — матрица допустимых переходов.
var validTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusExecuted: true, StatusCancelled: true, StatusExpired: true},
	StatusExecuted:  {},
	StatusCancelled: {},
	StatusExpired:   {},
}

// TransitionError — ошибка перехода отложенной операции.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, NOT_PENDING, EXPIRED)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ParseStatus преобразует строку в Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("недопустимое состояние: %q, допустимые: pending, executed, cancelled, expired", s)
	}
	return st, nil
}

// IsTerminal сообщает, что состояние конечное.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// ExpiresAt вычисляет высоту истечения операции.
func ExpiresAt(requested, delay int64) int64 {
	return requested + delay
}

// IsExpired сообщает, что на высоте height операция уже неисполнима.
func IsExpired(expires, height int64) bool {
	return height > expires
}

// Effective возвращает состояние с учётом высоты: pending с истёкшим сроком
// считается expired.
func Effective(status Status, expires, height int64) Status {
	if status == StatusPending && IsExpired(expires, height) {
		return StatusExpired
	}
	return status
}

// Transition проверяет допустимость перехода from → to.
func Transition(from, to Status) error {
	targets, ok := validTransitions[from]
	if !ok {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("недопустимое исходное состояние: %q", from),
		}
	}
	if !targets[to] {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход %s → %s недопустим", from, to),
		}
	}
	return nil
}

// CheckResolvable проверяет, что операцию в состоянии status можно перевести
// в конечное состояние to на высоте height.
//
// Порядок: неизвестное состояние → INVALID_TRANSITION; expired (записанное
// очисткой или вычисленное по высоте) → EXPIRED; executed и cancelled →
// NOT_PENDING; затем переход проверяется по матрице.
func CheckResolvable(status, to Status, expires, height int64) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return &TransitionError{Code: CodeInvalidTransition, Message: err.Error()}
	}
	if Effective(status, expires, height) == StatusExpired {
		return &TransitionError{
			Code:    CodeExpired,
			Message: fmt.Sprintf("срок истёк на высоте %d, текущая высота %d", expires, height),
		}
	}
	if status.IsTerminal() {
		return &TransitionError{
			Code:    CodeNotPending,
			Message: fmt.Sprintf("операция в состоянии %s", status),
		}
	}
	return Transition(status, to)
}
