// Пакет ratelimit — ограничение частоты изменяющих вызовов актора.
//
// Алгоритм — окно со сбросом от последнего вызова (не скользящий журнал):
//   - если с последней зафиксированной активности прошло не меньше window высот,
//     счётчик сбрасывается в 1;
//   - иначе, пока count < max, счётчик увеличивается;
//   - иначе вызов отклоняется, состояние не меняется.
//
// При каждом разрешённом вызове last_height сдвигается на текущую высоту,
// поэтому окно отсчитывается от самого свежего вызова.
package ratelimit

import "fmt"

// Limits — параметры окна.
type Limits struct {
	// Window — длина окна в высотах
	Window int64
	// Max — максимум вызовов в окне
	Max int
}

// Validate проверяет, что параметры окна положительны.
func (l Limits) Validate() error {
	if l.Window < 1 {
		return fmt.Errorf("длина окна должна быть >= 1, получено %d", l.Window)
	}
	if l.Max < 1 {
		return fmt.Errorf("максимум вызовов должен быть >= 1, получено %d", l.Max)
	}
	return nil
}

// State — состояние счётчика актора.
type State struct {
	LastHeight int64
	Count      int
}

// Evaluate применяет алгоритм к состоянию prev на высоте height.
// prev == nil означает, что актор ещё не совершал вызовов.
// Возвращает новое состояние и признак разрешения. При отказе
// возвращается prev без изменений.
func Evaluate(prev *State, height int64, limits Limits) (State, bool) {
	if prev == nil || height-limits.Window >= prev.LastHeight {
		return State{LastHeight: height, Count: 1}, true
	}
	if prev.Count < limits.Max {
		return State{LastHeight: height, Count: prev.Count + 1}, true
	}
	return *prev, false
}

// Remaining возвращает, сколько вызовов ещё доступно на высоте height.
func Remaining(prev *State, height int64, limits Limits) int {
	if prev == nil || height-limits.Window >= prev.LastHeight {
		return limits.Max
	}
	if prev.Count >= limits.Max {
		return 0
	}
	return limits.Max - prev.Count
}
