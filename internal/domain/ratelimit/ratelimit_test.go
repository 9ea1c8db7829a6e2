package ratelimit

import "testing"

func TestEvaluate_WindowScenario(t *testing.T) {
	limits := Limits{Window: 100, Max: 10}

	var st *State
	for i := 0; i < 10; i++ {
		next, ok := Evaluate(st, 0, limits)
		if !ok {
			t.Fatalf("вызов %d на высоте 0 отклонён", i+1)
		}
		st = &next
	}
	if st.Count != 10 {
		t.Fatalf("Count = %d, ожидается 10", st.Count)
	}

	// 11-й вызов внутри окна — отказ без изменения состояния
	next, ok := Evaluate(st, 50, limits)
	if ok {
		t.Fatal("11-й вызов на высоте 50 должен быть отклонён")
	}
	if next != *st {
		t.Errorf("состояние изменилось при отказе: %+v -> %+v", *st, next)
	}

	// Окно истекло — сброс счётчика в 1
	next, ok = Evaluate(st, 101, limits)
	if !ok {
		t.Fatal("вызов на высоте 101 должен пройти")
	}
	if next.Count != 1 || next.LastHeight != 101 {
		t.Errorf("ожидали сброс {101 1}, получили %+v", next)
	}
}

func TestEvaluate_Boundaries(t *testing.T) {
	limits := Limits{Window: 100, Max: 2}

	tests := []struct {
		name      string
		prev      *State
		height    int64
		wantOK    bool
		wantState State
	}{
		{name: "новый актор", prev: nil, height: 7, wantOK: true, wantState: State{7, 1}},
		{name: "ровно window — сброс", prev: &State{0, 2}, height: 100, wantOK: true, wantState: State{100, 1}},
		{name: "window-1 — отказ", prev: &State{0, 2}, height: 99, wantOK: false, wantState: State{0, 2}},
		{name: "инкремент сдвигает last_height", prev: &State{10, 1}, height: 60, wantOK: true, wantState: State{60, 2}},
		{name: "окно от последнего вызова", prev: &State{60, 2}, height: 150, wantOK: false, wantState: State{60, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Evaluate(tt.prev, tt.height, limits)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, ожидается %v", ok, tt.wantOK)
			}
			if got != tt.wantState {
				t.Errorf("state = %+v, ожидается %+v", got, tt.wantState)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	limits := Limits{Window: 100, Max: 10}
	if got := Remaining(nil, 0, limits); got != 10 {
		t.Errorf("Remaining(nil) = %d, ожидается 10", got)
	}
	if got := Remaining(&State{0, 4}, 10, limits); got != 6 {
		t.Errorf("Remaining(4 из 10) = %d, ожидается 6", got)
	}
	if got := Remaining(&State{0, 10}, 10, limits); got != 0 {
		t.Errorf("Remaining(исчерпан) = %d, ожидается 0", got)
	}
	if got := Remaining(&State{0, 10}, 100, limits); got != 10 {
		t.Errorf("Remaining(окно истекло) = %d, ожидается 10", got)
	}
}

func TestLimitsValidate(t *testing.T) {
	if err := (Limits{Window: 100, Max: 10}).Validate(); err != nil {
		t.Errorf("неожиданная ошибка: %v", err)
	}
	if err := (Limits{Window: 0, Max: 10}).Validate(); err == nil {
		t.Error("окно 0 должно быть отклонено")
	}
	if err := (Limits{Window: 10, Max: 0}).Validate(); err == nil {
		t.Error("max 0 должен быть отклонён")
	}
}
