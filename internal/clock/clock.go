// Пакет clock — источник текущей высоты для операций реестра.
// Высота монотонно не убывает и используется вместо времени во всех
// правилах (rate limiter, истечение отложенных операций).
package clock

import (
	"sync/atomic"
	"time"
)

// HeightSource — источник текущей высоты.
type HeightSource interface {
	// Height возвращает текущую высоту.
	Height() int64
}

// WallClock вычисляет высоту как число интервалов, прошедших с genesis.
// До genesis высота равна 0.
type WallClock struct {
	genesis  time.Time
	interval time.Duration
	now      func() time.Time
	last     atomic.Int64
}

// NewWallClock создаёт источник высоты от настенных часов.
// interval должен быть положительным.
func NewWallClock(genesis time.Time, interval time.Duration) *WallClock {
	return &WallClock{genesis: genesis, interval: interval, now: time.Now}
}

// Height возвращает текущую высоту. Откат системных часов не уменьшает высоту.
func (c *WallClock) Height() int64 {
	elapsed := c.now().Sub(c.genesis)
	h := int64(0)
	if elapsed > 0 {
		h = int64(elapsed / c.interval)
	}
	for {
		last := c.last.Load()
		if h <= last {
			return last
		}
		if c.last.CompareAndSwap(last, h) {
			return h
		}
	}
}

// Manual — управляемый вручную источник высоты (тесты, локальный режим).
type Manual struct {
	h atomic.Int64
}

// NewManual создаёт источник с начальной высотой start.
func NewManual(start int64) *Manual {
	m := &Manual{}
	m.h.Store(start)
	return m
}

// Height возвращает текущую высоту.
func (m *Manual) Height() int64 {
	return m.h.Load()
}

// Set устанавливает высоту.
func (m *Manual) Set(h int64) {
	m.h.Store(h)
}

// Advance увеличивает высоту на delta и возвращает новое значение.
func (m *Manual) Advance(delta int64) int64 {
	return m.h.Add(delta)
}
