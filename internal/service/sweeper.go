// sweeper.go — фоновая очистка отложенных операций.
//
// Переводит в expired ожидающие операции, чья высота истечения осталась
// позади. Исполнить такую операцию нельзя и без очистки; sweeper лишь
// освобождает слот «одна ожидающая операция на запись» и делает
// состояние в хранилище наглядным.
//
// Запускается как горутина с периодическим тикером (CR_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики sweeper
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cr_sweep_runs_total",
		Help: "Общее количество запусков очистки отложенных операций",
	})

	sweepExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cr_sweep_expired_total",
		Help: "Общее количество операций, помеченных как expired",
	})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cr_sweep_errors_total",
		Help: "Количество неудачных запусков очистки",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cr_sweep_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// ExpiredCount — сколько операций помечено как expired
	ExpiredCount int
	// Err — ошибка хранилища, если запуск не удался
	Err error
	// Duration — длительность выполнения
	Duration time.Duration
}

// Sweeper — фоновая очистка просроченных операций.
type Sweeper struct {
	transfers *TransferService
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper создаёт фоновую очистку.
func NewSweeper(transfers *TransferService, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		transfers: transfers,
		interval:  interval,
		logger:    logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (s *Sweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("Очистка отложенных операций запущена",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновую горутину и ждёт её завершения.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Очистка отложенных операций остановлена")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	n, err := s.transfers.SweepExpired(ctx)
	result.ExpiredCount = n
	result.Err = err
	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepExpiredTotal.Add(float64(n))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if err != nil {
		sweepErrorsTotal.Inc()
		if ctx.Err() == nil {
			s.logger.Error("Ошибка очистки отложенных операций",
				slog.String("error", err.Error()),
			)
		}
		return result
	}

	if n > 0 {
		s.logger.Info("Просроченные операции помечены",
			slog.Int("expired", n),
			slog.Duration("duration", result.Duration),
		)
	} else {
		s.logger.Debug("Очистка завершена, просроченных операций нет")
	}
	return result
}
