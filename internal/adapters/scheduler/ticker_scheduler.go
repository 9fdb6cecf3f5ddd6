package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	usecases_port "github.com/Analogium/PriceWatch/internal/core/port/usecases"
)

// TickerScheduler запускает прогон каждой корзины по своему тикеру.
// Корзины работают независимо; прогон корзины пропускается, пока предыдущий не завершился.
// Реализует port.EventListenerPort.
type TickerScheduler struct {
	checkUC usecases_port.CheckBucketPort
	buckets []int
	logger  port.LoggerPort

	// период корзины, по умолчанию равен ее частоте в часах
	intervalFor func(bucketHours int) time.Duration

	running map[int]*atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

func NewTickerScheduler(checkUC usecases_port.CheckBucketPort, buckets []int, logger port.LoggerPort) (*TickerScheduler, error) {
	if checkUC == nil {
		return nil, fmt.Errorf("scheduler: check bucket use case is required")
	}
	running := make(map[int]*atomic.Bool, len(buckets))
	for _, b := range buckets {
		if !domain.ValidBucket(b) {
			return nil, fmt.Errorf("scheduler: %w: %d", domain.ErrInvalidBucket, b)
		}
		running[b] = &atomic.Bool{}
	}

	return &TickerScheduler{
		checkUC: checkUC,
		buckets: buckets,
		logger:  logger.WithFields(port.Fields{"component": "TickerScheduler"}),
		intervalFor: func(bucketHours int) time.Duration {
			return time.Duration(bucketHours) * time.Hour
		},
		running: running,
	}, nil
}

// Start запускает тикеры и блокируется до отмены контекста или Close
func (s *TickerScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	for _, bucket := range s.buckets {
		s.wg.Add(1)
		go s.loop(ctx, bucket)
	}
	s.logger.Info("Scheduler started", port.Fields{"buckets": s.buckets})

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped", nil)
	return nil
}

func (s *TickerScheduler) loop(ctx context.Context, bucket int) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.intervalFor(bucket))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, bucket)
		}
	}
}

// trigger запускает прогон в отдельной горутине, если корзина свободна
func (s *TickerScheduler) trigger(ctx context.Context, bucket int) bool {
	flag := s.running[bucket]
	if !flag.CompareAndSwap(false, true) {
		s.logger.Warn("Previous run is still in progress, skipping tick", port.Fields{"bucket_hours": bucket})
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer flag.Store(false)

		runCtx := contextkeys.ContextWithLogger(ctx, s.logger.WithFields(port.Fields{"bucket_hours": bucket}))
		report, err := s.checkUC.Execute(runCtx, bucket)
		if err != nil {
			s.logger.Error("Scheduled bucket run failed", err, port.Fields{"bucket_hours": bucket, "run_id": report.RunID})
		}
	}()
	return true
}

// Close останавливает тикеры. Идущие прогоны получают отмену контекста.
func (s *TickerScheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
