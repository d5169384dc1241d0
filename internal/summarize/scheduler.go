package summarize

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Scheduler triggers periodic pipeline runs. A tick that lands while a run
// is still in flight is dropped by the coordinator's single-flight guard.
type Scheduler struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      *zap.Logger
	cancel      context.CancelFunc
}

// NewScheduler creates a scheduler. An interval of zero disables it.
func NewScheduler(coordinator *Coordinator, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		coordinator: coordinator,
		interval:    interval,
		logger:      logger,
	}
}

// Start begins the periodic run loop. No-op when the interval is zero.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.coordinator.Run(ctx); err != nil {
				if errors.Is(err, ErrAlreadyRunning) || errors.Is(err, ErrNoData) {
					continue
				}
				s.logger.Warn("scheduled summarization failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
