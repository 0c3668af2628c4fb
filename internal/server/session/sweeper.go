package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"suratadmin/internal/server/metrics"
	"suratadmin/internal/server/notify"
)

// Sweeper periodically closes idle consoles and prunes expired
// notifications.
type Sweeper struct {
	registry *Registry
	pruner   notify.Pruner // nil when the inbox expires entries itself
	interval time.Duration
	maxIdle  time.Duration
	logger   *zap.Logger
	done     chan struct{}
}

func NewSweeper(registry *Registry, pruner notify.Pruner, interval, maxIdle time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		registry: registry,
		pruner:   pruner,
		interval: interval,
		maxIdle:  maxIdle,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("max_idle", s.maxIdle),
	)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now())
			case <-ctx.Done():
				s.logger.Info("sweeper stopping")
				close(s.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweeper has fully stopped.
func (s *Sweeper) Wait() {
	<-s.done
}

func (s *Sweeper) sweep(now time.Time) {
	evicted := s.registry.EvictIdle(s.maxIdle)

	pruned := 0
	if s.pruner != nil {
		pruned = s.pruner.Prune(now)
		metrics.AddPrunedNotifications(pruned)
	}

	if evicted == 0 && pruned == 0 {
		s.logger.Debug("sweep found nothing to clean")
		return
	}
	s.logger.Info("sweep complete",
		zap.Int("consoles_closed", evicted),
		zap.Int("notifications_pruned", pruned),
		zap.Int("consoles_open", s.registry.Len()),
	)
}
