package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler drives the ingestion pipeline on a fixed interval. Cycles never
// overlap: when a tick fires while the previous cycle is still running, the
// tick is skipped and logged rather than queued.
type Scheduler struct {
	pipeline *Pipeline
	interval time.Duration

	running sync.Mutex
	done    chan struct{}
}

func NewScheduler(pipeline *Pipeline, interval time.Duration) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the scheduling loop. The first cycle runs immediately so a
// fresh deployment does not sit idle for a full interval. The loop exits
// when ctx is cancelled; an in-progress cycle finishes its current source
// before the loop returns.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		slog.Info("Scheduler started", "interval", s.interval)
		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Scheduler stopping")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the scheduling loop has fully stopped.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.running.TryLock() {
		slog.Warn("Previous cycle still running, skipping this tick")
		return
	}
	defer s.running.Unlock()

	s.pipeline.RunCycle(ctx)
}
