package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"taskpulse/internal/db"
)

// FullRunner is what the scheduler triggers on every tick.
type FullRunner interface {
	RunFull(ctx context.Context) (*db.SyncRun, error)
}

// Scheduler runs a full sweep at start and then once per Interval.
type Scheduler struct {
	Runner   FullRunner
	Interval time.Duration
	// Wait blocks for d or until ctx is done, returning false in the latter
	// case. Defaults to a timer.
	Wait   func(ctx context.Context, d time.Duration) bool
	Logger Logger
}

// Run blocks until ctx is cancelled. A tick that finds a run already in
// progress is skipped. Cancelling ctx stops the loop but never a sweep in
// flight: Run returns once that sweep has finished.
func (s *Scheduler) Run(ctx context.Context) {
	wait := s.Wait
	if wait == nil {
		wait = waitWithContext
	}
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	runCtx := context.WithoutCancel(ctx)
	for {
		run, err := s.Runner.RunFull(runCtx)
		switch {
		case errors.Is(err, ErrSyncInProgress):
			logger.Printf("scheduler: sync already running, skipping tick")
		case err != nil:
			logger.Printf("scheduler: full sync failed: %v", err)
		case run != nil:
			logger.Printf("scheduler: full sync %s finished: %s", run.ID, run.Result)
		}
		if !wait(ctx, interval) {
			logger.Printf("scheduler: stopping: %v", ctx.Err())
			return
		}
	}
}

func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
