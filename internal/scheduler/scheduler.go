package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner performs one watch cycle.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler repeats watch cycles at a fixed interval. Cycles never overlap.
type Scheduler struct {
	runner Runner
	log    *slog.Logger
	tick   time.Duration
}

// New creates a Scheduler that runs runner every interval.
func New(runner Runner, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		log:    log,
		tick:   interval,
	}
}

// SetTickInterval overrides the run interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce runs a single cycle. A failed cycle is logged; the next tick
// retries.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := s.runner.Run(ctx); err != nil {
		s.log.Error("watch run failed", "error", err, "duration", time.Since(start))
		return
	}
	s.log.Debug("watch run completed", "duration", time.Since(start))
}
