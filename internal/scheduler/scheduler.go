// Package scheduler runs periodic housekeeping jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// PresenceSweeper clears stale liveness flags.
type PresenceSweeper interface {
	SweepStale(ctx context.Context) (int64, error)
}

const presenceSweepJob = "presence-sweep"

// Scheduler owns the gocron scheduler and its jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// New creates a scheduler driven by clock.
func New(clock clockwork.Clock, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithClock(clock),
		gocron.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, clock: clock, logger: logger.With("component", "scheduler")}, nil
}

// AddPresenceSweep runs sweeper every interval. Each run gets at most one
// interval to finish and runs never overlap.
func (s *Scheduler) AddPresenceSweep(interval time.Duration, sweeper PresenceSweeper) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweepPresence, interval, sweeper),
		gocron.WithName(presenceSweepJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", presenceSweepJob, err)
	}
	s.logger.Info("Scheduled task", "task_name", presenceSweepJob, "interval", interval)
	return nil
}

func (s *Scheduler) sweepPresence(interval time.Duration, sweeper PresenceSweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), interval)
	defer cancel()

	start := s.clock.Now()
	n, err := sweeper.SweepStale(ctx)
	if err != nil {
		s.logger.Error("Scheduled task failed", "task_name", presenceSweepJob, "error", err)
		return
	}
	s.logger.Debug("Finished scheduled task",
		"task_name", presenceSweepJob, "swept", n, "duration", s.clock.Since(start))
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "jobs", len(s.scheduler.Jobs()))
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	s.logger.Info("Scheduler stopped")
	return nil
}
