package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Runner runs one refresh pass.
type Runner interface {
	Run(ctx context.Context) RefreshResult
}

// SchedulerConfig holds configuration for the Scheduler.
type SchedulerConfig struct {
	Runner   Runner
	Interval time.Duration

	// RunOnStart runs a pass immediately instead of waiting one interval.
	RunOnStart bool

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// Scheduler runs the refresh job every interval. Passes run on the
// scheduler goroutine and never overlap.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	clock      clockwork.Clock
	logger     zerolog.Logger
}

// NewScheduler creates a scheduler. A non-positive interval defaults to 15 minutes.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		runner:     cfg.Runner,
		interval:   interval,
		runOnStart: cfg.RunOnStart,
		clock:      clock,
		logger:     cfg.Logger,
	}
}

// Start blocks running passes until ctx is done, then returns ctx.Err().
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("starting refresh scheduler")

	if s.runOnStart {
		s.runner.Run(ctx)
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("refresh scheduler stopped")
			return ctx.Err()
		case <-ticker.Chan():
			s.runner.Run(ctx)
		}
	}
}
