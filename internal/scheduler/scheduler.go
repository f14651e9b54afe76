package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Poller runs one cycle for one source.
type Poller interface {
	Name() string
	Poll(ctx context.Context) error
}

// Scheduler owns the main loop: it runs every poller in order, pauses
// between sources, then sleeps for the polling interval. The interval is
// measured from the end of a pass, so a slow source stretches the period
// instead of causing overlapping cycles.
type Scheduler struct {
	pollers     []Poller
	interval    time.Duration
	sourceDelay time.Duration
	logger      *slog.Logger
}

// NewScheduler creates a scheduler over pollers.
func NewScheduler(pollers []Poller, interval, sourceDelay time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pollers:     pollers,
		interval:    interval,
		sourceDelay: sourceDelay,
		logger:      logger,
	}
}

// Run starts the polling loop. It runs one immediate pass, then one pass per
// interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"source_delay", s.sourceDelay.String(),
		"sources", len(s.pollers),
	)

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
		}
	}
}

// RunOnce polls every source once, sequentially. Failures are logged and
// never stop the pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	failed := 0
	for i, p := range s.pollers {
		if ctx.Err() != nil {
			return
		}

		if err := s.pollSafely(ctx, p); err != nil {
			failed++
			s.logger.Error("poll failed",
				"source", p.Name(),
				"error", err,
			)
		}

		if i < len(s.pollers)-1 && s.sourceDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.sourceDelay):
			}
		}
	}
	s.logger.Info("pass complete",
		"sources", len(s.pollers),
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
}

// pollSafely turns a panic inside one source into an error so the remaining
// sources still run.
func (s *Scheduler) pollSafely(ctx context.Context, p Poller) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("poller panic stack", "source", p.Name(), "stack", string(debug.Stack()))
			err = fmt.Errorf("panic polling %s: %v", p.Name(), r)
		}
	}()
	return p.Poll(ctx)
}
