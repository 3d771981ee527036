// Package reminder runs the periodic sweep that dials leads whose
// follow-up reminder has come due.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Interval bounds in minutes. Out-of-range requests are clamped, and a
// missing or zero interval falls back to hourly.
const (
	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 1440
	DefaultIntervalMinutes = 60
)

// Sweeper performs one reminder pass over all tenants.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// IntervalSource reports the current sweep cadence in minutes. Restart
// consults it again, so settings changes take effect without a redeploy.
type IntervalSource func(ctx context.Context) (int, error)

// Scheduler owns the cron instance that fires the sweep. Start, Stop and
// Restart are safe to call from concurrent requests; overlapping sweep runs
// are suppressed rather than queued.
type Scheduler struct {
	sweeper  Sweeper
	interval IntervalSource
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	current int

	sweepMu sync.Mutex
}

func NewScheduler(sweeper Sweeper, interval IntervalSource, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

// Start reads the cadence and launches the cron loop. Starting an already
// running scheduler is a no-op. An unreadable interval source does not keep
// the scheduler down; it falls back to the hourly default.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	minutes := s.resolveInterval(ctx)

	c := cron.New()
	spec := cadenceSpec(minutes)
	if _, err := c.AddFunc(spec, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.current = minutes

	s.logger.Info("reminder scheduler started",
		"interval_minutes", minutes,
		"cron_spec", spec,
	)
	return nil
}

// Stop halts the cron loop and waits for an in-flight sweep to drain.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.cron = nil
	s.running = false
	s.logger.Info("reminder scheduler stopped")
}

// Restart stops the loop and starts it again with a freshly read interval.
func (s *Scheduler) Restart(ctx context.Context) error {
	s.Stop()
	return s.Start(ctx)
}

// IsRunning reports whether the cron loop is live.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CurrentInterval returns the cadence the running loop was started with, in
// minutes, or zero when stopped.
func (s *Scheduler) CurrentInterval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	return s.current
}

// runSweep is the cron callback. A sweep still in flight when the next tick
// arrives suppresses the new one. A panicking or failing sweep is logged and
// never takes the scheduler down.
func (s *Scheduler) runSweep() {
	if !s.sweepMu.TryLock() {
		s.logger.Warn("reminder sweep still running, skipping tick")
		return
	}
	defer s.sweepMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminder sweep panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	if err := s.sweeper.Sweep(ctx); err != nil {
		s.logger.Error("reminder sweep failed", "error", err)
		return
	}
	s.logger.Debug("reminder sweep finished", "duration", time.Since(start))
}

// resolveInterval asks the source for the current cadence. A missing source
// or a read failure yields the hourly default rather than an error, so a
// flaky settings store never leaves reminders unscheduled.
func (s *Scheduler) resolveInterval(ctx context.Context) int {
	if s.interval == nil {
		return DefaultIntervalMinutes
	}
	minutes, err := s.interval(ctx)
	if err != nil {
		s.logger.Warn("failed to read reminder interval, using hourly default",
			"error", err,
			"interval_minutes", DefaultIntervalMinutes,
		)
		return DefaultIntervalMinutes
	}
	return ClampInterval(minutes)
}

// ClampInterval normalizes a requested cadence: zero or negative falls back
// to the hourly default, anything above a day is capped at a day.
func ClampInterval(minutes int) int {
	switch {
	case minutes <= 0:
		return DefaultIntervalMinutes
	case minutes < MinIntervalMinutes:
		return MinIntervalMinutes
	case minutes > MaxIntervalMinutes:
		return MaxIntervalMinutes
	default:
		return minutes
	}
}

// cadenceSpec maps an interval in minutes onto a five-field cron spec.
// Sub-hourly intervals tick on minute steps; hourly and above tick on the
// hour so sweeps land at predictable wall-clock times.
func cadenceSpec(minutes int) string {
	switch {
	case minutes < 60:
		return fmt.Sprintf("*/%d * * * *", minutes)
	case minutes == 60:
		return "0 * * * *"
	default:
		return fmt.Sprintf("0 */%d * * *", minutes/60)
	}
}
