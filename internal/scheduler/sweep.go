// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSpec runs the sweep daily at 03:00.
const DefaultSweepSpec = "0 3 * * *"

// sweepTimeout bounds a single sweep run.
const sweepTimeout = 5 * time.Minute

// Sweeper deletes expired tokens. *service.AuthService satisfies it.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// SweepScheduler triggers the token sweep on a cron schedule. Runs never
// overlap; a run still in progress when the next tick fires is skipped.
type SweepScheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *slog.Logger
}

// ParseSpec validates a five-field cron expression.
func ParseSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// NewSweepScheduler registers the sweep under spec. An empty spec uses
// DefaultSweepSpec. loc sets the time zone the spec is evaluated in; nil
// means the local zone.
func NewSweepScheduler(spec string, loc *time.Location, sweeper Sweeper, logger *slog.Logger) (*SweepScheduler, error) {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if loc == nil {
		loc = time.Local
	}

	s := &SweepScheduler{sweeper: sweeper, logger: logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule token sweep %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule in its own goroutine.
func (s *SweepScheduler) Start() {
	s.cron.Start()
	s.logger.Info("token sweep scheduled", slog.Time("next_run", s.Next()))
}

// Next returns the next scheduled run time.
func (s *SweepScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to expire.
func (s *SweepScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for token sweep: %w", ctx.Err())
	}
}

// RunOnce performs a single sweep.
func (s *SweepScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.sweeper.SweepExpired(ctx); err != nil {
		s.logger.ErrorContext(ctx, "token sweep failed", slog.String("error", err.Error()))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
