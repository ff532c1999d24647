// Package sweeper runs the periodic appointment maintenance pass on a cron
// schedule.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/appointment-engine/internal/application"
)

// DefaultSchedule runs the sweep once a minute.
const DefaultSchedule = "@every 1m"

// Target performs one sweep.
type Target interface {
	Sweep(ctx context.Context) (application.SweepResult, error)
}

// Config controls how often the sweep runs and how long one pass may take.
type Config struct {
	Schedule string
	Timeout  time.Duration
}

// Sweeper drives a Target from a cron scheduler. Overlapping runs are skipped.
type Sweeper struct {
	target  Target
	logger  *slog.Logger
	cron    *cron.Cron
	timeout time.Duration
	runs    atomic.Int64
}

// New validates the schedule and registers the sweep job. The scheduler does
// not run until Start is called.
func New(target Target, cfg Config, logger *slog.Logger) (*Sweeper, error) {
	if target == nil {
		return nil, errors.New("sweeper: target is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sweeper")

	cronLogger := cronLogAdapter{logger: logger}
	s := &Sweeper{
		target:  target,
		logger:  logger,
		timeout: cfg.Timeout,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_ = s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("sweeper: invalid schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start launches the cron scheduler.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("sweeper started")
}

// Stop halts the scheduler and waits for a running sweep or ctx, whichever
// finishes first.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("sweeper stopped", "runs", s.runs.Load())
	return nil
}

// RunOnce performs a single sweep synchronously.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	s.runs.Add(1)
	result, err := s.target.Sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		return err
	}
	s.logger.DebugContext(ctx, "sweep finished",
		"completed_breaks", result.CompletedBreaks,
		"delayed", result.Delayed,
	)
	return nil
}

// Runs reports how many sweeps have been attempted.
func (s *Sweeper) Runs() int64 {
	return s.runs.Load()
}

// cronLogAdapter routes cron's own diagnostics to slog.
type cronLogAdapter struct {
	logger *slog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
