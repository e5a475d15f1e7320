package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"secevents/internal/domain"
)

// Runner performs one extraction run.
type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

type RunnerFunc func(ctx context.Context) (*domain.RunStats, error)

func (f RunnerFunc) Run(ctx context.Context) (*domain.RunStats, error) {
	return f(ctx)
}

type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start runs immediately and then on every tick until ctx is done. Failed
// runs are logged and retried on the next tick, except configuration errors,
// which no later run can fix.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	if err := s.runOnce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	stats, err := s.runner.Run(runCtx)
	switch {
	case err == nil:
		if stats != nil {
			s.logger.Debug("run completed", "emitted", stats.Emitted, "skipped", stats.Skipped)
		}
		return nil
	case errors.Is(err, domain.ErrConfiguration):
		s.logger.Error("run rejected, stopping", "error", err)
		return err
	case ctx.Err() != nil:
		return nil
	default:
		s.logger.Error("run failed", "error", err)
		return nil
	}
}
