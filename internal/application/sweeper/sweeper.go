// Package sweeper periodically evaluates every active challenge so that
// time-based transitions happen even when nobody reads the challenge.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/propbet/internal/application/challenge"
)

// Evaluator is the part of challenge.Service the sweeper drives.
type Evaluator interface {
	EvaluateAll(ctx context.Context) (challenge.SweepResult, error)
}

// OddsRefresher warms the odds cache between sweeps. Optional.
type OddsRefresher interface {
	Refresh(ctx context.Context) error
}

// Config holds the sweeper settings.
type Config struct {
	Interval time.Duration
	Once     bool // run a single cycle and return
}

// Sweeper is the periodic evaluation loop.
type Sweeper struct {
	cfg       Config
	evaluator Evaluator
	odds      OddsRefresher
}

// New creates a Sweeper. odds may be nil.
func New(cfg Config, evaluator Evaluator, odds OddsRefresher) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Sweeper{cfg: cfg, evaluator: evaluator, odds: odds}
}

// Run loops until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	slog.Info("sweeper starting", "interval", s.cfg.Interval, "once", s.cfg.Once)

	if _, err := s.RunOnce(ctx); err != nil {
		slog.Error("sweep failed", "err", err)
		if s.cfg.Once {
			return err
		}
	}
	if s.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("sweep failed", "err", err)
			}
		}
	}
}

// RunOnce refreshes odds and evaluates every active challenge once.
func (s *Sweeper) RunOnce(ctx context.Context) (challenge.SweepResult, error) {
	start := time.Now()
	if s.odds != nil {
		if err := s.odds.Refresh(ctx); err != nil {
			slog.Warn("odds refresh failed", "err", err)
		}
	}

	res, err := s.evaluator.EvaluateAll(ctx)
	if err != nil {
		return res, err
	}
	slog.Info("sweep done",
		"evaluated", res.Evaluated,
		"failed", res.Failed,
		"phase_advanced", res.PhaseAdvanced,
		"completed", res.Completed,
		"errors", res.Errors,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}
