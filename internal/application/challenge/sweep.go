package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/metrics"
)

// SweepResult summarizes one sweep.
type SweepResult struct {
	Evaluated     int
	Failed        int
	PhaseAdvanced int
	Completed     int
	Errors        int
}

// EvaluateAll evaluates every active challenge with a pool of workers. A
// failure on one challenge is logged and counted; the sweep goes on.
func (s *Service) EvaluateAll(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := s.store.ListActiveChallengeIDs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("challenge.EvaluateAll: %w", err)
	}

	type outcome struct {
		id   string
		kind domain.TransitionKind
		err  error
	}

	workCh := make(chan string, len(ids))
	resultCh := make(chan outcome, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < min(s.workers, max(len(ids), 1)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range workCh {
				if ctx.Err() != nil {
					return
				}
				snap, err := s.evaluate(ctx, id)
				resultCh <- outcome{id: id, kind: snap.transition.Kind, err: err}
			}
		}()
	}

	for _, id := range ids {
		workCh <- id
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var res SweepResult
	for o := range resultCh {
		if o.err != nil {
			res.Errors++
			slog.Warn("sweep: evaluate failed", "challenge", o.id, "err", o.err)
			continue
		}
		res.Evaluated++
		switch o.kind {
		case domain.TransitionFailed:
			res.Failed++
		case domain.TransitionPhaseAdvanced:
			res.PhaseAdvanced++
		case domain.TransitionCompleted:
			res.Completed++
		}
	}

	slog.Debug("sweep complete", "active", len(ids), "workers", s.workers, "evaluated", res.Evaluated)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
