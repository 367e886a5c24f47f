package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/metrics"
	"github.com/alejandrodnm/propbet/internal/ports"
)

// PlaceBet validates a pick against the challenge as it stands at now and
// stores it. The stake is not debited until settlement.
//
// A transition found while evaluating the challenge is committed even when
// the pick itself is rejected.
func (s *Service) PlaceBet(ctx context.Context, challengeID string, req domain.BetRequest) (domain.Bet, error) {
	const op = "PlaceBet"
	if !req.Stake.IsPositive() {
		return domain.Bet{}, reject(op, &domain.StakeError{Reason: domain.ErrInvalidAmount, Stake: req.Stake})
	}
	if !domain.IsCents(req.Stake) {
		return domain.Bet{}, reject(op, fmt.Errorf("stake %s has fractional cents: %w", req.Stake, domain.ErrInvalidAmount))
	}
	sel, ok := domain.ParseSelection(string(req.Selection))
	if !ok {
		return domain.Bet{}, reject(op, fmt.Errorf("unknown selection %q: %w", req.Selection, domain.ErrSelectionUnavailable))
	}
	m, err := s.matches.Match(ctx, req.MatchID)
	if err != nil {
		return domain.Bet{}, reject(op, err)
	}

	unlock := s.locks.lock(challengeID)
	defer unlock()

	var (
		bet       domain.Bet
		tierID    string
		events    []domain.ChallengeEvent
		rejectErr error
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		events, rejectErr = nil, nil
		now := s.now()
		ch, tier, err := s.lockChallenge(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		if req.UserID != ch.UserID {
			rejectErr = fmt.Errorf("challenge %s: %w", ch.ID, domain.ErrForbidden)
			return nil
		}
		tierID = tier.ID

		ch, _, events, err = s.evaluateLocked(ctx, tx, ch, tier, now)
		if err != nil {
			return err
		}
		if !ch.IsActive() {
			rejectErr = fmt.Errorf("challenge %s is %s: %w", ch.ID, ch.Status, domain.ErrChallengeNotActive)
			return nil
		}
		if m.HasStarted(now) {
			rejectErr = fmt.Errorf("match %s kicked off at %s: %w", m.ID, m.CommenceTime.Format(time.RFC3339), domain.ErrMatchAlreadyStarted)
			return nil
		}

		ledger, err := s.todayLedger(ctx, tx, ch, now)
		if err != nil {
			return err
		}
		if ledger.TodayGain().GreaterThanOrEqual(tier.MaxDailyGain) {
			rejectErr = fmt.Errorf("gained %s today: %w", ledger.TodayGain().StringFixed(2), domain.ErrDailyGainCapReached)
			return nil
		}
		if err := domain.ValidateStake(ch.CurrentBalance, req.Stake); err != nil {
			rejectErr = err
			return nil
		}
		dup, err := tx.HasPendingBetOnMatch(ctx, ch.UserID, m.ID)
		if err != nil {
			return err
		}
		if dup {
			rejectErr = fmt.Errorf("match %s: %w", m.ID, domain.ErrDuplicatePendingBet)
			return nil
		}

		b, err := domain.NewBet(s.newID(), ch, m, sel, req.Stake, now)
		if err != nil {
			rejectErr = err
			return nil
		}
		if err := tx.InsertBet(ctx, b); err != nil {
			return err
		}
		ledger.RecordPlacement()
		if err := tx.SaveDailyLedger(ctx, ledger); err != nil {
			return err
		}
		bet = b
		return nil
	})
	if err != nil {
		return domain.Bet{}, fmt.Errorf("challenge.%s: %w", op, err)
	}
	s.publish(ctx, events)
	if rejectErr != nil {
		return domain.Bet{}, reject(op, rejectErr)
	}

	metrics.BetsPlaced.WithLabelValues(tierID).Inc()
	slog.Info("bet placed",
		"challenge", challengeID,
		"bet", bet.ID,
		"match", bet.MatchID,
		"selection", bet.Selection,
		"odds", bet.Odds.String(),
		"stake", bet.Stake.StringFixed(2),
	)
	return bet, nil
}

// SettleBet resolves a pending bet with the reported match result and
// returns the challenge after the balance moved and progression ran.
// Results other than home, draw or away settle as void.
func (s *Service) SettleBet(ctx context.Context, betID, matchResult string) (domain.Challenge, error) {
	const op = "SettleBet"
	b, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("challenge.%s: %w", op, err)
	}

	unlock := s.locks.lock(b.ChallengeID)
	defer unlock()

	start := time.Now()
	var (
		result    domain.Challenge
		settled   domain.Bet
		events    []domain.ChallengeEvent
		rejectErr error
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		events, rejectErr = nil, nil
		now := s.now()
		ch, tier, err := s.lockChallenge(ctx, tx, b.ChallengeID)
		if err != nil {
			return err
		}
		ch, _, events, err = s.evaluateLocked(ctx, tx, ch, tier, now)
		if err != nil {
			return err
		}
		result = ch
		if !ch.IsActive() {
			rejectErr = fmt.Errorf("challenge %s is %s: %w", ch.ID, ch.Status, domain.ErrChallengeNotActive)
			return nil
		}

		bet, err := tx.GetBet(ctx, betID)
		if err != nil {
			return err
		}
		if !bet.IsPending() {
			rejectErr = fmt.Errorf("bet %s is %s: %w", bet.ID, bet.Result, domain.ErrBetNotPending)
			return nil
		}

		ledger, err := s.todayLedger(ctx, tx, ch, now)
		if err != nil {
			return err
		}
		out, err := domain.Settle(bet, matchResult, ch.CurrentBalance)
		if err != nil {
			return err
		}
		out = domain.ApplyDailyGainCap(out, ledger, tier)

		bet.Resolve(out, now)
		if err := tx.ResolveBet(ctx, bet); err != nil {
			return err
		}
		ch.CurrentBalance = out.NewBalance
		ch.UpdatedAt = now
		ledger.RecordSettlement(out.ProfitLoss)
		if err := tx.SaveDailyLedger(ctx, ledger); err != nil {
			return err
		}

		t, err := s.advance(ctx, tx, &ch, tier, ledger, now)
		if err != nil {
			return err
		}
		ch, err = tx.UpdateChallenge(ctx, ch)
		if err != nil {
			return err
		}
		if t.Changed() {
			events = append(events, s.transitionEvents(ch, tier, t)...)
		}
		result, settled = ch, bet
		return nil
	})
	metrics.SettleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("challenge.%s: %w", op, err)
	}
	s.publish(ctx, events)
	if rejectErr != nil {
		return result, reject(op, rejectErr)
	}

	metrics.BetsResolved.WithLabelValues(string(settled.Result)).Inc()
	if settled.GainClipped.IsPositive() {
		metrics.GainClipped.Add(settled.GainClipped.InexactFloat64())
		slog.Info("daily gain cap clipped profit", "challenge", result.ID, "bet", settled.ID, "clipped", settled.GainClipped.StringFixed(2))
	}
	slog.Info("bet settled",
		"challenge", result.ID,
		"bet", settled.ID,
		"result", settled.Result,
		"profit_loss", settled.ProfitLoss.StringFixed(2),
		"balance", result.CurrentBalance.StringFixed(2),
		"status", result.Status,
	)
	return result, nil
}

// CancelBet withdraws a pending pick before its match kicks off. The
// balance is not touched.
func (s *Service) CancelBet(ctx context.Context, betID string) error {
	const op = "CancelBet"
	b, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return fmt.Errorf("challenge.%s: %w", op, err)
	}

	unlock := s.locks.lock(b.ChallengeID)
	defer unlock()

	var (
		events    []domain.ChallengeEvent
		rejectErr error
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		events, rejectErr = nil, nil
		now := s.now()
		ch, tier, err := s.lockChallenge(ctx, tx, b.ChallengeID)
		if err != nil {
			return err
		}
		if ch, _, events, err = s.evaluateLocked(ctx, tx, ch, tier, now); err != nil {
			return err
		}
		if !ch.IsActive() {
			rejectErr = fmt.Errorf("challenge %s is %s: %w", ch.ID, ch.Status, domain.ErrChallengeNotActive)
			return nil
		}

		bet, err := tx.GetBet(ctx, betID)
		if err != nil {
			return err
		}
		cancelled, err := domain.Cancel(bet, now)
		if err != nil {
			rejectErr = err
			return nil
		}
		return tx.ResolveBet(ctx, cancelled)
	})
	if err != nil {
		return fmt.Errorf("challenge.%s: %w", op, err)
	}
	s.publish(ctx, events)
	if rejectErr != nil {
		return reject(op, rejectErr)
	}

	metrics.BetsResolved.WithLabelValues(string(domain.ResultCancelled)).Inc()
	slog.Info("bet cancelled", "challenge", b.ChallengeID, "bet", betID)
	return nil
}

// GetBet returns a bet as stored.
func (s *Service) GetBet(ctx context.Context, betID string) (domain.Bet, error) {
	b, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("challenge.GetBet: %w", err)
	}
	return b, nil
}

// ListBets returns the bets of a challenge, newest first, after evaluating
// the challenge so bets voided by a pending transition show as such.
func (s *Service) ListBets(ctx context.Context, challengeID string) ([]domain.Bet, error) {
	if _, err := s.evaluate(ctx, challengeID); err != nil {
		return nil, fmt.Errorf("challenge.ListBets: %w", err)
	}
	bets, err := s.store.ListBets(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("challenge.ListBets: %w", err)
	}
	return bets, nil
}
