// Package challenge orchestrates challenges: it opens them, takes and
// settles picks, and moves them through their phases.
//
// Every mutation runs in one storage transaction holding the challenge, so
// the balance, the bet and the daily ledger always change together.
// Progression is evaluated lazily on every read and write, and by the
// sweeper for challenges nobody touches.
package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/metrics"
	"github.com/alejandrodnm/propbet/internal/ports"
)

// Config holds the optional dependencies of the service.
type Config struct {
	Now          func() time.Time // defaults to time.Now
	NewID        func() string    // defaults to uuid.NewString
	SweepWorkers int              // EvaluateAll goroutines (0 = NumCPU)
}

// Service is the entry point for every challenge operation.
type Service struct {
	store   ports.Store
	catalog *domain.Catalog
	matches ports.MatchSource
	events  ports.EventPublisher
	now     func() time.Time
	newID   func() string
	workers int
	locks   lockSet
}

// New creates the service. events may be nil.
func New(cfg Config, store ports.Store, catalog *domain.Catalog, matches ports.MatchSource, events ports.EventPublisher) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = runtime.NumCPU()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		matches: matches,
		events:  events,
		now:     func() time.Time { return cfg.Now().UTC() },
		newID:   cfg.NewID,
		workers: cfg.SweepWorkers,
	}
}

// Tiers lists the catalog, cheapest first.
func (s *Service) Tiers() []domain.Tier { return s.catalog.List() }

// CreateChallenge opens phase 1 of tierID for userID.
func (s *Service) CreateChallenge(ctx context.Context, userID, tierID string) (domain.Challenge, error) {
	if userID == "" {
		return domain.Challenge{}, fmt.Errorf("challenge.CreateChallenge: empty user id: %w", domain.ErrForbidden)
	}
	tier, err := s.catalog.Get(tierID)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("challenge.CreateChallenge: %w", err)
	}

	ch := domain.NewChallenge(s.newID(), userID, tier, s.now())
	err = s.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.InsertChallenge(ctx, ch)
	})
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("challenge.CreateChallenge: %w", err)
	}

	metrics.ChallengesCreated.WithLabelValues(tier.ID).Inc()
	slog.Info("challenge created", "challenge", ch.ID, "user", userID, "tier", tier.ID)
	s.publish(ctx, []domain.ChallengeEvent{domain.NewCreatedEvent(s.newID(), ch)})
	return ch, nil
}

// GetChallengeStatus returns the challenge after evaluating it at now. A
// transition found on read is persisted before returning.
func (s *Service) GetChallengeStatus(ctx context.Context, challengeID string) (domain.Challenge, error) {
	snap, err := s.evaluate(ctx, challengeID)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("challenge.GetChallengeStatus: %w", err)
	}
	return snap.challenge, nil
}

// Progress returns the status view of a challenge.
func (s *Service) Progress(ctx context.Context, challengeID string) (domain.Progress, error) {
	snap, err := s.evaluate(ctx, challengeID)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("challenge.Progress: %w", err)
	}
	return domain.BuildProgress(snap.challenge, snap.tier, snap.ledger, snap.activity, snap.at), nil
}

// ListChallenges returns the challenges of userID, or every challenge when
// userID is empty. Active ones are evaluated first.
func (s *Service) ListChallenges(ctx context.Context, userID string) ([]domain.Challenge, error) {
	list, err := s.store.ListChallenges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("challenge.ListChallenges: %w", err)
	}
	for i, c := range list {
		if !c.IsActive() {
			continue
		}
		snap, err := s.evaluate(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("challenge.ListChallenges: %w", err)
		}
		list[i] = snap.challenge
	}
	return list, nil
}

// snapshot is a challenge as seen at the end of an evaluation.
type snapshot struct {
	challenge  domain.Challenge
	tier       domain.Tier
	ledger     domain.DailyLedger
	activity   domain.Activity
	transition domain.Transition
	at         time.Time
}

func (s *Service) evaluate(ctx context.Context, challengeID string) (snapshot, error) {
	unlock := s.locks.lock(challengeID)
	defer unlock()

	var snap snapshot
	var events []domain.ChallengeEvent
	err := s.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		events = nil
		now := s.now()
		ch, tier, err := s.lockChallenge(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		ch, t, ev, err := s.evaluateLocked(ctx, tx, ch, tier, now)
		if err != nil {
			return err
		}
		events = ev

		ledger, err := s.todayLedger(ctx, tx, ch, now)
		if err != nil {
			return err
		}
		activity, err := tx.Activity(ctx, ch.ID, ch.StartDate)
		if err != nil {
			return err
		}
		snap = snapshot{challenge: ch, tier: tier, ledger: ledger, activity: activity, transition: t, at: now}
		return nil
	})
	if err != nil {
		return snapshot{}, err
	}
	s.publish(ctx, events)
	return snap, nil
}

func (s *Service) lockChallenge(ctx context.Context, tx ports.Tx, id string) (domain.Challenge, domain.Tier, error) {
	ch, err := tx.LockChallenge(ctx, id)
	if err != nil {
		return domain.Challenge{}, domain.Tier{}, err
	}
	tier, err := s.catalog.Get(ch.TierID)
	if err != nil {
		return domain.Challenge{}, domain.Tier{}, fmt.Errorf("challenge %s: %w", ch.ID, err)
	}
	return ch, tier, nil
}

// evaluateLocked runs progression on a locked challenge against today's
// ledger and persists it when it moves.
func (s *Service) evaluateLocked(ctx context.Context, tx ports.Tx, ch domain.Challenge, tier domain.Tier, now time.Time) (domain.Challenge, domain.Transition, []domain.ChallengeEvent, error) {
	ledger, err := s.todayLedger(ctx, tx, ch, now)
	if err != nil {
		return ch, domain.Transition{}, nil, err
	}
	t, err := s.advance(ctx, tx, &ch, tier, ledger, now)
	if err != nil || !t.Changed() {
		return ch, t, nil, err
	}
	ch, err = tx.UpdateChallenge(ctx, ch)
	if err != nil {
		return ch, t, nil, err
	}
	return ch, t, s.transitionEvents(ch, tier, t), nil
}

// advance evaluates ch and applies the result in memory. When ch becomes
// terminal its pending bets are voided in tx. The caller persists ch.
func (s *Service) advance(ctx context.Context, tx ports.Tx, ch *domain.Challenge, tier domain.Tier, ledger domain.DailyLedger, now time.Time) (domain.Transition, error) {
	activity, err := tx.Activity(ctx, ch.ID, ch.StartDate)
	if err != nil {
		return domain.Transition{}, err
	}
	t := domain.EvaluateProgression(*ch, tier, ledger, activity, now)
	if !t.Changed() {
		return t, nil
	}
	t.Apply(ch)
	if ch.IsTerminal() {
		if err := s.voidPending(ctx, tx, ch.ID, now); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (s *Service) voidPending(ctx context.Context, tx ports.Tx, challengeID string, now time.Time) error {
	pending, err := tx.ListPendingBets(ctx, challengeID)
	if err != nil {
		return err
	}
	for _, b := range pending {
		if err := tx.ResolveBet(ctx, domain.Void(b, now)); err != nil {
			return fmt.Errorf("void bet %s: %w", b.ID, err)
		}
		metrics.BetsResolved.WithLabelValues(string(domain.ResultVoid)).Inc()
	}
	return nil
}

// todayLedger returns the ledger of now's day, opening it at the current
// balance when the challenge has not touched that day yet.
func (s *Service) todayLedger(ctx context.Context, tx ports.Tx, ch domain.Challenge, now time.Time) (domain.DailyLedger, error) {
	l, ok, err := tx.DailyLedger(ctx, ch.ID, domain.Day(now))
	if err != nil {
		return domain.DailyLedger{}, err
	}
	if !ok {
		l = domain.NewDailyLedger(ch.ID, now, ch.CurrentBalance)
	}
	return l, nil
}

func (s *Service) transitionEvents(ch domain.Challenge, tier domain.Tier, t domain.Transition) []domain.ChallengeEvent {
	metrics.Transitions.WithLabelValues(string(t.Kind), string(t.Reason)).Inc()
	slog.Info("challenge transition",
		"challenge", ch.ID,
		"kind", t.Kind,
		"reason", t.Reason,
		"phase", ch.Phase,
		"balance", ch.CurrentBalance.StringFixed(2),
	)
	ev, ok := domain.EventForTransition(s.newID(), ch, tier, t)
	if !ok {
		return nil
	}
	return []domain.ChallengeEvent{ev}
}

// publish emits events after their transaction committed. Failures are
// logged: the state change already happened.
func (s *Service) publish(ctx context.Context, events []domain.ChallengeEvent) {
	if s.events == nil {
		return
	}
	for _, ev := range events {
		outcome := "ok"
		if err := s.events.Publish(ctx, ev); err != nil {
			outcome = "error"
			slog.Warn("event publish failed", "type", ev.Type, "challenge", ev.ChallengeID, "err", err)
		}
		metrics.EventsPublished.WithLabelValues(string(ev.Type), outcome).Inc()
	}
}

// reject counts a refused operation and wraps its error.
func reject(op string, err error) error {
	metrics.BetsRejected.WithLabelValues(domain.Code(err)).Inc()
	return fmt.Errorf("challenge.%s: %w", op, err)
}
