package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
)

// Store persists challenges, bets and daily ledgers.
//
// Every mutation of a challenge happens inside InTx: the callback receives a
// Tx whose writes commit together or not at all. Reads outside InTx see only
// committed state.
type Store interface {
	ApplySchema(ctx context.Context) error
	// Ping checks the database answers. Used by the health probe.
	Ping(ctx context.Context) error

	// InTx runs fn in one transaction. A non-nil error from fn rolls back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetChallenge(ctx context.Context, id string) (domain.Challenge, error)
	ListChallenges(ctx context.Context, userID string) ([]domain.Challenge, error)
	// ListActiveChallengeIDs returns the IDs the sweeper has to evaluate.
	ListActiveChallengeIDs(ctx context.Context) ([]string, error)

	GetBet(ctx context.Context, id string) (domain.Bet, error)
	ListBets(ctx context.Context, challengeID string) ([]domain.Bet, error)

	Close() error
}

// Tx is the transactional view of the Store.
type Tx interface {
	InsertChallenge(ctx context.Context, c domain.Challenge) error
	// LockChallenge reads a challenge and holds it until the transaction ends.
	LockChallenge(ctx context.Context, id string) (domain.Challenge, error)
	// UpdateChallenge writes c if its stored version still equals c.Version,
	// bumping the stored version. Otherwise it returns domain.ErrConcurrentUpdate.
	UpdateChallenge(ctx context.Context, c domain.Challenge) (domain.Challenge, error)

	InsertBet(ctx context.Context, b domain.Bet) error
	GetBet(ctx context.Context, id string) (domain.Bet, error)
	// ResolveBet writes the outcome of a bet that is still pending in storage.
	// It returns domain.ErrBetNotPending when it was resolved meanwhile.
	ResolveBet(ctx context.Context, b domain.Bet) error
	ListPendingBets(ctx context.Context, challengeID string) ([]domain.Bet, error)
	HasPendingBetOnMatch(ctx context.Context, userID, matchID string) (bool, error)

	// Activity counts non-cancelled picks and distinct UTC days with a pick
	// placed at or after since.
	Activity(ctx context.Context, challengeID string, since time.Time) (domain.Activity, error)

	// DailyLedger returns the ledger of day, ok=false when none was written.
	DailyLedger(ctx context.Context, challengeID string, day time.Time) (domain.DailyLedger, bool, error)
	SaveDailyLedger(ctx context.Context, l domain.DailyLedger) error
}

// LedgerReader exposes closed days for reporting.
type LedgerReader interface {
	ListDailyLedgers(ctx context.Context, challengeID string) ([]domain.DailyLedger, error)
}
