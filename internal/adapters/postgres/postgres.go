// Package postgres implements ports.Store on PostgreSQL through a pgx pool.
// Money columns are NUMERIC(18,2): values are written from decimal strings
// and read back with ::text casts so no float conversion ever happens.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of ports.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Store)(nil)

// New opens a pool and checks connectivity.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse url: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// ApplySchema runs the embedded migrations against the pool's database.
func (s *Store) ApplySchema(_ context.Context) error {
	return MigrateUp(s.pool.Config().ConnString())
}

// InTx runs fn inside a transaction, rolling back when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres.InTx: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres.InTx: commit: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	return getChallenge(ctx, s.pool, id, false)
}

func (s *Store) ListChallenges(ctx context.Context, userID string) ([]domain.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListChallenges: %w", err)
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres.ListChallenges: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveChallengeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM challenges WHERE status = $1 ORDER BY created_at`, string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("postgres.ListActiveChallengeIDs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres.ListActiveChallengeIDs: %w", err)
	}
	return ids, nil
}

func (s *Store) GetBet(ctx context.Context, id string) (domain.Bet, error) {
	return getBet(ctx, s.pool, id)
}

func (s *Store) ListBets(ctx context.Context, challengeID string) ([]domain.Bet, error) {
	return queryBets(ctx, s.pool,
		`SELECT `+betColumns+` FROM bets WHERE challenge_id = $1 ORDER BY placed_at DESC, id`, challengeID)
}

// ListDailyLedgers returns a challenge's ledgers in chronological order.
func (s *Store) ListDailyLedgers(ctx context.Context, challengeID string) ([]domain.DailyLedger, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ledgerColumns+`
		FROM challenge_daily WHERE challenge_id = $1 ORDER BY day ASC`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("postgres.ListDailyLedgers: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyLedger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres.ListDailyLedgers: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// decoder collects the first parse error of a row.
type decoder struct{ err error }

func (dc *decoder) money(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && dc.err == nil {
		dc.err = fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return v
}

func (dc *decoder) nullMoney(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	v := dc.money(*s)
	return &v
}

func moneyArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
