package storage

// sqlite.go: single-file store for challenges, bets and their daily ledgers.
//
//   - `challenges`: one row per challenge, updated under an optimistic
//     `version` check.
//   - `bets`: one row per pick. A partial unique index keeps a single pending
//     pick per user and match.
//   - `challenge_daily`: one row per challenge and UTC day, upserted inside the
//     same transaction as the bet that moved it.
//
// Money is stored as decimal TEXT and times as fixed-width UTC strings so
// lexical order is chronological order.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS challenges (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT    NOT NULL,
    tier_id             TEXT    NOT NULL,
    phase               INTEGER NOT NULL DEFAULT 1,
    status              TEXT    NOT NULL,
    initial_balance     TEXT    NOT NULL,
    current_balance     TEXT    NOT NULL,
    phase_start_balance TEXT    NOT NULL,
    target_profit       TEXT    NOT NULL,
    max_daily_loss      TEXT    NOT NULL,
    max_total_loss      TEXT    NOT NULL,
    start_date          TEXT    NOT NULL,
    end_date            TEXT,
    fail_reason         TEXT    NOT NULL DEFAULT '',
    created_at          TEXT    NOT NULL,
    updated_at          TEXT    NOT NULL,
    version             INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bets (
    id                   TEXT PRIMARY KEY,
    challenge_id         TEXT NOT NULL REFERENCES challenges(id),
    user_id              TEXT NOT NULL,
    match_id             TEXT NOT NULL,
    sport                TEXT NOT NULL DEFAULT '',
    home_team            TEXT NOT NULL DEFAULT '',
    away_team            TEXT NOT NULL DEFAULT '',
    event_description    TEXT NOT NULL DEFAULT '',
    bet_type             TEXT NOT NULL,
    selection            TEXT NOT NULL,
    odds                 TEXT NOT NULL,
    stake                TEXT NOT NULL,
    potential_win        TEXT NOT NULL,
    balance_at_placement TEXT NOT NULL,
    result               TEXT NOT NULL DEFAULT 'pending',
    profit_loss          TEXT,
    gain_clipped         TEXT NOT NULL DEFAULT '0',
    commence_time        TEXT NOT NULL,
    placed_at            TEXT NOT NULL,
    resolved_at          TEXT
);

CREATE TABLE IF NOT EXISTS challenge_daily (
    challenge_id      TEXT    NOT NULL,
    day               TEXT    NOT NULL,
    day_start_balance TEXT    NOT NULL,
    realized_pnl      TEXT    NOT NULL DEFAULT '0',
    bets_placed       INTEGER NOT NULL DEFAULT 0,
    bets_settled      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (challenge_id, day)
);

CREATE INDEX IF NOT EXISTS idx_challenges_user   ON challenges(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges(status);
CREATE INDEX IF NOT EXISTS idx_bets_challenge    ON bets(challenge_id, placed_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_bets_pending_match ON bets(user_id, match_id) WHERE result = 'pending';
`

const (
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"
	dayLayout  = "2006-01-02"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements ports.Store on SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.Store = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (or creates) the database at path and applies the
// schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}
	if err := s.ApplySchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: %w", err)
	}
	return s, nil
}

// ApplySchema creates the tables if they do not exist.
func (s *SQLiteStorage) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("storage.ApplySchema: foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}
	return nil
}

// InTx runs fn in a transaction on the single connection, which serializes
// every writer.
func (s *SQLiteStorage) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.InTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqliteTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.InTx: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	return getChallenge(ctx, s.db, id)
}

// ListChallenges returns a user's challenges, newest first. An empty userID
// lists every challenge.
func (s *SQLiteStorage) ListChallenges(ctx context.Context, userID string) ([]domain.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id`
	return queryChallenges(ctx, s.db, query, args...)
}

func (s *SQLiteStorage) ListActiveChallengeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM challenges WHERE status = ? ORDER BY created_at`, string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("storage.ListActiveChallengeIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.ListActiveChallengeIDs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) GetBet(ctx context.Context, id string) (domain.Bet, error) {
	return getBet(ctx, s.db, id)
}

// ListBets returns a challenge's bets, newest first.
func (s *SQLiteStorage) ListBets(ctx context.Context, challengeID string) ([]domain.Bet, error) {
	return queryBets(ctx, s.db,
		`SELECT `+betColumns+` FROM bets WHERE challenge_id = ? ORDER BY placed_at DESC, id`, challengeID)
}

// ListDailyLedgers returns a challenge's ledgers in chronological order.
func (s *SQLiteStorage) ListDailyLedgers(ctx context.Context, challengeID string) ([]domain.DailyLedger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT challenge_id, day, day_start_balance, realized_pnl, bets_placed, bets_settled
		FROM challenge_daily WHERE challenge_id = ? ORDER BY day ASC`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListDailyLedgers: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyLedger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListDailyLedgers: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- encoding helpers ---

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatNullMoney(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
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

func (dc *decoder) nullMoney(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	v := dc.money(s.String)
	return &v
}

func (dc *decoder) time(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil && dc.err == nil {
		dc.err = fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC()
}

func (dc *decoder) nullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := dc.time(s.String)
	return &t
}

func (dc *decoder) day(s string) time.Time {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil && dc.err == nil {
		dc.err = fmt.Errorf("parse day %q: %w", s, err)
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
