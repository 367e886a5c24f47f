package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
)

const challengeColumns = `id, user_id, tier_id, phase, status, initial_balance, current_balance,
	phase_start_balance, target_profit, max_daily_loss, max_total_loss, start_date, end_date,
	fail_reason, created_at, updated_at, version`

// sqliteTx implements ports.Tx on top of a *sql.Tx.
type sqliteTx struct {
	q querier
}

var _ ports.Tx = (*sqliteTx)(nil)

func (t *sqliteTx) InsertChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TierID, c.Phase, string(c.Status),
		c.InitialBalance.String(), c.CurrentBalance.String(), c.PhaseStartBalance.String(),
		c.TargetProfit.String(), c.MaxDailyLoss.String(), c.MaxTotalLoss.String(),
		formatTime(c.StartDate), formatNullTime(c.EndDate), string(c.FailReason),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt), c.Version,
	)
	if err != nil {
		return fmt.Errorf("storage.InsertChallenge: %w", err)
	}
	return nil
}

// LockChallenge reads the challenge. The single SQLite connection already
// serializes transactions, so no explicit row lock is taken.
func (t *sqliteTx) LockChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	return getChallenge(ctx, t.q, id)
}

func (t *sqliteTx) UpdateChallenge(ctx context.Context, c domain.Challenge) (domain.Challenge, error) {
	res, err := t.q.ExecContext(ctx, `
		UPDATE challenges SET
		    phase = ?, status = ?, current_balance = ?, phase_start_balance = ?,
		    target_profit = ?, start_date = ?, end_date = ?, fail_reason = ?,
		    updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		c.Phase, string(c.Status), c.CurrentBalance.String(), c.PhaseStartBalance.String(),
		c.TargetProfit.String(), formatTime(c.StartDate), formatNullTime(c.EndDate), string(c.FailReason),
		formatTime(c.UpdatedAt), c.ID, c.Version,
	)
	if err != nil {
		return c, fmt.Errorf("storage.UpdateChallenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return c, fmt.Errorf("storage.UpdateChallenge: rows affected: %w", err)
	}
	if n == 0 {
		return c, fmt.Errorf("storage.UpdateChallenge: %s v%d: %w", c.ID, c.Version, domain.ErrConcurrentUpdate)
	}
	c.Version++
	return c, nil
}

func getChallenge(ctx context.Context, q querier, id string) (domain.Challenge, error) {
	row := q.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("storage.GetChallenge: %s: %w", id, notFound(err, domain.ErrChallengeNotFound))
	}
	return c, nil
}

func queryChallenges(ctx context.Context, q querier, query string, args ...any) ([]domain.Challenge, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryChallenges: %w", err)
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.queryChallenges: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(r rowScanner) (domain.Challenge, error) {
	var c domain.Challenge
	var status, failReason string
	var initial, current, phaseStart, target, maxDaily, maxTotal string
	var startDate, createdAt, updatedAt string
	var endDate sql.NullString
	if err := r.Scan(
		&c.ID, &c.UserID, &c.TierID, &c.Phase, &status,
		&initial, &current, &phaseStart, &target, &maxDaily, &maxTotal,
		&startDate, &endDate, &failReason, &createdAt, &updatedAt, &c.Version,
	); err != nil {
		return domain.Challenge{}, err
	}

	var dc decoder
	c.Status = domain.ChallengeStatus(status)
	c.FailReason = domain.FailReason(failReason)
	c.InitialBalance = dc.money(initial)
	c.CurrentBalance = dc.money(current)
	c.PhaseStartBalance = dc.money(phaseStart)
	c.TargetProfit = dc.money(target)
	c.MaxDailyLoss = dc.money(maxDaily)
	c.MaxTotalLoss = dc.money(maxTotal)
	c.StartDate = dc.time(startDate)
	c.EndDate = dc.nullTime(endDate)
	c.CreatedAt = dc.time(createdAt)
	c.UpdatedAt = dc.time(updatedAt)
	return c, dc.err
}

func activitySince(ctx context.Context, q querier, challengeID string, since time.Time) (domain.Activity, error) {
	var a domain.Activity
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT substr(placed_at, 1, 10))
		FROM bets
		WHERE challenge_id = ? AND result != ? AND placed_at >= ?`,
		challengeID, string(domain.ResultCancelled), formatTime(since),
	).Scan(&a.PicksPlaced, &a.ActiveDays)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("storage.Activity: %w", err)
	}
	return a, nil
}

func (t *sqliteTx) Activity(ctx context.Context, challengeID string, since time.Time) (domain.Activity, error) {
	return activitySince(ctx, t.q, challengeID, since)
}
