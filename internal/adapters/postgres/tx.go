package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
	"github.com/jackc/pgx/v5"
)

const challengeColumns = `id, user_id, tier_id, phase, status, initial_balance::text, current_balance::text,
	phase_start_balance::text, target_profit::text, max_daily_loss::text, max_total_loss::text,
	start_date, end_date, fail_reason, created_at, updated_at, version`

const betColumns = `id, challenge_id, user_id, match_id, sport, home_team, away_team,
	event_description, bet_type, selection, odds::text, stake::text, potential_win::text,
	balance_at_placement::text, result, profit_loss::text, gain_clipped::text,
	commence_time, placed_at, resolved_at`

const ledgerColumns = `challenge_id, day, day_start_balance::text, realized_pnl::text, bets_placed, bets_settled`

// pgTx implements ports.Tx on a pgx transaction.
type pgTx struct {
	q querier
}

var _ ports.Tx = (*pgTx)(nil)

func (t *pgTx) InsertChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO challenges (id, user_id, tier_id, phase, status, initial_balance, current_balance,
		    phase_start_balance, target_profit, max_daily_loss, max_total_loss, start_date, end_date,
		    fail_reason, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.UserID, c.TierID, c.Phase, string(c.Status),
		c.InitialBalance.String(), c.CurrentBalance.String(), c.PhaseStartBalance.String(),
		c.TargetProfit.String(), c.MaxDailyLoss.String(), c.MaxTotalLoss.String(),
		c.StartDate.UTC(), utcPtr(c.EndDate), string(c.FailReason),
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(), c.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres.InsertChallenge: %w", err)
	}
	return nil
}

// LockChallenge reads the challenge row with SELECT ... FOR UPDATE.
func (t *pgTx) LockChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	return getChallenge(ctx, t.q, id, true)
}

func (t *pgTx) UpdateChallenge(ctx context.Context, c domain.Challenge) (domain.Challenge, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE challenges SET
		    phase = $1, status = $2, current_balance = $3, phase_start_balance = $4,
		    target_profit = $5, start_date = $6, end_date = $7, fail_reason = $8,
		    updated_at = $9, version = version + 1
		WHERE id = $10 AND version = $11`,
		c.Phase, string(c.Status), c.CurrentBalance.String(), c.PhaseStartBalance.String(),
		c.TargetProfit.String(), c.StartDate.UTC(), utcPtr(c.EndDate), string(c.FailReason),
		c.UpdatedAt.UTC(), c.ID, c.Version,
	)
	if err != nil {
		return c, fmt.Errorf("postgres.UpdateChallenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return c, fmt.Errorf("postgres.UpdateChallenge: %s v%d: %w", c.ID, c.Version, domain.ErrConcurrentUpdate)
	}
	c.Version++
	return c, nil
}

func (t *pgTx) InsertBet(ctx context.Context, b domain.Bet) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO bets (id, challenge_id, user_id, match_id, sport, home_team, away_team,
		    event_description, bet_type, selection, odds, stake, potential_win, balance_at_placement,
		    result, profit_loss, gain_clipped, commence_time, placed_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		b.ID, b.ChallengeID, b.UserID, b.MatchID, b.Sport, b.HomeTeam, b.AwayTeam,
		b.EventDescription, b.BetType, string(b.Selection),
		b.Odds.String(), b.Stake.String(), b.PotentialWin.String(), b.BalanceAtPlacement.String(),
		string(b.Result), moneyArg(b.ProfitLoss), b.GainClipped.String(),
		b.CommenceTime.UTC(), b.PlacedAt.UTC(), utcPtr(b.ResolvedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres.InsertBet: %s on %s: %w", b.UserID, b.MatchID, domain.ErrDuplicatePendingBet)
	}
	if err != nil {
		return fmt.Errorf("postgres.InsertBet: %w", err)
	}
	return nil
}

func (t *pgTx) GetBet(ctx context.Context, id string) (domain.Bet, error) {
	return getBet(ctx, t.q, id)
}

func (t *pgTx) ResolveBet(ctx context.Context, b domain.Bet) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE bets SET result = $1, profit_loss = $2, gain_clipped = $3, resolved_at = $4
		WHERE id = $5 AND result = 'pending'`,
		string(b.Result), moneyArg(b.ProfitLoss), b.GainClipped.String(), utcPtr(b.ResolvedAt), b.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres.ResolveBet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres.ResolveBet: %s: %w", b.ID, domain.ErrBetNotPending)
	}
	return nil
}

func (t *pgTx) ListPendingBets(ctx context.Context, challengeID string) ([]domain.Bet, error) {
	return queryBets(ctx, t.q,
		`SELECT `+betColumns+` FROM bets WHERE challenge_id = $1 AND result = 'pending' ORDER BY placed_at`,
		challengeID)
}

func (t *pgTx) HasPendingBetOnMatch(ctx context.Context, userID, matchID string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bets WHERE user_id = $1 AND match_id = $2 AND result = 'pending')`,
		userID, matchID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres.HasPendingBetOnMatch: %w", err)
	}
	return exists, nil
}

func (t *pgTx) Activity(ctx context.Context, challengeID string, since time.Time) (domain.Activity, error) {
	var a domain.Activity
	err := t.q.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT (placed_at AT TIME ZONE 'UTC')::date)
		FROM bets
		WHERE challenge_id = $1 AND result <> 'cancelled' AND placed_at >= $2`,
		challengeID, since.UTC(),
	).Scan(&a.PicksPlaced, &a.ActiveDays)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("postgres.Activity: %w", err)
	}
	return a, nil
}

func (t *pgTx) DailyLedger(ctx context.Context, challengeID string, day time.Time) (domain.DailyLedger, bool, error) {
	row := t.q.QueryRow(ctx, `SELECT `+ledgerColumns+`
		FROM challenge_daily WHERE challenge_id = $1 AND day = $2`, challengeID, domain.Day(day))
	l, err := scanLedger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyLedger{}, false, nil
	}
	if err != nil {
		return domain.DailyLedger{}, false, fmt.Errorf("postgres.DailyLedger: %w", err)
	}
	return l, true, nil
}

func (t *pgTx) SaveDailyLedger(ctx context.Context, l domain.DailyLedger) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO challenge_daily (challenge_id, day, day_start_balance, realized_pnl, bets_placed, bets_settled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (challenge_id, day) DO UPDATE SET
		    realized_pnl = EXCLUDED.realized_pnl,
		    bets_placed  = EXCLUDED.bets_placed,
		    bets_settled = EXCLUDED.bets_settled`,
		l.ChallengeID, domain.Day(l.Day), l.DayStartBalance.String(), l.RealizedPnL.String(),
		l.BetsPlaced, l.BetsSettled,
	)
	if err != nil {
		return fmt.Errorf("postgres.SaveDailyLedger: %w", err)
	}
	return nil
}

func getChallenge(ctx context.Context, q querier, id string, forUpdate bool) (domain.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanChallenge(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Challenge{}, fmt.Errorf("postgres.GetChallenge: %s: %w", id, domain.ErrChallengeNotFound)
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("postgres.GetChallenge: %s: %w", id, err)
	}
	return c, nil
}

func scanChallenge(r pgx.Row) (domain.Challenge, error) {
	var c domain.Challenge
	var status, failReason string
	var initial, current, phaseStart, target, maxDaily, maxTotal string
	if err := r.Scan(
		&c.ID, &c.UserID, &c.TierID, &c.Phase, &status,
		&initial, &current, &phaseStart, &target, &maxDaily, &maxTotal,
		&c.StartDate, &c.EndDate, &failReason, &c.CreatedAt, &c.UpdatedAt, &c.Version,
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
	c.StartDate = c.StartDate.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.EndDate = utcPtr(c.EndDate)
	return c, dc.err
}

func getBet(ctx context.Context, q querier, id string) (domain.Bet, error) {
	b, err := scanBet(q.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bet{}, fmt.Errorf("postgres.GetBet: %s: %w", id, domain.ErrBetNotFound)
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("postgres.GetBet: %s: %w", id, err)
	}
	return b, nil
}

func queryBets(ctx context.Context, q querier, query string, args ...any) ([]domain.Bet, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.queryBets: %w", err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres.queryBets: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBet(r pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var selection, result string
	var odds, stake, potential, balance, gain string
	var profitLoss *string
	if err := r.Scan(
		&b.ID, &b.ChallengeID, &b.UserID, &b.MatchID, &b.Sport, &b.HomeTeam, &b.AwayTeam,
		&b.EventDescription, &b.BetType, &selection, &odds, &stake, &potential, &balance,
		&result, &profitLoss, &gain, &b.CommenceTime, &b.PlacedAt, &b.ResolvedAt,
	); err != nil {
		return domain.Bet{}, err
	}

	var dc decoder
	b.Selection = domain.Selection(selection)
	b.Result = domain.BetResult(result)
	b.Odds = dc.money(odds)
	b.Stake = dc.money(stake)
	b.PotentialWin = dc.money(potential)
	b.BalanceAtPlacement = dc.money(balance)
	b.ProfitLoss = dc.nullMoney(profitLoss)
	b.GainClipped = dc.money(gain)
	b.CommenceTime = b.CommenceTime.UTC()
	b.PlacedAt = b.PlacedAt.UTC()
	b.ResolvedAt = utcPtr(b.ResolvedAt)
	return b, dc.err
}

func scanLedger(r pgx.Row) (domain.DailyLedger, error) {
	var l domain.DailyLedger
	var startBal, realized string
	if err := r.Scan(&l.ChallengeID, &l.Day, &startBal, &realized, &l.BetsPlaced, &l.BetsSettled); err != nil {
		return domain.DailyLedger{}, err
	}
	var dc decoder
	l.Day = domain.Day(l.Day)
	l.DayStartBalance = dc.money(startBal)
	l.RealizedPnL = dc.money(realized)
	return l, dc.err
}
