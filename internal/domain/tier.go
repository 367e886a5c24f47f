package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is the immutable rule set of a challenge product.
type Tier struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	InitialBalance     decimal.Decimal `json:"initial_balance"`
	TargetProfitPhase1 decimal.Decimal `json:"target_profit_phase1"`
	TargetProfitPhase2 decimal.Decimal `json:"target_profit_phase2"`
	MaxDailyLoss       decimal.Decimal `json:"max_daily_loss"`
	MaxTotalLoss       decimal.Decimal `json:"max_total_loss"`
	MaxDailyGain       decimal.Decimal `json:"max_daily_gain"`
	MinPicks           int             `json:"min_picks"`
	MinActiveDays      int             `json:"min_active_days"`
	PhaseDurationDays  int             `json:"phase_duration_days"`
	IsDemo             bool            `json:"is_demo"`
	PromoOnSuccess     bool            `json:"promo_on_success"`
}

// HasPhase2 reports whether the tier runs a second phase after phase 1.
func (t Tier) HasPhase2() bool {
	return t.TargetProfitPhase2.IsPositive()
}

// TargetFor returns the profit target of the given phase.
func (t Tier) TargetFor(phase int) decimal.Decimal {
	if phase == 2 {
		return t.TargetProfitPhase2
	}
	return t.TargetProfitPhase1
}

// PhaseDuration is the wall-clock length of one phase.
func (t Tier) PhaseDuration() time.Duration {
	return time.Duration(t.PhaseDurationDays) * 24 * time.Hour
}

// Validate rejects tiers with missing or inconsistent fields. A partial tier
// is a configuration error and must be caught when the catalog is built.
func (t Tier) Validate() error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if t.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if t.Price.IsNegative() {
		errs = append(errs, errors.New("price must not be negative"))
	}
	positive := []struct {
		name string
		v    decimal.Decimal
	}{
		{"initial_balance", t.InitialBalance},
		{"target_profit_phase1", t.TargetProfitPhase1},
		{"max_daily_loss", t.MaxDailyLoss},
		{"max_total_loss", t.MaxTotalLoss},
		{"max_daily_gain", t.MaxDailyGain},
	}
	for _, p := range positive {
		if !p.v.IsPositive() {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if t.TargetProfitPhase2.IsNegative() {
		errs = append(errs, errors.New("target_profit_phase2 must not be negative"))
	}
	if t.MinPicks <= 0 {
		errs = append(errs, errors.New("min_picks must be positive"))
	}
	if t.MinActiveDays <= 0 {
		errs = append(errs, errors.New("min_active_days must be positive"))
	}
	if t.PhaseDurationDays <= 0 {
		errs = append(errs, errors.New("phase_duration_days must be positive"))
	}
	if t.MinActiveDays > t.PhaseDurationDays && t.PhaseDurationDays > 0 {
		errs = append(errs, errors.New("min_active_days exceeds phase_duration_days"))
	}
	if t.MaxDailyLoss.GreaterThan(t.MaxTotalLoss) && t.MaxTotalLoss.IsPositive() {
		errs = append(errs, errors.New("max_daily_loss exceeds max_total_loss"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("tier %q: %w", t.ID, errors.Join(errs...))
	}
	return nil
}
