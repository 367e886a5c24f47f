package domain

import "github.com/shopspring/decimal"

// StakeBounds returns the inclusive stake band for a balance.
func StakeBounds(balance decimal.Decimal) (lo, hi decimal.Decimal) {
	return balance.Mul(MinStakeRatio), balance.Mul(MaxStakeRatio)
}

// ValidateStake checks a proposed stake against the balance at the moment of
// evaluation. It returns nil or a *StakeError wrapping ErrInvalidAmount,
// ErrBelowMinimum or ErrAboveMaximum. Bounds are compared exactly; the error
// carries them rounded inward to cents for display.
func ValidateStake(balance, stake decimal.Decimal) error {
	lo, hi := StakeBounds(balance)
	var reason error
	switch {
	case !stake.IsPositive():
		reason = ErrInvalidAmount
	case stake.LessThan(lo):
		reason = ErrBelowMinimum
	case stake.GreaterThan(hi):
		reason = ErrAboveMaximum
	default:
		return nil
	}
	return &StakeError{Reason: reason, Stake: stake, Min: lo.RoundCeil(2), Max: hi.RoundFloor(2)}
}
