package domain

import "github.com/shopspring/decimal"

// Stake band as a fraction of the balance at placement time.
var (
	MinStakeRatio = decimal.RequireFromString("0.01")
	MaxStakeRatio = decimal.RequireFromString("0.05")
)

// Funded-account profit split offered when a challenge completes.
var (
	TraderShare   = decimal.RequireFromString("0.80")
	PlatformShare = decimal.RequireFromString("0.20")
)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount to cents (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsCents reports whether d has at most two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Percent returns part as a percentage of whole, rounded to two decimals.
// A zero whole yields zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(2)
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
