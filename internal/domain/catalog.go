package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Catalog is the read-only set of tiers a challenge can be bought from.
type Catalog struct {
	tiers map[string]Tier
	order []string
}

// NewCatalog validates every tier and indexes them by ID.
func NewCatalog(tiers []Tier) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("domain.NewCatalog: no tiers configured")
	}
	c := &Catalog{tiers: make(map[string]Tier, len(tiers))}
	for _, t := range tiers {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("domain.NewCatalog: %w", err)
		}
		if _, dup := c.tiers[t.ID]; dup {
			return nil, fmt.Errorf("domain.NewCatalog: duplicate tier %q", t.ID)
		}
		c.tiers[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	return c, nil
}

// DefaultCatalog returns the published tiers.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the tier with the given ID or ErrTierNotFound.
func (c *Catalog) Get(id string) (Tier, error) {
	t, ok := c.tiers[id]
	if !ok {
		return Tier{}, fmt.Errorf("tier %q: %w", id, ErrTierNotFound)
	}
	return t, nil
}

// List returns the tiers sorted by price, then by ID.
func (c *Catalog) List() []Tier {
	out := make([]Tier, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tiers[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DefaultTiers are the published rules. Percentages are expressed as amounts
// of the initial balance.
func DefaultTiers() []Tier {
	m := decimal.RequireFromString
	return []Tier{
		{
			ID: "demo", Name: "Demo Challenge", Price: decimal.Zero,
			InitialBalance: m("100"), TargetProfitPhase1: m("10"), TargetProfitPhase2: decimal.Zero,
			MaxDailyLoss: m("15"), MaxTotalLoss: m("15"), MaxDailyGain: m("20"),
			MinPicks: 5, MinActiveDays: 3, PhaseDurationDays: 7,
			IsDemo: true, PromoOnSuccess: true,
		},
		{
			ID: "1k", Name: "1K Challenge", Price: m("49.99"),
			InitialBalance: m("1000"), TargetProfitPhase1: m("250"), TargetProfitPhase2: m("300"),
			MaxDailyLoss: m("50"), MaxTotalLoss: m("100"), MaxDailyGain: m("80"),
			MinPicks: 20, MinActiveDays: 15, PhaseDurationDays: 31,
		},
		{
			ID: "2.5k", Name: "2.5K Challenge", Price: m("99.99"),
			InitialBalance: m("2500"), TargetProfitPhase1: m("625"), TargetProfitPhase2: m("750"),
			MaxDailyLoss: m("125"), MaxTotalLoss: m("250"), MaxDailyGain: m("200"),
			MinPicks: 20, MinActiveDays: 15, PhaseDurationDays: 31,
		},
		{
			ID: "5k", Name: "5K Challenge", Price: m("179.99"),
			InitialBalance: m("5000"), TargetProfitPhase1: m("1250"), TargetProfitPhase2: m("1500"),
			MaxDailyLoss: m("250"), MaxTotalLoss: m("500"), MaxDailyGain: m("400"),
			MinPicks: 20, MinActiveDays: 15, PhaseDurationDays: 31,
		},
	}
}
