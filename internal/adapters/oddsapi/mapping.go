package oddsapi

import (
	"strings"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/shopspring/decimal"
)

const marketH2H = "h2h"

// mapEvents converts the DTOs to domain.Match. Events without a usable
// head-to-head price from any bookmaker are dropped.
func mapEvents(events []eventDTO, fetchedAt time.Time) []domain.Match {
	out := make([]domain.Match, 0, len(events))
	for _, ev := range events {
		if m, ok := mapEvent(ev, fetchedAt); ok {
			out = append(out, m)
		}
	}
	return out
}

func mapEvent(ev eventDTO, fetchedAt time.Time) (domain.Match, bool) {
	for _, bm := range ev.Bookmakers {
		odds, ok := h2hOdds(bm, ev.HomeTeam, ev.AwayTeam)
		if !ok {
			continue
		}
		updated := bm.LastUpdate
		if updated.IsZero() {
			updated = fetchedAt
		}
		return domain.Match{
			ID:           ev.ID,
			SportKey:     ev.SportKey,
			SportTitle:   ev.SportTitle,
			HomeTeam:     ev.HomeTeam,
			AwayTeam:     ev.AwayTeam,
			CommenceTime: ev.CommenceTime.UTC(),
			Odds:         odds,
			Bookmaker:    bm.Key,
			UpdatedAt:    updated.UTC(),
		}, true
	}
	return domain.Match{}, false
}

// h2hOdds extracts home/draw/away prices. Home and away are required.
func h2hOdds(bm bookmakerDTO, home, away string) (domain.Odds, bool) {
	one := decimal.NewFromInt(1)
	for _, mkt := range bm.Markets {
		if mkt.Key != marketH2H {
			continue
		}
		var odds domain.Odds
		for _, o := range mkt.Outcomes {
			if o.Price.LessThan(one) {
				continue
			}
			switch {
			case o.Name == home:
				odds.Home = o.Price
			case o.Name == away:
				odds.Away = o.Price
			case strings.EqualFold(o.Name, "draw"):
				odds.Draw = o.Price
			}
		}
		if odds.Home.IsZero() || odds.Away.IsZero() {
			return domain.Odds{}, false
		}
		return odds, true
	}
	return domain.Odds{}, false
}
