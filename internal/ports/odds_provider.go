package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
)

// OddsProvider fetches upcoming matches with head-to-head prices.
type OddsProvider interface {
	// FetchOdds returns the matches of the given sports. Failures are
	// *domain.RateLimitedError or *domain.UpstreamError.
	FetchOdds(ctx context.Context, sportKeys []string) ([]domain.Match, error)
}

// CachedOdds is one sport's snapshot as stored in an OddsCache.
type CachedOdds struct {
	SportKey  string         `json:"sport_key"`
	Matches   []domain.Match `json:"matches"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// OddsCache stores the last successful snapshot per sport. Entries are kept
// past their freshness window so they can be served stale.
type OddsCache interface {
	Get(ctx context.Context, sportKey string) (CachedOdds, bool, error)
	Set(ctx context.Context, odds CachedOdds) error
}

// MatchSource resolves a match by ID for bet placement.
type MatchSource interface {
	Match(ctx context.Context, matchID string) (domain.Match, error)
}
