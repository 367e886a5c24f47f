// Package odds serves match odds to the rest of the service from a cache in
// front of an upstream provider. Upstream failures never surface as errors
// to callers: they get the last snapshot, stale if need be, or nothing.
package odds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/metrics"
	"github.com/alejandrodnm/propbet/internal/ports"
)

// DefaultTTL is how long a snapshot counts as fresh.
const DefaultTTL = 5 * time.Minute

// Config configures the gateway.
type Config struct {
	Sports []string
	TTL    time.Duration
	Now    func() time.Time
}

// Gateway implements ports.MatchSource on top of an OddsProvider and an
// OddsCache.
type Gateway struct {
	provider ports.OddsProvider
	cache    ports.OddsCache
	sports   []string
	ttl      time.Duration
	now      func() time.Time

	fetchMu sync.Mutex // one upstream fetch at a time

	mu           sync.Mutex
	blockedUntil time.Time
}

var _ ports.MatchSource = (*Gateway)(nil)

func NewGateway(provider ports.OddsProvider, cache ports.OddsCache, cfg Config) *Gateway {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gateway{
		provider: provider,
		cache:    cache,
		sports:   cfg.Sports,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
}

// Sports returns the configured sport keys.
func (g *Gateway) Sports() []string { return g.sports }

// Matches returns the upcoming matches of the given sports, or of every
// configured sport when none is given, ordered by kick-off.
func (g *Gateway) Matches(ctx context.Context, sportKeys []string) ([]domain.Match, error) {
	all, err := g.snapshot(ctx, sportKeys)
	if err != nil {
		return nil, err
	}
	now := g.now()
	upcoming := make([]domain.Match, 0, len(all))
	for _, m := range all {
		if !m.HasStarted(now) {
			upcoming = append(upcoming, m)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].CommenceTime.Before(upcoming[j].CommenceTime)
	})
	return upcoming, nil
}

// Match looks a match up by ID among the configured sports. Started matches
// are returned too so the caller can reject them explicitly.
func (g *Gateway) Match(ctx context.Context, matchID string) (domain.Match, error) {
	all, err := g.snapshot(ctx, nil)
	if err != nil {
		return domain.Match{}, err
	}
	for _, m := range all {
		if m.ID == matchID {
			return m, nil
		}
	}
	return domain.Match{}, fmt.Errorf("odds.Match: %s: %w", matchID, domain.ErrMatchNotFound)
}

// Refresh warms the cache for every configured sport.
func (g *Gateway) Refresh(ctx context.Context) error {
	_, err := g.snapshot(ctx, nil)
	return err
}

// BlockedUntil reports until when upstream calls are suspended after a
// rate limit.
func (g *Gateway) BlockedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedUntil
}

func (g *Gateway) snapshot(ctx context.Context, sportKeys []string) ([]domain.Match, error) {
	if len(sportKeys) == 0 {
		sportKeys = g.sports
	}
	if len(sportKeys) == 0 {
		return nil, errors.New("odds: no sports configured")
	}

	entries, stale := g.lookup(ctx, sportKeys)
	if len(stale) > 0 {
		g.fetchMu.Lock()
		// Another caller may have refreshed while we waited.
		var again map[string]ports.CachedOdds
		again, stale = g.lookup(ctx, stale)
		for k, v := range again {
			entries[k] = v
		}
		if len(stale) > 0 {
			for k, v := range g.fetch(ctx, stale) {
				entries[k] = v
			}
		}
		g.fetchMu.Unlock()
	}

	var out []domain.Match
	for _, sport := range sportKeys {
		e, ok := entries[sport]
		if !ok {
			metrics.OddsCache.WithLabelValues("miss").Inc()
			continue
		}
		if g.isFresh(e) {
			metrics.OddsCache.WithLabelValues("fresh").Inc()
		} else {
			metrics.OddsCache.WithLabelValues("stale").Inc()
			slog.Warn("serving stale odds", "sport", sport, "fetched_at", e.FetchedAt)
		}
		out = append(out, e.Matches...)
	}
	return out, nil
}

// lookup returns every cached entry and the sports whose entry is missing
// or older than the TTL.
func (g *Gateway) lookup(ctx context.Context, sportKeys []string) (map[string]ports.CachedOdds, []string) {
	entries := make(map[string]ports.CachedOdds, len(sportKeys))
	var stale []string
	for _, sport := range sportKeys {
		e, ok, err := g.cache.Get(ctx, sport)
		if err != nil {
			slog.Warn("odds cache read failed", "sport", sport, "err", err)
		}
		if ok {
			entries[sport] = e
		}
		if !ok || !g.isFresh(e) {
			stale = append(stale, sport)
		}
	}
	return entries, stale
}

func (g *Gateway) isFresh(e ports.CachedOdds) bool {
	return g.now().Sub(e.FetchedAt) < g.ttl
}

// fetch asks the provider for one sport at a time unless a rate limit is
// still in force, and stores every sport that answered, empty or not. A
// failing sport keeps its previous entry; a rate limit stops the loop.
func (g *Gateway) fetch(ctx context.Context, sports []string) map[string]ports.CachedOdds {
	now := g.now()
	if until := g.BlockedUntil(); now.Before(until) {
		metrics.OddsFetches.WithLabelValues("skipped").Inc()
		slog.Debug("odds fetch skipped while rate limited", "until", until)
		return nil
	}

	out := make(map[string]ports.CachedOdds, len(sports))
	total := 0
	for _, sport := range sports {
		matches, err := g.provider.FetchOdds(ctx, []string{sport})
		if err != nil {
			var rl *domain.RateLimitedError
			if errors.As(err, &rl) {
				g.mu.Lock()
				g.blockedUntil = now.Add(rl.RetryAfter)
				g.mu.Unlock()
				metrics.OddsFetches.WithLabelValues("rate_limited").Inc()
				slog.Warn("odds upstream rate limited", "retry_after", rl.RetryAfter, "sport", sport)
				break
			}
			metrics.OddsFetches.WithLabelValues("error").Inc()
			slog.Warn("odds fetch failed", "sport", sport, "err", err)
			continue
		}
		metrics.OddsFetches.WithLabelValues("ok").Inc()

		entry := ports.CachedOdds{SportKey: sport, FetchedAt: now}
		for _, m := range matches {
			if m.SportKey == sport {
				entry.Matches = append(entry.Matches, m)
			}
		}
		if err := g.cache.Set(ctx, entry); err != nil {
			slog.Warn("odds cache write failed", "sport", sport, "err", err)
		}
		out[sport] = entry
		total += len(entry.Matches)
	}
	if len(out) > 0 {
		slog.Info("odds refreshed", "sports", len(out), "of", len(sports), "matches", total)
	}
	return out
}
