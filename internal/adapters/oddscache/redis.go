package oddscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/propbet/internal/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention keeps snapshots long enough to be served stale through
// a long upstream outage.
const DefaultRetention = 24 * time.Hour

// Redis is a ports.OddsCache shared between instances.
type Redis struct {
	rdb       *redis.Client
	retention time.Duration
}

var _ ports.OddsCache = (*Redis)(nil)

// ConnectRedis opens a client and checks it answers PING.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("oddscache.ConnectRedis: %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedis wraps a client. A zero retention uses DefaultRetention.
func NewRedis(rdb *redis.Client, retention time.Duration) *Redis {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Redis{rdb: rdb, retention: retention}
}

func keySport(sportKey string) string { return "odds:sport:" + sportKey }

func (c *Redis) Get(ctx context.Context, sportKey string) (ports.CachedOdds, bool, error) {
	b, err := c.rdb.Get(ctx, keySport(sportKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.CachedOdds{}, false, nil
	}
	if err != nil {
		return ports.CachedOdds{}, false, fmt.Errorf("oddscache.Get: %s: %w", sportKey, err)
	}
	var out ports.CachedOdds
	if err := json.Unmarshal(b, &out); err != nil {
		return ports.CachedOdds{}, false, fmt.Errorf("oddscache.Get: decode %s: %w", sportKey, err)
	}
	return out, true, nil
}

func (c *Redis) Set(ctx context.Context, odds ports.CachedOdds) error {
	b, err := json.Marshal(odds)
	if err != nil {
		return fmt.Errorf("oddscache.Set: encode %s: %w", odds.SportKey, err)
	}
	if err := c.rdb.Set(ctx, keySport(odds.SportKey), b, c.retention).Err(); err != nil {
		return fmt.Errorf("oddscache.Set: %s: %w", odds.SportKey, err)
	}
	return nil
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}
