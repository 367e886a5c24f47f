// Package oddscache holds the last odds snapshot per sport, either in
// process memory or in Redis when several instances share one quota.
package oddscache

import (
	"context"
	"sync"

	"github.com/alejandrodnm/propbet/internal/ports"
)

// Memory is a process-local ports.OddsCache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]ports.CachedOdds
}

var _ ports.OddsCache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]ports.CachedOdds)}
}

func (m *Memory) Get(_ context.Context, sportKey string) (ports.CachedOdds, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[sportKey]
	return e, ok, nil
}

func (m *Memory) Set(_ context.Context, odds ports.CachedOdds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[odds.SportKey] = odds
	return nil
}
