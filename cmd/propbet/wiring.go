package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/propbet/config"
	"github.com/alejandrodnm/propbet/internal/adapters/events"
	"github.com/alejandrodnm/propbet/internal/adapters/oddsapi"
	"github.com/alejandrodnm/propbet/internal/adapters/oddscache"
	"github.com/alejandrodnm/propbet/internal/adapters/postgres"
	"github.com/alejandrodnm/propbet/internal/adapters/storage"
	"github.com/alejandrodnm/propbet/internal/application/challenge"
	"github.com/alejandrodnm/propbet/internal/application/odds"
	"github.com/alejandrodnm/propbet/internal/ports"
)

// store is what both storage backends provide.
type store interface {
	ports.Store
	ports.LedgerReader
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store, error) {
	switch cfg.Driver {
	case "postgres":
		s, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.ApplySchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return storage.NewSQLiteStorage(cfg.DSN)
	}
}

// app holds every long-lived dependency of the service.
type app struct {
	store   store
	gateway *odds.Gateway
	service *challenge.Service
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &app{store: st, closers: []func() error{st.Close}}

	var cache ports.OddsCache
	switch cfg.Odds.Cache {
	case "redis":
		rdb, err := oddscache.ConnectRedis(ctx, cfg.Odds.RedisAddr)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rc := oddscache.NewRedis(rdb, oddscache.DefaultRetention)
		a.closers = append(a.closers, rc.Close)
		cache = rc
	default:
		cache = oddscache.NewMemory()
	}

	if cfg.Odds.APIKey == "" {
		slog.Warn("odds.api_key is empty; upstream calls will be rejected")
	}
	client := oddsapi.NewClient(oddsapi.Config{
		BaseURL:        cfg.Odds.BaseURL,
		APIKey:         cfg.Odds.APIKey,
		Regions:        cfg.Odds.Regions,
		RequestsPerSec: cfg.Odds.RequestsPerSec,
	})
	a.gateway = odds.NewGateway(client, cache, odds.Config{
		Sports: cfg.Odds.Sports,
		TTL:    cfg.CacheTTL(),
	})

	var publisher ports.EventPublisher
	if cfg.Events.KafkaBrokers != "" {
		publisher = events.NewKafkaPublisher(events.NewWriter(cfg.Events.KafkaBrokers, cfg.Events.Topic))
		slog.Info("publishing events to kafka", "brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.Topic)
	} else {
		publisher = events.NewLogPublisher(nil)
	}
	a.closers = append(a.closers, publisher.Close)

	a.service = challenge.New(challenge.Config{SweepWorkers: cfg.Sweeper.Workers}, st, catalog, a.gateway, publisher)
	return a, nil
}

// close releases dependencies in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
}
