package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/propbet/config"
	"github.com/alejandrodnm/propbet/internal/adapters/httpapi"
	"github.com/alejandrodnm/propbet/internal/adapters/postgres"
	"github.com/alejandrodnm/propbet/internal/application/sweeper"
	"github.com/alejandrodnm/propbet/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// runServe starts the HTTP API, the metrics endpoint and the sweeper, and
// blocks until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Server.MetricsAddr != "" {
		msrv := metrics.StartServer(cfg.Server.MetricsAddr, a.store.Ping)
		defer shutdown(msrv)
		slog.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
	}

	api := httpapi.New(a.service, a.gateway, cfg.Server.OperatorToken)
	srv := httpapi.NewServer(cfg.Server.HTTPAddr, api.Router())
	errc := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	sw := sweeper.New(sweeper.Config{Interval: cfg.SweepInterval()}, a.service, a.gateway)
	stopSweeper := runInBackground(ctx, "sweeper", sw)
	defer stopSweeper()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}
	shutdown(srv)
	return nil
}

func runSweep(ctx context.Context, cfg *config.Config, once bool) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	return sweeper.New(sweeper.Config{Interval: cfg.SweepInterval(), Once: once}, a.service, a.gateway).Run(ctx)
}

type runner interface {
	Run(ctx context.Context) error
}

// runInBackground starts r in its own goroutine. The returned stop cancels
// r and blocks until Run has returned, so the dependencies r uses can be
// closed afterwards.
func runInBackground(ctx context.Context, name string, r runner) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil {
			slog.Error("background task exited", "task", name, "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// runMigrate applies the schema. Postgres goes through the versioned
// migrations; SQLite only knows the current schema.
func runMigrate(ctx context.Context, cfg *config.Config, down int) error {
	if cfg.Storage.Driver == "postgres" {
		if down > 0 {
			slog.Info("rolling back migrations", "steps", down)
			return postgres.MigrateDown(cfg.Storage.DSN, down)
		}
		slog.Info("applying migrations")
		return postgres.MigrateUp(cfg.Storage.DSN)
	}
	if down > 0 {
		return errors.New("rollback is only supported on postgres")
	}
	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("sqlite schema ready", "dsn", cfg.Storage.DSN)
	return nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown", "addr", srv.Addr, "err", err)
	}
}
