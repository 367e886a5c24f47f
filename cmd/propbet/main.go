package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/propbet/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "serve", "serve | sweep | status | migrate")
	once := flag.Bool("once", false, "sweep mode: run one sweep and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "status mode: print full table (default: compact 1-line)")
	challengeID := flag.String("challenge", "", "status mode: show one challenge and its daily ledger")
	userID := flag.String("user", "", "status mode: only this user's challenges")
	down := flag.Int("down", 0, "migrate mode: roll back N migrations instead of migrating up")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("propbet starting",
		"config", *configPath,
		"mode", *mode,
		"storage", cfg.Storage.Driver,
		"sports", cfg.Odds.Sports,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "serve":
		err = runServe(ctx, cfg)
	case "sweep":
		err = runSweep(ctx, cfg, *once)
	case "status":
		err = runStatus(ctx, cfg, statusOptions{table: *table, challengeID: *challengeID, userID: *userID})
	case "migrate":
		err = runMigrate(ctx, cfg, *down)
	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("propbet exited with error", "mode", *mode, "err", err)
		os.Exit(1)
	}

	slog.Info("propbet stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
