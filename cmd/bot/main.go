// Package main is the entry point for the Meta Ads statistics bot.
//
// Its only job is wiring: read configuration, build the dependency chain
// (database, cipher, Meta client, session engine, transports), and run the
// two long-lived loops until a shutdown signal arrives. All behaviour lives
// in the internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vladkruhlyk/git-bot.statistic/internal/bot"
	"github.com/vladkruhlyk/git-bot.statistic/internal/config"
	"github.com/vladkruhlyk/git-bot.statistic/internal/meta"
	sqliteRepo "github.com/vladkruhlyk/git-bot.statistic/internal/repository/sqlite"
	"github.com/vladkruhlyk/git-bot.statistic/internal/secret"
	"github.com/vladkruhlyk/git-bot.statistic/internal/server"
	"github.com/vladkruhlyk/git-bot.statistic/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	// The data directory may not exist on first start.
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	db, err := sqliteRepo.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cipher := secret.New(cfg.EncryptionKey)
	adsAPI := meta.NewClient(cfg.GraphAPIVersion, logger)
	engine := session.New(db, adsAPI, cipher, logger)

	tgBot, err := bot.New(cfg.TelegramBotToken, engine, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := server.New(cfg.HTTPAddr, db, logger)
	go func() {
		if err := health.Run(ctx); err != nil {
			logger.Error("health server stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("bot starting",
		slog.String("database", cfg.DatabasePath),
		slog.String("graph_version", cfg.GraphAPIVersion),
	)

	// Blocks until the context is cancelled by a signal.
	tgBot.Run(ctx)

	logger.Info("bot stopped")
	return nil
}
