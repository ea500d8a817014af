// Package config loads process configuration from the environment.
//
// A .env file in the working directory is loaded first when present, which
// keeps local development to a single file; real deployments set the
// variables directly and never ship a .env.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/vladkruhlyk/git-bot.statistic/internal/meta"
)

// Config holds everything the process needs to start. Only the two secrets
// are mandatory; everything else has a working default.
type Config struct {
	// TelegramBotToken authenticates the bot against the Telegram Bot API.
	TelegramBotToken string

	// EncryptionKey is the passphrase protecting stored Meta tokens at rest.
	// Changing it orphans every stored token; users just reconnect.
	EncryptionKey string

	// DatabasePath is the SQLite database file.
	DatabasePath string

	// GraphAPIVersion is the Meta Graph API version segment, e.g. "v21.0".
	GraphAPIVersion string

	// HTTPAddr is the listen address of the health endpoint.
	HTTPAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel slog.Level
}

// Load reads the configuration, applying defaults and validating the
// required secrets. The .env load is best-effort: a missing file is fine.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		EncryptionKey:    os.Getenv("ENCRYPTION_KEY"),
		DatabasePath:     envOr("DATABASE_PATH", "data/bot.sqlite"),
		GraphAPIVersion:  envOr("META_GRAPH_API_VERSION", meta.DefaultGraphVersion),
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
	}

	if cfg.TelegramBotToken == "" {
		return Config{}, fmt.Errorf("config: TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.EncryptionKey == "" {
		return Config{}, fmt.Errorf("config: ENCRYPTION_KEY is required")
	}

	level, err := parseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
}
