// Package config loads runtime settings from the environment (optionally
// a .env file), maps them into a struct and validates required values so
// the service fails fast on bad config.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	// Side-effect import: loads a .env file into the process environment
	// before env vars are read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration of the ledger service. Env vars use the
// LEDGER_ prefix: LEDGER_ADDR, LEDGER_DATABASE_URL, LEDGER_CURRENCY,
// LEDGER_LOG_LEVEL, LEDGER_LOG_FORMAT.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `koanf:"addr" validate:"required"`
	// DatabaseURL selects the Postgres store when set; empty falls back to
	// the in-memory store.
	DatabaseURL string `koanf:"database_url"`
	// Currency is the ISO-4217 code used to render monetary balances.
	Currency string `koanf:"currency" validate:"required,iso4217"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or text.
	LogFormat string `koanf:"log_format" validate:"oneof=json text"`
}

// Load reads, defaults and validates the configuration.
func Load() (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider("LEDGER_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LEDGER_"))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		Addr:      ":8080",
		Currency:  "USD",
		LogLevel:  "info",
		LogFormat: "json",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
