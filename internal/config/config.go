package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"PERSPECTIVES_HTTP_ADDR" envDefault:":8080"`

	// DB
	Env    string `env:"PERSPECTIVES_ENV" envDefault:"dev"` // "dev" | "prod"
	DBPath string `env:"PERSPECTIVES_DB_PATH" envDefault:"./data/perspectives.db"`

	// TokenSecret signs access/write cookies.  WebhookSecret verifies
	// inbound payment-provider deliveries.  AdminToken is the server-held
	// credential for the elevated write path; empty disables that path.
	TokenSecret   string `env:"PERSPECTIVES_TOKEN_SECRET"`
	WebhookSecret string `env:"PERSPECTIVES_WEBHOOK_SECRET"`
	AdminToken    string `env:"PERSPECTIVES_ADMIN_TOKEN"`

	// Webhook dedup retention
	EventRetentionDays int `env:"PERSPECTIVES_EVENT_RETENTION_DAYS" envDefault:"30"` // 0 = keep forever
	PruneIntervalHours int `env:"PERSPECTIVES_PRUNE_INTERVAL_HOURS" envDefault:"6"`
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}

	if cfg.EventRetentionDays < 0 {
		cfg.EventRetentionDays = 0
	}
	if cfg.PruneIntervalHours < 0 {
		cfg.PruneIntervalHours = 0
	}

	return cfg, nil
}
