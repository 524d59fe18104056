// Package config loads runtime settings from environment variables and an
// optional .env file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"tenderestimate/services"
)

// Config holds all runtime configuration. Every field maps 1:1 to an env var.
type Config struct {
	Env      string `mapstructure:"APP_ENV"` // development | production
	LogLevel string `mapstructure:"LOG_LEVEL"`
	SeedDemo bool   `mapstructure:"SEED_DEMO"`

	// Background reconciliation
	ReconcileWorkers     int `mapstructure:"RECONCILE_WORKERS"`
	ReconcileQueueSize   int `mapstructure:"RECONCILE_QUEUE_SIZE"`
	ReconcileMaxAttempts int `mapstructure:"RECONCILE_MAX_ATTEMPTS"`
	ReconcileBackoffMS   int `mapstructure:"RECONCILE_BACKOFF_MS"`

	// Markup policy, in percent per category
	MarkupWorkPercent              float64 `mapstructure:"MARKUP_WORK_PERCENT"`
	MarkupSubWorkPercent           float64 `mapstructure:"MARKUP_SUB_WORK_PERCENT"`
	MarkupMainMaterialPercent      float64 `mapstructure:"MARKUP_MAIN_MATERIAL_PERCENT"`
	MarkupAuxiliaryMaterialPercent float64 `mapstructure:"MARKUP_AUXILIARY_MATERIAL_PERCENT"`
	MarkupSubMaterialPercent       float64 `mapstructure:"MARKUP_SUB_MATERIAL_PERCENT"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEED_DEMO", true)
	v.SetDefault("RECONCILE_WORKERS", 2)
	v.SetDefault("RECONCILE_QUEUE_SIZE", 64)
	v.SetDefault("RECONCILE_MAX_ATTEMPTS", 3)
	v.SetDefault("RECONCILE_BACKOFF_MS", 200)
	// markup percentages are set per tender office; zero passes costs through
	v.SetDefault("MARKUP_WORK_PERCENT", 0)
	v.SetDefault("MARKUP_SUB_WORK_PERCENT", 0)
	v.SetDefault("MARKUP_MAIN_MATERIAL_PERCENT", 0)
	v.SetDefault("MARKUP_AUXILIARY_MATERIAL_PERCENT", 0)
	v.SetDefault("MARKUP_SUB_MATERIAL_PERCENT", 0)

	// Optional .env file for local development; a missing file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MarkupPolicy builds the percentage policy used for commercial totals.
func (c *Config) MarkupPolicy() services.PercentPolicy {
	return services.PercentPolicy{
		services.CategoryWork:              decimal.NewFromFloat(c.MarkupWorkPercent),
		services.CategorySubWork:           decimal.NewFromFloat(c.MarkupSubWorkPercent),
		services.CategoryMainMaterial:      decimal.NewFromFloat(c.MarkupMainMaterialPercent),
		services.CategoryAuxiliaryMaterial: decimal.NewFromFloat(c.MarkupAuxiliaryMaterialPercent),
		services.CategorySubMaterial:       decimal.NewFromFloat(c.MarkupSubMaterialPercent),
	}
}

func (c *Config) ReconcilerConfig() services.ReconcilerConfig {
	return services.ReconcilerConfig{
		Workers:     c.ReconcileWorkers,
		QueueSize:   c.ReconcileQueueSize,
		MaxAttempts: c.ReconcileMaxAttempts,
		Backoff:     time.Duration(c.ReconcileBackoffMS) * time.Millisecond,
	}
}

// SetupLogger configures the global zerolog logger: console output in
// development, JSON otherwise.
func (c *Config) SetupLogger() {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
