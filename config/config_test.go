package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderestimate/services"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 2, cfg.ReconcileWorkers)
	assert.Equal(t, 3, cfg.ReconcileMaxAttempts)
	assert.True(t, cfg.SeedDemo)
	assert.Zero(t, cfg.MarkupWorkPercent)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RECONCILE_WORKERS", "4")
	t.Setenv("RECONCILE_BACKOFF_MS", "50")
	t.Setenv("MARKUP_WORK_PERCENT", "12.5")
	t.Setenv("SEED_DEMO", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ReconcileWorkers)
	assert.False(t, cfg.SeedDemo)
	assert.Equal(t, 50*time.Millisecond, cfg.ReconcilerConfig().Backoff)

	policy := cfg.MarkupPolicy()
	got := policy.Apply(decimal.NewFromInt(200), services.CategoryWork)
	assert.Equal(t, "225", got.String())
}

func TestSetupLogger_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	(&Config{Env: "production", LogLevel: "debug"}).SetupLogger()
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	(&Config{Env: "production", LogLevel: "nonsense"}).SetupLogger()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
