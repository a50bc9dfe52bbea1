package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, validate(Default()))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 15000.0, cfg.Trading.LiquidityFloor)
	assert.Equal(t, TimeDeltaAdditive, cfg.TimeDelta.Mode)
	assert.Equal(t, 30*time.Second, cfg.Phases.OpenCyclePause.Std())
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trading:
  liquidity_floor: 20000
  suggestion_weight: 6
time_delta:
  mode: multiplicative
  multiplier: 1.02
phases:
  open_cycle_pause: 10s
  ticker_pacing: 250ms
universe:
  symbols: [AAPL, MSFT]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20000.0, cfg.Trading.LiquidityFloor)
	assert.Equal(t, 6.0, cfg.Trading.SuggestionWeight)
	assert.Equal(t, TimeDeltaMultiplicative, cfg.TimeDelta.Mode)
	assert.Equal(t, 10*time.Second, cfg.Phases.OpenCyclePause.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.Phases.TickerPacing.Std())
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Universe.Symbols)
	// untouched keys keep their defaults
	assert.Equal(t, 0.1, cfg.Trading.ConcentrationLimit)
}

func TestLoadEnvironmentWinsForCredentials(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "key-from-env")
	t.Setenv("APCA_API_SECRET_KEY", "secret-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broker:
  api_key: key-from-file
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.Broker.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Broker.APISecret)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
phases:
  open_cycle_pause: soon
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown time delta mode", func(c *Config) { c.TimeDelta.Mode = "bogus" }},
		{"concentration above one", func(c *Config) { c.Trading.ConcentrationLimit = 1.5 }},
		{"zero starting cash", func(c *Config) { c.Simulation.StartingCash = 0 }},
		{"stop loss of one", func(c *Config) { c.Trading.StopLossPct = 1 }},
		{"inverted profit ratios", func(c *Config) { c.Points.Profit.RatioD1 = 1.2 }},
		{"inverted loss ratios", func(c *Config) { c.Points.Loss.RatioD2 = 0.99 }},
		{"zero pending retries", func(c *Config) { c.Broker.PendingMaxRetries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, validate(cfg))
		})
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("AMPYFIN_TEST_KEY", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"AMPYFIN_TEST_KEY=from-file\nAMPYFIN_TEST_OTHER=\"quoted\"\n# comment\n"), 0o600))

	require.NoError(t, loadDotEnv(path))

	assert.Equal(t, "from-env", os.Getenv("AMPYFIN_TEST_KEY"))
	assert.Equal(t, "quoted", os.Getenv("AMPYFIN_TEST_OTHER"))
	t.Cleanup(func() { os.Unsetenv("AMPYFIN_TEST_OTHER") })
}
