// Package config loads engine configuration from a YAML file with
// environment overrides for credentials. Every tunable the decision engine
// consumes lives here: point tier constants, liquidity and concentration
// limits, time-delta settings, pacing delays and retry caps.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML values like "30s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type TimeDeltaMode string

const (
	TimeDeltaAdditive       TimeDeltaMode = "additive"
	TimeDeltaMultiplicative TimeDeltaMode = "multiplicative"
	TimeDeltaBalanced       TimeDeltaMode = "balanced"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Broker     BrokerConfig     `yaml:"broker"`
	Trading    TradingConfig    `yaml:"trading"`
	Simulation SimulationConfig `yaml:"simulation"`
	Points     PointsConfig     `yaml:"points"`
	TimeDelta  TimeDeltaConfig  `yaml:"time_delta"`
	Universe   UniverseConfig   `yaml:"universe"`
	Phases     PhasesConfig     `yaml:"phases"`
	Fetch      FetchConfig      `yaml:"fetch"`
}

type AppConfig struct {
	LogLevel      string `yaml:"log_level"`
	ConsoleLog    bool   `yaml:"console_log"`
	LedgerPath    string `yaml:"ledger_path"`
	JournalPath   string `yaml:"journal_path"`
	MetricsListen string `yaml:"metrics_listen"`
}

type BrokerConfig struct {
	APIKey            string   `yaml:"api_key"`
	APISecret         string   `yaml:"api_secret"`
	BaseURL           string   `yaml:"base_url"`
	OrderPacing       Duration `yaml:"order_pacing"`
	PendingMaxRetries int      `yaml:"pending_max_retries"`
}

type TradingConfig struct {
	LiquidityFloor     float64  `yaml:"liquidity_floor"`
	ConcentrationLimit float64  `yaml:"concentration_limit"`
	SuggestionWeight   float64  `yaml:"suggestion_weight"`
	StopLossPct        float64  `yaml:"stop_loss_pct"`
	TakeProfitPct      float64  `yaml:"take_profit_pct"`
	Benchmarks         []string `yaml:"benchmarks"`
}

type SimulationConfig struct {
	StartingCash       float64  `yaml:"starting_cash"`
	LiquidityFloor     float64  `yaml:"liquidity_floor"`
	ConcentrationLimit float64  `yaml:"concentration_limit"`
	SentinelStrategies []string `yaml:"sentinel_strategies"`
}

// TierConfig holds the bands for point awards. RatioD1/RatioD2 split
// price-change ratios into three bands; TierD1..TierElse are the per-band
// multipliers applied to the global time delta.
type TierConfig struct {
	RatioD1  float64 `yaml:"ratio_d1"`
	RatioD2  float64 `yaml:"ratio_d2"`
	TierD1   float64 `yaml:"tier_d1"`
	TierD2   float64 `yaml:"tier_d2"`
	TierElse float64 `yaml:"tier_else"`
}

type PointsConfig struct {
	Profit TierConfig `yaml:"profit"`
	Loss   TierConfig `yaml:"loss"`
}

type TimeDeltaConfig struct {
	Mode       TimeDeltaMode `yaml:"mode"`
	Increment  float64       `yaml:"increment"`
	Multiplier float64       `yaml:"multiplier"`
	Balanced   float64       `yaml:"balanced"`
}

type UniverseConfig struct {
	SourceURL string   `yaml:"source_url"`
	APIKey    string   `yaml:"api_key"`
	Symbols   []string `yaml:"symbols"`
}

type PhasesConfig struct {
	OpenCyclePause   Duration `yaml:"open_cycle_pause"`
	IdlePause        Duration `yaml:"idle_pause"`
	ErrorCooldown    Duration `yaml:"error_cooldown"`
	TickerPacing     Duration `yaml:"ticker_pacing"`
	EarlyHoursWindow Duration `yaml:"early_hours_window"`
}

type FetchConfig struct {
	Attempts int      `yaml:"attempts"`
	Backoff  Duration `yaml:"backoff"`
}

func Default() Config {
	return Config{
		App: AppConfig{
			LogLevel:    "info",
			ConsoleLog:  true,
			LedgerPath:  "ampyfin.db",
			JournalPath: "decisions.ndjson",
		},
		Broker: BrokerConfig{
			BaseURL:           "https://paper-api.alpaca.markets",
			OrderPacing:       Duration(5 * time.Second),
			PendingMaxRetries: 10,
		},
		Trading: TradingConfig{
			LiquidityFloor:     15000,
			ConcentrationLimit: 0.1,
			SuggestionWeight:   4,
			StopLossPct:        0.03,
			TakeProfitPct:      0.05,
			Benchmarks:         []string{"QQQ", "SPY"},
		},
		Simulation: SimulationConfig{
			StartingCash:       50000,
			LiquidityFloor:     10000,
			ConcentrationLimit: 0.15,
			SentinelStrategies: []string{"test", "test_strategy"},
		},
		Points: PointsConfig{
			Profit: TierConfig{RatioD1: 1.05, RatioD2: 1.1, TierD1: 1, TierD2: 0.7, TierElse: 0.4},
			Loss:   TierConfig{RatioD1: 0.95, RatioD2: 0.9, TierD1: 0.4, TierD2: 0.7, TierElse: 1},
		},
		TimeDelta: TimeDeltaConfig{
			Mode:       TimeDeltaAdditive,
			Increment:  0.01,
			Multiplier: 1.01,
			Balanced:   0.01,
		},
		Universe: UniverseConfig{
			SourceURL: "https://financialmodelingprep.com/api/v3/nasdaq_constituent",
		},
		Phases: PhasesConfig{
			OpenCyclePause:   Duration(30 * time.Second),
			IdlePause:        Duration(60 * time.Second),
			ErrorCooldown:    Duration(60 * time.Second),
			TickerPacing:     Duration(500 * time.Millisecond),
			EarlyHoursWindow: Duration(5*time.Hour + 30*time.Minute),
		},
		Fetch: FetchConfig{
			Attempts: 3,
			Backoff:  Duration(10 * time.Second),
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides for credentials. A missing file is fine: defaults
// plus environment make a runnable paper-trading config.
func Load(path string) (Config, error) {
	cfg := Default()

	loadDotEnvIfPresent(".env")

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Broker.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Broker.APISecret = v
	}
	if v := os.Getenv("FINANCIAL_PREP_API_KEY"); v != "" {
		cfg.Universe.APIKey = v
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.TimeDelta.Mode {
	case TimeDeltaAdditive, TimeDeltaMultiplicative, TimeDeltaBalanced:
	default:
		return fmt.Errorf("invalid time_delta mode: %s", cfg.TimeDelta.Mode)
	}
	if cfg.Trading.ConcentrationLimit <= 0 || cfg.Trading.ConcentrationLimit > 1 {
		return fmt.Errorf("trading concentration_limit must be in (0, 1]")
	}
	if cfg.Simulation.ConcentrationLimit <= 0 || cfg.Simulation.ConcentrationLimit > 1 {
		return fmt.Errorf("simulation concentration_limit must be in (0, 1]")
	}
	if cfg.Trading.LiquidityFloor < 0 || cfg.Simulation.LiquidityFloor < 0 {
		return fmt.Errorf("liquidity floors must be >= 0")
	}
	if cfg.Simulation.StartingCash <= 0 {
		return fmt.Errorf("starting_cash must be > 0")
	}
	if cfg.Trading.StopLossPct <= 0 || cfg.Trading.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0, 1)")
	}
	if cfg.Trading.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be > 0")
	}
	if cfg.Points.Profit.RatioD1 >= cfg.Points.Profit.RatioD2 {
		return fmt.Errorf("profit ratio_d1 must be < ratio_d2")
	}
	if cfg.Points.Loss.RatioD1 <= cfg.Points.Loss.RatioD2 {
		return fmt.Errorf("loss ratio_d1 must be > ratio_d2")
	}
	if cfg.Broker.PendingMaxRetries <= 0 {
		return fmt.Errorf("pending_max_retries must be > 0")
	}
	if cfg.Fetch.Attempts <= 0 {
		return fmt.Errorf("fetch attempts must be > 0")
	}
	if cfg.Broker.OrderPacing < 0 || cfg.Phases.TickerPacing < 0 {
		return fmt.Errorf("pacing delays must be >= 0")
	}
	return nil
}

func loadDotEnvIfPresent(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = loadDotEnv(path)
}

// loadDotEnv sets KEY=VALUE pairs from a dotenv file without overriding
// variables already present in the environment.
func loadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}
