package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete process configuration. Configuration errors are the
// only fatal errors in the core: everything here is validated at startup.
type Config struct {
	Providers  []ProviderConfig `mapstructure:"providers"`
	Cycle      CycleConfig      `mapstructure:"cycle"`
	Movement   MovementConfig   `mapstructure:"movement"`
	Arbitrage  ArbitrageConfig  `mapstructure:"arbitrage"`
	Parlay     ParlayConfig     `mapstructure:"parlay"`
	Gatekeeper GatekeeperConfig `mapstructure:"gatekeeper"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	BetShare   BetShareConfig   `mapstructure:"betshare"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ProviderConfig describes one upstream odds provider.
type ProviderConfig struct {
	Name    string        `mapstructure:"name"`
	Adapter string        `mapstructure:"adapter"` // oddsapi, eurofeed, fracfeed
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CycleConfig controls evaluation-cycle scheduling.
type CycleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MovementConfig holds line-movement detection thresholds.
type MovementConfig struct {
	DeltaThreshold float64       `mapstructure:"delta_threshold"` // implied-probability delta
	SteamProviders int           `mapstructure:"steam_providers"`
	SteamWindow    time.Duration `mapstructure:"steam_window"`
	FreezeDuration time.Duration `mapstructure:"freeze_duration"`
}

// ArbitrageConfig holds the arbitrage engine filters.
type ArbitrageConfig struct {
	MinProfitPercent float64 `mapstructure:"min_profit_percent"`
	MinEdgePercent   float64 `mapstructure:"min_edge_percent"`
}

// ParlayConfig holds teaser settings. The curve maps a line shift in points to
// an implied-probability gain for the teased side.
type ParlayConfig struct {
	TeaserPoints float64            `mapstructure:"teaser_points"`
	TeaserCurve  map[string]float64 `mapstructure:"teaser_curve"` // "points" -> probability shift
}

// GatekeeperConfig bounds calls to the external analyzer.
type GatekeeperConfig struct {
	Threshold       float64       `mapstructure:"threshold"`    // minimum cheap score
	QuotaPerCycle   int           `mapstructure:"quota"`        // max forwarded per cycle
	Cooldown        time.Duration `mapstructure:"cooldown"`     // dedup window per key
	RateLimitPerMin int           `mapstructure:"rate_per_min"` // analyzer call token bucket
	EdgeWeight      float64       `mapstructure:"edge_weight"`
	MovementWeight  float64       `mapstructure:"movement_weight"`
	AgreementWeight float64       `mapstructure:"agreement_weight"`
	ProximityWeight float64       `mapstructure:"proximity_weight"`
}

// AnalyzerConfig points at the external qualitative analyzer.
type AnalyzerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// BetShareConfig points at the optional public-bet-percentage feed. When
// disabled, reverse-line-movement classification is skipped, never guessed.
type BetShareConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// RedisConfig holds connection settings for dedup, rate limiting, and the
// forwarded-candidate stream.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig holds quote/movement persistence settings.
type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

// HTTPConfig holds the evaluation API settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from a file with environment overrides
// (ODDSCORE_ prefix). A missing file falls back to defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ODDSCORE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cycle.interval", "2m")

	v.SetDefault("movement.delta_threshold", 0.005)
	v.SetDefault("movement.steam_providers", 3)
	v.SetDefault("movement.steam_window", "5m")
	v.SetDefault("movement.freeze_duration", "15m")

	v.SetDefault("arbitrage.min_profit_percent", 0.5)
	v.SetDefault("arbitrage.min_edge_percent", 2.0)

	v.SetDefault("parlay.teaser_points", 6.0)

	v.SetDefault("gatekeeper.threshold", 0.35)
	v.SetDefault("gatekeeper.quota", 20)
	v.SetDefault("gatekeeper.cooldown", "1h")
	v.SetDefault("gatekeeper.rate_per_min", 10)
	v.SetDefault("gatekeeper.edge_weight", 1.0)
	v.SetDefault("gatekeeper.movement_weight", 1.0)
	v.SetDefault("gatekeeper.agreement_weight", 1.0)
	v.SetDefault("gatekeeper.proximity_weight", 1.0)

	v.SetDefault("analyzer.timeout", "30s")
	v.SetDefault("analyzer.enabled", false)

	v.SetDefault("betshare.enabled", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.enabled", false)

	v.SetDefault("http.addr", ":8090")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks every configuration value. Invalid configuration is fatal
// at startup.
func (c *Config) Validate() error {
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		switch p.Adapter {
		case "oddsapi", "eurofeed", "fracfeed":
		default:
			return fmt.Errorf("providers[%d].adapter %q is not one of: oddsapi, eurofeed, fracfeed", i, p.Adapter)
		}
		if p.URL == "" {
			return fmt.Errorf("providers[%d].url is required", i)
		}
		if p.Timeout <= 0 {
			return fmt.Errorf("providers[%d].timeout must be positive", i)
		}
	}

	if c.Cycle.Interval < 10*time.Second {
		return fmt.Errorf("cycle.interval must be at least 10s")
	}

	if c.Movement.DeltaThreshold <= 0 || c.Movement.DeltaThreshold >= 1 {
		return fmt.Errorf("movement.delta_threshold must be in (0, 1)")
	}
	if c.Movement.SteamProviders < 2 {
		return fmt.Errorf("movement.steam_providers must be at least 2")
	}
	if c.Movement.SteamWindow <= 0 {
		return fmt.Errorf("movement.steam_window must be positive")
	}
	if c.Movement.FreezeDuration <= 0 {
		return fmt.Errorf("movement.freeze_duration must be positive")
	}

	if c.Arbitrage.MinProfitPercent < 0 {
		return fmt.Errorf("arbitrage.min_profit_percent must not be negative")
	}

	if c.Parlay.TeaserPoints <= 0 {
		return fmt.Errorf("parlay.teaser_points must be positive")
	}

	if c.Gatekeeper.Threshold < 0 || c.Gatekeeper.Threshold > 1 {
		return fmt.Errorf("gatekeeper.threshold must be in [0, 1]")
	}
	if c.Gatekeeper.QuotaPerCycle < 1 {
		return fmt.Errorf("gatekeeper.quota must be at least 1")
	}
	if c.Gatekeeper.Cooldown <= 0 {
		return fmt.Errorf("gatekeeper.cooldown must be positive")
	}
	if c.Gatekeeper.RateLimitPerMin < 1 {
		return fmt.Errorf("gatekeeper.rate_per_min must be at least 1")
	}
	weights := c.Gatekeeper.EdgeWeight + c.Gatekeeper.MovementWeight +
		c.Gatekeeper.AgreementWeight + c.Gatekeeper.ProximityWeight
	if weights <= 0 {
		return fmt.Errorf("gatekeeper weights must sum to a positive value")
	}

	if c.Analyzer.Enabled && c.Analyzer.URL == "" {
		return fmt.Errorf("analyzer.url is required when analyzer is enabled")
	}
	if c.BetShare.Enabled && c.BetShare.URL == "" {
		return fmt.Errorf("betshare.url is required when betshare is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres is enabled")
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
