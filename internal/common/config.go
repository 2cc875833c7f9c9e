// Package common provides shared utilities for Argus
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Argus
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	LLM         LLMConfig       `toml:"llm"`
	MarketData  MarketConfig    `toml:"marketdata"`
	Discovery   DiscoveryConfig `toml:"discovery"`
	Risk        RiskConfig      `toml:"risk"`
	Watchlist   WatchlistConfig `toml:"watchlist"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Strategy    StrategyConfig  `toml:"strategy"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the data directory for the embedded store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"`
	FilePath string `toml:"file_path"`
}

// LLMConfig holds the LLM backend configuration.
type LLMConfig struct {
	Provider    string  `toml:"provider"`
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	ContextSize int     `toml:"context_size"`
	Temperature float64 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// GetTimeout parses and returns the LLM call timeout duration.
func (c *LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// MarketConfig holds market-data client configuration.
type MarketConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the HTTP fetch timeout duration.
func (c *MarketConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// DiscoveryConfig lists social sources and the symbol noise denylist.
type DiscoveryConfig struct {
	PriorityForums  []string `toml:"priority_forums"`
	TrendingForums  []string `toml:"trending_forums"`
	Channels        []string `toml:"channels"`
	ChannelTrust    float64  `toml:"channel_trust"`
	LookbackHours   int      `toml:"lookback_hours"`
	ExtraNoiseWords []string `toml:"extra_noise_words"`
}

// RiskConfig holds paper-trading risk parameters.
type RiskConfig struct {
	StartingBalance      float64 `toml:"starting_balance" validate:"gt=0"`
	MaxPositionPct       float64 `toml:"max_position_pct" validate:"gt=0,lte=1"`
	MaxAllocationPct     float64 `toml:"max_portfolio_allocation_pct" validate:"gt=0,lte=1"`
	MaxOrdersPerDay      int     `toml:"max_orders_per_day" validate:"gte=1"`
	DailyLossLimitPct    float64 `toml:"daily_loss_limit_pct" validate:"gt=0,lte=1"`
	BuyThreshold         float64 `toml:"buy_threshold" validate:"gte=0,lte=1"`
	SellThreshold        float64 `toml:"sell_threshold" validate:"gte=0,lte=1"`
	RebuyCooldownDays    int     `toml:"rebuy_cooldown_days" validate:"gte=0"`
	StopLossPct          float64 `toml:"stop_loss_pct" validate:"gt=0,lt=1"`
	TakeProfitPct        float64 `toml:"take_profit_pct" validate:"gt=0"`
	TrailingStopPct      float64 `toml:"trailing_stop_pct_default" validate:"gt=0,lt=1"`
	MaxPositionShares    int     `toml:"max_position_shares" validate:"gte=1"`
	KellyFraction        float64 `toml:"kelly_fraction" validate:"gt=0,lte=1"`
	MinConvictionToTrade float64 `toml:"min_conviction_to_trade" validate:"gte=0,lte=1"`
}

// WatchlistConfig holds watchlist lifecycle policy constants.
type WatchlistConfig struct {
	MaxActive           int     `toml:"max_active" validate:"gte=1"`
	CooldownDays        int     `toml:"cooldown_days" validate:"gte=0"`
	MinDiscoveryScore   float64 `toml:"min_discovery_score"`
	ConsecutiveLowLimit int     `toml:"consecutive_low_limit" validate:"gte=1"`
	LowConvictionCutoff float64 `toml:"low_conviction_cutoff" validate:"gte=0,lte=1"`
	StaleDays           int     `toml:"stale_days" validate:"gte=1"`
}

// PipelineConfig holds queue bounds, worker counts, and stage timeouts.
type PipelineConfig struct {
	CollectQueueSize  int    `toml:"collect_queue_size" validate:"gte=1"`
	AnalyzeQueueSize  int    `toml:"analyze_queue_size" validate:"gte=1"`
	TradeQueueSize    int    `toml:"trade_queue_size" validate:"gte=1"`
	CollectionWorkers int    `toml:"collection_workers" validate:"gte=1"`
	AnalysisWorkers   int    `toml:"analysis_workers" validate:"gte=1"`
	StageTimeout      string `toml:"stage_timeout"`
}

// GetStageTimeout parses and returns the per-ticker stage timeout.
func (c *PipelineConfig) GetStageTimeout() time.Duration {
	d, err := time.ParseDuration(c.StageTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// SchedulerConfig holds the market timezone and job cadences.
type SchedulerConfig struct {
	Timezone        string `toml:"timezone"`
	PremarketSpec   string `toml:"premarket_spec"`
	IntradaySpec    string `toml:"intraday_spec"`
	EODSpec         string `toml:"eod_spec"`
	MonitorInterval string `toml:"monitor_interval"`
	AutoStart       bool   `toml:"auto_start"`
}

// GetMonitorInterval parses and returns the price monitor tick interval.
func (c *SchedulerConfig) GetMonitorInterval() time.Duration {
	d, err := time.ParseDuration(c.MonitorInterval)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Location resolves the configured market timezone.
func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StrategyConfig points at the free-form strategist text consumed by prompts.
type StrategyConfig struct {
	File string `toml:"file"`
}

// LoadStrategyText reads the strategist markdown, or returns the built-in
// research-driven default when no file is configured.
func (c *StrategyConfig) LoadStrategyText() string {
	if c.File == "" {
		return defaultStrategyText
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return defaultStrategyText
	}
	return string(data)
}

const defaultStrategyText = `You are a research-driven portfolio strategist.
Only recommend positions supported by the evidence in the dossier. Prefer
missing a trade over acting on weak or contradictory data.`

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{Path: "data/argus"},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			FilePath: "./logs/argus.log",
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			ContextSize: 128000,
			Temperature: 0.3,
			Timeout:     "60s",
		},
		MarketData: MarketConfig{
			BaseURL:   "https://eodhd.com/api",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Discovery: DiscoveryConfig{
			PriorityForums: []string{"wallstreetbets", "stocks"},
			TrendingForums: []string{"investing", "StockMarket"},
			ChannelTrust:   1.0,
			LookbackHours:  24,
		},
		Risk: RiskConfig{
			StartingBalance:      10000,
			MaxPositionPct:       0.10,
			MaxAllocationPct:     0.80,
			MaxOrdersPerDay:      10,
			DailyLossLimitPct:    0.05,
			BuyThreshold:         0.70,
			SellThreshold:        0.30,
			RebuyCooldownDays:    7,
			StopLossPct:          0.08,
			TakeProfitPct:        0.20,
			TrailingStopPct:      0.05,
			MaxPositionShares:    1000,
			KellyFraction:        0.5,
			MinConvictionToTrade: 0.60,
		},
		Watchlist: WatchlistConfig{
			MaxActive:           20,
			CooldownDays:        7,
			MinDiscoveryScore:   3.0,
			ConsecutiveLowLimit: 2,
			LowConvictionCutoff: 0.3,
			StaleDays:           5,
		},
		Pipeline: PipelineConfig{
			CollectQueueSize:  20,
			AnalyzeQueueSize:  5,
			TradeQueueSize:    10,
			CollectionWorkers: 4,
			AnalysisWorkers:   2,
			StageTimeout:      "120s",
		},
		Scheduler: SchedulerConfig{
			Timezone:        "America/New_York",
			PremarketSpec:   "0 6 * * 1-5",
			IntradaySpec:    "30 10,12,14 * * 1-5",
			EODSpec:         "30 16 * * 1-5",
			MonitorInterval: "60s",
			AutoStart:       true,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

var configValidator = validator.New()

// validateConfig checks the risk, watchlist, and pipeline sections.
// Trading with a malformed risk section is worse than failing startup.
func validateConfig(config *Config) error {
	if err := configValidator.Struct(&config.Risk); err != nil {
		return fmt.Errorf("invalid risk config: %w", err)
	}
	if err := configValidator.Struct(&config.Watchlist); err != nil {
		return fmt.Errorf("invalid watchlist config: %w", err)
	}
	if err := configValidator.Struct(&config.Pipeline); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if config.Risk.SellThreshold >= config.Risk.BuyThreshold {
		return fmt.Errorf("invalid risk config: sell_threshold %.2f must be below buy_threshold %.2f",
			config.Risk.SellThreshold, config.Risk.BuyThreshold)
	}
	if _, err := time.LoadLocation(config.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", config.Scheduler.Timezone, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ARGUS_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("ARGUS_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("ARGUS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("ARGUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("ARGUS_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Join(path, "argus")
	}

	if key := os.Getenv("ARGUS_LLM_API_KEY"); key != "" {
		config.LLM.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = key
	}

	if key := os.Getenv("ARGUS_MARKETDATA_API_KEY"); key != "" {
		config.MarketData.APIKey = key
	}

	if tz := os.Getenv("ARGUS_MARKET_TZ"); tz != "" {
		config.Scheduler.Timezone = tz
	}

	// Debug mode shrinks the watchlist for faster iteration
	if debug := os.Getenv("ARGUS_DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		config.Watchlist.MaxActive = 5
		config.Logging.Level = "debug"
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
