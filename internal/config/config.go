package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Hubs    []HubConfig
	Market  MarketConfig
	Sources SourcesConfig
	Cache   CacheConfig
	Output  OutputConfig
	Logging LoggingConfig
}

// HubConfig identifies one trading hub station.
type HubConfig struct {
	ID   int64  `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// MarketConfig defines the aggregation and pairing thresholds.
type MarketConfig struct {
	DepthMargin  float64 `mapstructure:"depth_margin"`
	ProfitMargin float64 `mapstructure:"profit_margin"`
}

// SourcesConfig defines where snapshot data comes from. Mode selects
// between downloading ("http") and reading local files ("file").
type SourcesConfig struct {
	Mode               string        `mapstructure:"mode"`
	OrdersURL          string        `mapstructure:"orders_url"`
	OrdersFile         string        `mapstructure:"orders_file"`
	HistoryEnabled     bool          `mapstructure:"history_enabled"`
	HistoryPricesURL   string        `mapstructure:"history_prices_url"`
	HistoryVolumesURL  string        `mapstructure:"history_volumes_url"`
	HistoryPricesFile  string        `mapstructure:"history_prices_file"`
	HistoryVolumesFile string        `mapstructure:"history_volumes_file"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RateLimit          float64       `mapstructure:"rate_limit"`
}

// CacheConfig defines the on-disk snapshot cache settings.
type CacheConfig struct {
	Dir string        `mapstructure:"dir"`
	TTL time.Duration `mapstructure:"ttl"`
}

// OutputConfig defines where CSV artifacts are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file, applying defaults and
// environment variable overrides (prefix HUBTRADE).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("HUBTRADE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.depth_margin", 0.10)
	v.SetDefault("market.profit_margin", 0.10)

	v.SetDefault("sources.mode", "http")
	v.SetDefault("sources.orders_url", "https://data.everef.net/market-orders/market-orders-latest.v3.csv.bz2")
	v.SetDefault("sources.history_enabled", true)
	v.SetDefault("sources.history_prices_url", "https://static.adam4eve.eu/MarketPricesStationHistory")
	v.SetDefault("sources.history_volumes_url", "https://static.adam4eve.eu/MarketVolumesStationHistory")
	v.SetDefault("sources.timeout", "5m")
	v.SetDefault("sources.max_retries", 3)
	v.SetDefault("sources.rate_limit", 1.0)

	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("output.dir", "data/processed")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if len(c.Hubs) < 2 {
		return fmt.Errorf("at least 2 hubs are required, got %d", len(c.Hubs))
	}
	seen := make(map[int64]bool, len(c.Hubs))
	for _, h := range c.Hubs {
		if h.ID <= 0 {
			return fmt.Errorf("hub id must be positive, got %d", h.ID)
		}
		if seen[h.ID] {
			return fmt.Errorf("duplicate hub id %d", h.ID)
		}
		seen[h.ID] = true
	}

	if c.Market.DepthMargin < 0 {
		return fmt.Errorf("market.depth_margin must not be negative")
	}
	if c.Market.ProfitMargin < 0 {
		return fmt.Errorf("market.profit_margin must not be negative")
	}

	switch c.Sources.Mode {
	case "http":
		if c.Sources.OrdersURL == "" {
			return fmt.Errorf("sources.orders_url is required in http mode")
		}
	case "file":
		if c.Sources.OrdersFile == "" {
			return fmt.Errorf("sources.orders_file is required in file mode")
		}
	default:
		return fmt.Errorf("sources.mode must be one of: http, file")
	}
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("sources.timeout must be positive")
	}
	if c.Sources.MaxRetries < 0 {
		return fmt.Errorf("sources.max_retries must not be negative")
	}
	if c.Sources.RateLimit <= 0 {
		return fmt.Errorf("sources.rate_limit must be positive")
	}

	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	return nil
}

// HubIDs returns the configured hub IDs in declaration order.
func (c *Config) HubIDs() []int64 {
	ids := make([]int64, 0, len(c.Hubs))
	for _, h := range c.Hubs {
		ids = append(ids, h.ID)
	}
	return ids
}

// HubSet returns the configured hub IDs as a membership set.
func (c *Config) HubSet() map[int64]bool {
	set := make(map[int64]bool, len(c.Hubs))
	for _, h := range c.Hubs {
		set[h.ID] = true
	}
	return set
}

// HubName returns the human-readable name for a hub ID, or the empty
// string if the hub is not configured.
func (c *Config) HubName(id int64) string {
	for _, h := range c.Hubs {
		if h.ID == id {
			return h.Name
		}
	}
	return ""
}
