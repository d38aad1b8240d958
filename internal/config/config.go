package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Proxy   ProxyConfig   `yaml:"proxy" mapstructure:"proxy"`
	Engine  EngineConfig  `yaml:"engine" mapstructure:"engine"`
	Credits CreditsConfig `yaml:"credits" mapstructure:"credits"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProxyConfig holds scrape-proxy API settings.
type ProxyConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Country string `yaml:"country" mapstructure:"country"`
}

// EngineConfig configures the concurrent fetch engine.
type EngineConfig struct {
	GlobalMaxConcurrency int `yaml:"global_max_concurrency" mapstructure:"global_max_concurrency"`
	PerWorkerConcurrency int `yaml:"per_worker_concurrency" mapstructure:"per_worker_concurrency"`
	RequestTimeoutMs     int `yaml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
	MaxRetries           int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffBaseMs   int `yaml:"retry_backoff_base_ms" mapstructure:"retry_backoff_base_ms"`
	InterRequestDelayMs  int `yaml:"inter_request_delay_ms" mapstructure:"inter_request_delay_ms"`
	QueueSize            int `yaml:"queue_size" mapstructure:"queue_size"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (e EngineConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutMs) * time.Millisecond
}

// RetryBackoffBase returns the base retry backoff as a duration.
func (e EngineConfig) RetryBackoffBase() time.Duration {
	return time.Duration(e.RetryBackoffBaseMs) * time.Millisecond
}

// InterRequestDelay returns the post-request pacing delay as a duration.
func (e EngineConfig) InterRequestDelay() time.Duration {
	return time.Duration(e.InterRequestDelayMs) * time.Millisecond
}

// CreditsConfig holds per-unit billing costs.
type CreditsConfig struct {
	SearchUnitCost int `yaml:"search_unit_cost" mapstructure:"search_unit_cost"`
	DetailUnitCost int `yaml:"detail_unit_cost" mapstructure:"detail_unit_cost"`
}

// CacheConfig configures the detail-page cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	TTLDays int  `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// ServerConfig configures the task API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PEOPLESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "peoplesearch.db")
	v.SetDefault("proxy.base_url", "https://api.scraperapi.com")
	v.SetDefault("proxy.country", "us")
	v.SetDefault("engine.global_max_concurrency", 16)
	v.SetDefault("engine.per_worker_concurrency", 4)
	v.SetDefault("engine.request_timeout_ms", 70000)
	v.SetDefault("engine.max_retries", 2)
	v.SetDefault("engine.retry_backoff_base_ms", 1000)
	v.SetDefault("engine.inter_request_delay_ms", 250)
	v.SetDefault("engine.queue_size", 1000)
	v.SetDefault("credits.search_unit_cost", 1)
	v.SetDefault("credits.detail_unit_cost", 1)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime
// misbehavior deep inside the pool or meter.
func (c *Config) Validate() error {
	if c.Engine.GlobalMaxConcurrency < 1 {
		return eris.Errorf("config: engine.global_max_concurrency must be >= 1, got %d", c.Engine.GlobalMaxConcurrency)
	}
	if c.Engine.GlobalMaxConcurrency > 30 {
		return eris.Errorf("config: engine.global_max_concurrency must be <= 30, got %d", c.Engine.GlobalMaxConcurrency)
	}
	if c.Engine.PerWorkerConcurrency < 1 {
		return eris.Errorf("config: engine.per_worker_concurrency must be >= 1, got %d", c.Engine.PerWorkerConcurrency)
	}
	if c.Credits.SearchUnitCost < 1 || c.Credits.DetailUnitCost < 1 {
		return eris.New("config: credit unit costs must be >= 1")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q (valid: sqlite, postgres)", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
