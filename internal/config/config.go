package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Google  GoogleConfig  `yaml:"google" mapstructure:"google"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Website WebsiteConfig `yaml:"website" mapstructure:"website"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxResults int     `yaml:"max_results" mapstructure:"max_results"`
}

// SyncConfig configures the buyer contact sync run.
type SyncConfig struct {
	Limit       int    `yaml:"limit" mapstructure:"limit"`
	StaleDays   int    `yaml:"stale_days" mapstructure:"stale_days"`
	DelayMs     int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	LaunchScope string `yaml:"launch_scope" mapstructure:"launch_scope"`
	// AcceptanceBar is the minimum stored confidence at which a verified
	// contact is protected from lower-confidence overwrites.
	AcceptanceBar int `yaml:"acceptance_bar" mapstructure:"acceptance_bar"`
	// AcceptanceBars overrides AcceptanceBar per facility type.
	AcceptanceBars map[string]int `yaml:"acceptance_bars" mapstructure:"acceptance_bars"`
}

// WebsiteConfig configures website cross-validation fetches.
type WebsiteConfig struct {
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBytes      int    `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	CacheTTLMins  int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// RetryConfig configures retries of transient Places API failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the Places API circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
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
	v.SetEnvPrefix("BUYERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.rate_limit", 5.0)
	v.SetDefault("google.max_results", 5)
	v.SetDefault("sync.limit", 500)
	v.SetDefault("sync.stale_days", 30)
	v.SetDefault("sync.delay_ms", 150)
	v.SetDefault("sync.launch_scope", "corridor")
	v.SetDefault("sync.acceptance_bar", 90)
	v.SetDefault("website.timeout_secs", 8)
	v.SetDefault("website.max_bytes", 25000)
	v.SetDefault("website.user_agent", "BuyerSync/1.0 (+contact sync)")
	v.SetDefault("website.cache_ttl_mins", 60)
	v.SetDefault("website.respect_robots", false)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	// Google's own env var name is accepted as a fallback for the key.
	_ = v.BindEnv("google.key", "BUYERSYNC_GOOGLE_KEY", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("store.database_url", "BUYERSYNC_STORE_DATABASE_URL", "DATABASE_URL")

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

	return &cfg, nil
}

// AcceptanceBarFor returns the stability-guard bar for a facility type.
func (c SyncConfig) AcceptanceBarFor(facilityType string) int {
	if bar, ok := c.AcceptanceBars[facilityType]; ok && bar > 0 {
		return bar
	}
	if c.AcceptanceBar > 0 {
		return c.AcceptanceBar
	}
	return 90
}

// Validate checks that the fields a command needs are present and sane.
// Mode is one of "sync", "review", "report", "migrate".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "sync":
		problems = append(problems, c.validateStore()...)
		if c.Google.Key == "" {
			problems = append(problems, "google.key is required")
		}
		if c.Sync.AcceptanceBar < 0 || c.Sync.AcceptanceBar > 100 {
			problems = append(problems, "sync.acceptance_bar must be between 0 and 100")
		}
		for typ, bar := range c.Sync.AcceptanceBars {
			if bar < 0 || bar > 100 {
				problems = append(problems, fmt.Sprintf("sync.acceptance_bars.%s must be between 0 and 100", typ))
			}
		}
		if c.Google.RateLimit < 0 {
			problems = append(problems, "google.rate_limit must be >= 0")
		}
	case "review", "report", "migrate":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	return problems
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
