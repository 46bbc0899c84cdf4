// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// UpstreamConfig configures access to the BattleMetrics API
type UpstreamConfig struct {
	BaseURL           string        `validate:"required|fullUrl"`
	Token             string        `validate:"required"`
	ServerID          string        `validate:"required"`
	Timeout           time.Duration `validate:"required|min:1"`
	RequestsPerSecond float64       `validate:"min:0"`
}

// PollingConfig configures the polling schedule and retries
type PollingConfig struct {
	IntervalMinutes int           `validate:"required|min:1"`
	MaxRetries      int           `validate:"required|min:1"`
	RetryDelay      time.Duration `validate:"min:0"`
	RunOnStart      bool
}

// Interval returns the time between scheduled cycles
func (c PollingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// StorageConfig selects the storage backend by URL
type StorageConfig struct {
	URL string `validate:"required"`
}

// HTTPConfig configures the query API listener
type HTTPConfig struct {
	Host string `validate:"required"`
	Port int    `validate:"required|min:1|max:65535"`
}

// Addr returns the listen address
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level  string `validate:"required|in:debug,info,warn,error"`
	Format string `validate:"required|in:json,text"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	Enabled bool
	SizeMB  int           `validate:"min:0"`
	TTL     time.Duration `validate:"min:0"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// Config is the complete service configuration
type Config struct {
	Upstream UpstreamConfig
	Polling  PollingConfig
	Storage  StorageConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Cache    CacheConfig
	Metrics  MetricsConfig
}

var envBindings = map[string]string{
	"upstream.base_url":            "BM_BASE_URL",
	"upstream.token":               "BM_API_TOKEN",
	"upstream.server_id":           "BM_SERVER_ID",
	"upstream.timeout":             "BM_TIMEOUT",
	"upstream.requests_per_second": "BM_REQUESTS_PER_SECOND",
	"polling.interval_minutes":     "POLL_INTERVAL_MINUTES",
	"polling.max_retries":          "POLL_MAX_RETRIES",
	"polling.retry_delay":          "POLL_RETRY_DELAY",
	"polling.run_on_start":         "POLL_RUN_ON_START",
	"storage.url":                  "DATABASE_URL",
	"http.host":                    "HTTP_HOST",
	"http.port":                    "PORT",
	"log.level":                    "LOG_LEVEL",
	"log.format":                   "LOG_FORMAT",
	"cache.enabled":                "CACHE_ENABLED",
	"cache.size_mb":                "CACHE_SIZE_MB",
	"cache.ttl":                    "CACHE_TTL",
	"metrics.enabled":              "METRICS_ENABLED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstream.base_url", "https://api.battlemetrics.com")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.requests_per_second", 2.0)
	v.SetDefault("polling.interval_minutes", 5)
	v.SetDefault("polling.max_retries", 3)
	v.SetDefault("polling.retry_delay", time.Second)
	v.SetDefault("polling.run_on_start", true)
	v.SetDefault("storage.url", "file:./data/playerwatch.db")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3001)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size_mb", 128)
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Upstream: UpstreamConfig{
			BaseURL:           v.GetString("upstream.base_url"),
			Token:             v.GetString("upstream.token"),
			ServerID:          v.GetString("upstream.server_id"),
			Timeout:           v.GetDuration("upstream.timeout"),
			RequestsPerSecond: v.GetFloat64("upstream.requests_per_second"),
		},
		Polling: PollingConfig{
			IntervalMinutes: v.GetInt("polling.interval_minutes"),
			MaxRetries:      v.GetInt("polling.max_retries"),
			RetryDelay:      v.GetDuration("polling.retry_delay"),
			RunOnStart:      v.GetBool("polling.run_on_start"),
		},
		Storage: StorageConfig{
			URL: v.GetString("storage.url"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("http.host"),
			Port: v.GetInt("http.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Cache: CacheConfig{
			Enabled: v.GetBool("cache.enabled"),
			SizeMB:  v.GetInt("cache.size_mb"),
			TTL:     v.GetDuration("cache.ttl"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section of the configuration
func (c *Config) Validate() error {
	sections := []struct {
		name  string
		value any
	}{
		{"upstream", &c.Upstream},
		{"polling", &c.Polling},
		{"storage", &c.Storage},
		{"http", &c.HTTP},
		{"log", &c.Log},
		{"cache", &c.Cache},
	}

	for _, section := range sections {
		v := validate.Struct(section.value)
		if !v.Validate() {
			return fmt.Errorf("invalid %s config: %w", section.name, v.Errors)
		}
	}
	return nil
}
