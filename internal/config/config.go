// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all runtime knobs consumed by the scraping engine.
type Config struct {
	Concurrency   int           `mapstructure:"concurrency"`
	SessionsCount int           `mapstructure:"sessions_count"`
	DelaySeconds  float64       `mapstructure:"delay_seconds"`
	UserAgent     string        `mapstructure:"user_agent"`
	UseProxy      bool          `mapstructure:"use_proxy"`
	HTTP          HTTPConfig    `mapstructure:"http"`
	Retry         RetryConfig   `mapstructure:"retry"`
	Proxy         ProxyConfig   `mapstructure:"proxy"`
	Batch         BatchConfig   `mapstructure:"batch"`
	Dedup         DedupConfig   `mapstructure:"dedup"`
	Storage       StorageConfig `mapstructure:"storage"`
	Server        ServerConfig  `mapstructure:"server"`
	Logging       LoggingConfig `mapstructure:"logging"`
}

// HTTPConfig configures transport timeouts.
type HTTPConfig struct {
	TimeoutSeconds        int `mapstructure:"timeout_seconds"`
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
}

// RetryConfig governs retry-with-backoff behavior of the HTTP client.
type RetryConfig struct {
	Count         int     `mapstructure:"count"`
	DelaySeconds  float64 `mapstructure:"delay_seconds"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
	MaxDelaySec   float64 `mapstructure:"max_delay_seconds"`
	StatusCodes   []int   `mapstructure:"status_codes"`
}

// ProxyConfig describes the proxy pool.
type ProxyConfig struct {
	List                []string `mapstructure:"list"`
	File                string   `mapstructure:"file"`
	MaxRequestsPerProxy int      `mapstructure:"max_requests_per_proxy"`
}

// BatchConfig controls URL batching for large inputs.
type BatchConfig struct {
	Size         int     `mapstructure:"size"`
	DelaySeconds float64 `mapstructure:"delay_seconds"`
}

// DedupConfig selects the composite key used when filtering duplicates.
type DedupConfig struct {
	PrimaryKeys []string `mapstructure:"primary_keys"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Kind       string `mapstructure:"kind"`
	OutputFile string `mapstructure:"output_file"`
	DSN        string `mapstructure:"dsn"`
}

// ServerConfig controls the optional ops HTTP endpoint. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig controls the root logger. Level accepts zap level names
// ("debug", "info", "warn", "error"); empty means the mode default (debug in
// development, info otherwise).
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICECRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("concurrency", 4)
	v.SetDefault("sessions_count", 1)
	v.SetDefault("delay_seconds", 1.0)
	v.SetDefault("user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36")
	v.SetDefault("use_proxy", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.connect_timeout_seconds", 10)
	v.SetDefault("retry.count", 3)
	v.SetDefault("retry.delay_seconds", 1.0)
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("retry.max_delay_seconds", 30.0)
	v.SetDefault("retry.status_codes", []int{408, 429, 500, 502, 503, 504})
	v.SetDefault("proxy.max_requests_per_proxy", 10)
	v.SetDefault("batch.size", 20)
	v.SetDefault("batch.delay_seconds", 1.0)
	v.SetDefault("dedup.primary_keys", []string{"url", "sku"})
	v.SetDefault("storage.kind", "csv")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits. A failure here is
// fatal at startup, before any network activity begins.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.SessionsCount <= 0 {
		return fmt.Errorf("sessions_count must be > 0")
	}
	if c.DelaySeconds < 0 {
		return fmt.Errorf("delay_seconds cannot be negative")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http.connect_timeout_seconds must be > 0")
	}
	if c.Retry.Count < 0 {
		return fmt.Errorf("retry.count cannot be negative")
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be >= 1")
	}
	if c.Retry.MaxDelaySec < 0 {
		return fmt.Errorf("retry.max_delay_seconds cannot be negative")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be > 0")
	}
	if c.Proxy.MaxRequestsPerProxy <= 0 {
		return fmt.Errorf("proxy.max_requests_per_proxy must be > 0")
	}
	if c.Storage.Kind == "" {
		return fmt.Errorf("storage.kind must be set")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent must be set")
	}
	return nil
}

// Delay converts the inter-request delay into a time.Duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// Timeout returns the total request timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ConnectTimeout returns the dial timeout.
func (c HTTPConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// BaseDelay returns the first-retry backoff delay.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// MaxDelay caps the backoff growth.
func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySec * float64(time.Second))
}

// BatchDelay returns the pause between URL batches.
func (c BatchConfig) BatchDelay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}
