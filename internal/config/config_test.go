package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 4, cfg.Concurrency)
	require.Equal(t, 1, cfg.SessionsCount)
	require.Equal(t, 3, cfg.Retry.Count)
	require.Equal(t, []int{408, 429, 500, 502, 503, 504}, cfg.Retry.StatusCodes)
	require.Equal(t, 10, cfg.Proxy.MaxRequestsPerProxy)
	require.Equal(t, 20, cfg.Batch.Size)
	require.Equal(t, []string{"url", "sku"}, cfg.Dedup.PrimaryKeys)
	require.Equal(t, "csv", cfg.Storage.Kind)
	require.False(t, cfg.UseProxy)
	require.NotEmpty(t, cfg.UserAgent)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
concurrency: 8
sessions_count: 3
delay_seconds: 0.5
use_proxy: true
retry:
  count: 5
  status_codes: [429, 503]
proxy:
  list:
    - "user:pass@10.0.0.1:8080"
  max_requests_per_proxy: 25
dedup:
  primary_keys: ["url", "article"]
storage:
  kind: json
  output_file: out/prices.json
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Concurrency)
	require.Equal(t, 3, cfg.SessionsCount)
	require.True(t, cfg.UseProxy)
	require.Equal(t, 5, cfg.Retry.Count)
	require.Equal(t, []int{429, 503}, cfg.Retry.StatusCodes)
	require.Equal(t, []string{"user:pass@10.0.0.1:8080"}, cfg.Proxy.List)
	require.Equal(t, 25, cfg.Proxy.MaxRequestsPerProxy)
	require.Equal(t, []string{"url", "article"}, cfg.Dedup.PrimaryKeys)
	require.Equal(t, "json", cfg.Storage.Kind)
	require.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_InvalidValuesAreFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Concurrency:   2,
			SessionsCount: 1,
			UserAgent:     "ua",
			HTTP:          HTTPConfig{TimeoutSeconds: 30, ConnectTimeoutSeconds: 10},
			Retry:         RetryConfig{Count: 3, BackoffFactor: 2},
			Batch:         BatchConfig{Size: 20},
			Proxy:         ProxyConfig{MaxRequestsPerProxy: 10},
			Storage:       StorageConfig{Kind: "csv"},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"zero concurrency":     func(c *Config) { c.Concurrency = 0 },
		"zero sessions":        func(c *Config) { c.SessionsCount = 0 },
		"negative delay":       func(c *Config) { c.DelaySeconds = -1 },
		"zero timeout":         func(c *Config) { c.HTTP.TimeoutSeconds = 0 },
		"negative retry count": func(c *Config) { c.Retry.Count = -1 },
		"backoff below one":    func(c *Config) { c.Retry.BackoffFactor = 0.5 },
		"zero batch size":      func(c *Config) { c.Batch.Size = 0 },
		"empty storage kind":   func(c *Config) { c.Storage.Kind = "" },
		"empty user agent":     func(c *Config) { c.UserAgent = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	cfg := Config{DelaySeconds: 1.5}
	require.Equal(t, 1500*time.Millisecond, cfg.Delay())

	h := HTTPConfig{TimeoutSeconds: 30, ConnectTimeoutSeconds: 10}
	require.Equal(t, 30*time.Second, h.Timeout())
	require.Equal(t, 10*time.Second, h.ConnectTimeout())

	r := RetryConfig{DelaySeconds: 0.25, MaxDelaySec: 30}
	require.Equal(t, 250*time.Millisecond, r.BaseDelay())
	require.Equal(t, 30*time.Second, r.MaxDelay())

	b := BatchConfig{DelaySeconds: 2}
	require.Equal(t, 2*time.Second, b.BatchDelay())
}
