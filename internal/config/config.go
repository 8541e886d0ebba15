// Package config loads onenote-dump settings with viper. Precedence, highest
// first: command-line flags, ONENOTE_DUMP_* environment variables, the
// onenote-dump.yaml config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/onenote-dump/internal/auth"
	"github.com/Sternrassler/onenote-dump/pkg/cache"
	"github.com/Sternrassler/onenote-dump/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
)

// EnvPrefix prefixes every environment variable, e.g. ONENOTE_DUMP_AUTH_ACCESS_TOKEN.
const EnvPrefix = "ONENOTE_DUMP"

// Config holds all settings of a run.
type Config struct {
	Auth    auth.Config
	Graph   GraphConfig
	Backoff BackoffConfig
	Redis   RedisConfig
	Log     LogConfig
	Metrics MetricsConfig
}

type GraphConfig struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type BackoffConfig struct {
	InitialWait time.Duration
	MaxWait     time.Duration
	MaxAttempts int
}

// RedisConfig is optional; an empty Addr disables the content cache and
// throttle tracking.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type LogConfig struct {
	Verbose bool
	Pretty  bool
}

type MetricsConfig struct {
	Addr string
}

// flag name -> config key
var flagKeys = map[string]string{
	"access-token":        "auth.access_token",
	"token-file":          "auth.token_file",
	"client-id":           "auth.client_id",
	"client-secret":       "auth.client_secret",
	"tenant":              "auth.tenant",
	"base-url":            "graph.base_url",
	"user-agent":          "graph.user_agent",
	"timeout":             "graph.timeout",
	"requests-per-second": "graph.requests_per_second",
	"backoff-initial":     "backoff.initial_wait",
	"backoff-max":         "backoff.max_wait",
	"backoff-attempts":    "backoff.max_attempts",
	"redis-addr":          "redis.addr",
	"redis-password":      "redis.password",
	"redis-db":            "redis.db",
	"cache-ttl":           "redis.cache_ttl",
	"verbose":             "log.verbose",
	"pretty":              "log.pretty",
	"metrics-addr":        "metrics.addr",
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	defaults := client.DefaultConfig(nil)

	fs.String("config", "", "config file (default ./onenote-dump.yaml)")

	fs.String("access-token", "", "Graph access token")
	fs.String("token-file", "", "oauth2 token JSON file")
	fs.String("client-id", "", "Azure AD application id, enables token refresh")
	fs.String("client-secret", "", "Azure AD client secret")
	fs.String("tenant", auth.DefaultTenant, "Azure AD tenant")

	fs.String("base-url", defaults.BaseURL, "OneNote API root")
	fs.String("user-agent", defaults.UserAgent, "User-Agent header")
	fs.Duration("timeout", defaults.Timeout, "per-request timeout")
	fs.Float64("requests-per-second", 0, "pace requests, 0 disables pacing")

	fs.Duration("backoff-initial", defaults.Backoff.InitialWait, "first wait after HTTP 429")
	fs.Duration("backoff-max", 0, "longest wait after HTTP 429, 0 for no cap")
	fs.Int("backoff-attempts", 0, "give up after this many attempts, 0 retries forever")

	fs.String("redis-addr", "", "Redis address for content cache and throttle state")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database")
	fs.Duration("cache-ttl", cache.DefaultTTL, "page content cache lifetime")

	fs.BoolP("verbose", "v", false, "show verbose output")
	fs.Bool("pretty", false, "human-readable console logs")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// New returns a viper instance bound to fs, the environment and the config
// file. configFile may be empty to search the default locations.
func New(fs *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		return v, nil
	}

	v.SetConfigName("onenote-dump")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/onenote-dump")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load reads and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Auth: auth.Config{
			AccessToken:  v.GetString("auth.access_token"),
			TokenFile:    v.GetString("auth.token_file"),
			ClientID:     v.GetString("auth.client_id"),
			ClientSecret: v.GetString("auth.client_secret"),
			Tenant:       v.GetString("auth.tenant"),
			Scopes:       v.GetStringSlice("auth.scopes"),
		},
		Graph: GraphConfig{
			BaseURL:           v.GetString("graph.base_url"),
			UserAgent:         v.GetString("graph.user_agent"),
			Timeout:           v.GetDuration("graph.timeout"),
			RequestsPerSecond: v.GetFloat64("graph.requests_per_second"),
		},
		Backoff: BackoffConfig{
			InitialWait: v.GetDuration("backoff.initial_wait"),
			MaxWait:     v.GetDuration("backoff.max_wait"),
			MaxAttempts: v.GetInt("backoff.max_attempts"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("redis.cache_ttl"),
		},
		Log: LogConfig{
			Verbose: v.GetBool("log.verbose"),
			Pretty:  v.GetBool("log.pretty"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Credentials are checked when the token
// source is built.
func (c *Config) Validate() error {
	if c.Graph.BaseURL == "" {
		return fmt.Errorf("graph.base_url is required")
	}
	if c.Graph.RequestsPerSecond < 0 {
		return fmt.Errorf("graph.requests_per_second must be >= 0 (got %v)", c.Graph.RequestsPerSecond)
	}
	if c.Backoff.InitialWait < 0 || c.Backoff.MaxWait < 0 {
		return fmt.Errorf("backoff waits must be >= 0")
	}
	if c.Backoff.MaxAttempts < 0 {
		return fmt.Errorf("backoff.max_attempts must be >= 0 (got %d)", c.Backoff.MaxAttempts)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0 (got %d)", c.Redis.DB)
	}
	return nil
}

// ClientConfig maps the settings onto a Graph client configuration.
// rdb may be nil.
func (c *Config) ClientConfig(ts oauth2.TokenSource, rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(ts)
	cfg.BaseURL = c.Graph.BaseURL
	if c.Graph.UserAgent != "" {
		cfg.UserAgent = c.Graph.UserAgent
	}
	if c.Graph.Timeout > 0 {
		cfg.Timeout = c.Graph.Timeout
	}
	cfg.RequestsPerSecond = c.Graph.RequestsPerSecond

	if c.Backoff.InitialWait > 0 {
		cfg.Backoff.InitialWait = c.Backoff.InitialWait
	}
	cfg.Backoff.MaxWait = c.Backoff.MaxWait
	cfg.Backoff.MaxAttempts = c.Backoff.MaxAttempts

	cfg.Redis = rdb
	if c.Redis.CacheTTL > 0 {
		cfg.ContentCacheTTL = c.Redis.CacheTTL
	}
	return cfg
}

// RedisOptions returns connection options, nil when Redis is not configured.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}
