package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all proxy configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream" toml:"upstream"`
	Retry     RetryConfig     `yaml:"retry" toml:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker" toml:"breaker"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" toml:"cors"`
}

// ServerConfig holds the inbound listener configuration.
type ServerConfig struct {
	Listen       string `envconfig:"PROXY_LISTEN" yaml:"listen" toml:"listen"`
	MaxBodyBytes int64  `envconfig:"PROXY_MAX_BODY_BYTES" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// TrustedProxies lists peers (IPs or CIDRs) whose X-Forwarded-For is
	// believed when resolving the client IP. Empty trusts no one.
	TrustedProxies []string `envconfig:"PROXY_TRUSTED_PROXIES" yaml:"trusted_proxies" toml:"trusted_proxies"`
}

// UpstreamConfig describes the hub the proxy forwards to.
type UpstreamConfig struct {
	Forward             string   `envconfig:"PROXY_FORWARD" yaml:"forward" toml:"forward"`
	TimeoutSeconds      int      `envconfig:"PROXY_TIMEOUT" yaml:"timeout_seconds" toml:"timeout_seconds"`
	DialTimeout         Duration `envconfig:"PROXY_DIAL_TIMEOUT" yaml:"dial_timeout" toml:"dial_timeout"`
	MaxIdleConns        int      `envconfig:"PROXY_MAX_IDLE_CONNS" yaml:"max_idle_conns" toml:"max_idle_conns"`
	MaxIdleConnsPerHost int      `envconfig:"PROXY_MAX_IDLE_CONNS_PER_HOST" yaml:"max_idle_conns_per_host" toml:"max_idle_conns_per_host"`
	IdleConnTimeout     Duration `envconfig:"PROXY_IDLE_CONN_TIMEOUT" yaml:"idle_conn_timeout" toml:"idle_conn_timeout"`
	StatusPath          string   `envconfig:"PROXY_HUB_STATUS_PATH" yaml:"status_path" toml:"status_path"`
}

// RetryConfig holds the retry budget for non-create requests.
type RetryConfig struct {
	MaxRetries int      `envconfig:"PROXY_RETRY_MAX" yaml:"max_retries" toml:"max_retries"`
	Delay      Duration `envconfig:"PROXY_RETRY_DELAY" yaml:"delay" toml:"delay"`
}

// BreakerConfig configures the optional circuit breaker around dispatch.
type BreakerConfig struct {
	Enabled             bool     `envconfig:"PROXY_BREAKER_ENABLED" yaml:"enabled" toml:"enabled"`
	ConsecutiveFailures uint32   `envconfig:"PROXY_BREAKER_FAILURES" yaml:"consecutive_failures" toml:"consecutive_failures"`
	OpenTimeout         Duration `envconfig:"PROXY_BREAKER_OPEN_TIMEOUT" yaml:"open_timeout" toml:"open_timeout"`
}

// SessionConfig holds WebDriver routing details.
type SessionConfig struct {
	Route string `envconfig:"PROXY_SESSION_ROUTE" yaml:"route" toml:"route"`
}

// AuthConfig holds the Basic-Auth gate credentials. Empty user disables the gate.
type AuthConfig struct {
	User     string `envconfig:"PROXY_AUTH_USER" yaml:"user" toml:"user"`
	Password string `envconfig:"PROXY_AUTH_PASSWORD" yaml:"password" toml:"password"`
	Realm    string `envconfig:"PROXY_AUTH_REALM" yaml:"realm" toml:"realm"`
}

// Enabled reports whether requests must authenticate.
func (a AuthConfig) Enabled() bool { return a.User != "" }

// StoreConfig selects the session→user store backend.
type StoreConfig struct {
	Backend       string   `envconfig:"PROXY_STORE" yaml:"backend" toml:"backend"`
	KeyPrefix     string   `envconfig:"PROXY_STORE_PREFIX" yaml:"key_prefix" toml:"key_prefix"`
	TTL           Duration `envconfig:"PROXY_STORE_TTL" yaml:"ttl" toml:"ttl"`
	WriteTimeout  Duration `envconfig:"PROXY_STORE_WRITE_TIMEOUT" yaml:"write_timeout" toml:"write_timeout"`
	RedisAddr     string   `envconfig:"PROXY_REDIS_ADDR" yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string   `envconfig:"PROXY_REDIS_PASSWORD" yaml:"redis_password" toml:"redis_password"`
	RedisDB       int      `envconfig:"PROXY_REDIS_DB" yaml:"redis_db" toml:"redis_db"`
	SQLitePath    string   `envconfig:"PROXY_SQLITE_PATH" yaml:"sqlite_path" toml:"sqlite_path"`
}

// Store backends
const (
	StoreNone   = "none"
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
	Verbose     bool   `envconfig:"PROXY_VERBOSE" yaml:"verbose" toml:"verbose"`
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
}

// CORSConfig controls CORS on the /_proxy ops endpoints.
type CORSConfig struct {
	Enabled      bool     `envconfig:"CORS_ENABLED" yaml:"enabled" toml:"enabled"`
	AllowOrigins []string `envconfig:"CORS_ORIGINS" yaml:"allow_origins" toml:"allow_origins"`
}

// Timeout is the per-attempt timeout for ordinary (non-create) requests.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       "0.0.0.0:8080",
			MaxBodyBytes: 50 * 1024 * 1024,
		},
		Upstream: UpstreamConfig{
			Forward:             "127.0.0.1:4444",
			TimeoutSeconds:      60,
			DialTimeout:         Duration{30 * time.Second},
			MaxIdleConns:        256,
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     Duration{90 * time.Second},
			StatusPath:          "/wd/hub/status",
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			Delay:      Duration{100 * time.Millisecond},
		},
		Breaker: BreakerConfig{
			Enabled:             false,
			ConsecutiveFailures: 10,
			OpenTimeout:         Duration{30 * time.Second},
		},
		Session: SessionConfig{
			Route: "/wd/hub/session",
		},
		Auth: AuthConfig{
			Realm: "Soda Test Service",
		},
		Store: StoreConfig{
			Backend:      StoreNone,
			KeyPrefix:    "gridproxy",
			TTL:          Duration{24 * time.Hour},
			WriteTimeout: Duration{2 * time.Second},
			RedisAddr:    "127.0.0.1:6379",
			SQLitePath:   "gridproxy.db",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 100,
			Burst:             200,
		},
		CORS: CORSConfig{
			Enabled:      false,
			AllowOrigins: []string{"*"},
		},
	}
}

// Load builds the configuration: defaults, then the optional config file,
// then .env, then environment variables. CLI flags are applied by the caller.
func Load(file string) (*Config, error) {
	cfg := Default()

	if file != "" {
		if err := loadFile(file, cfg); err != nil {
			return nil, err
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes a YAML or TOML file on top of cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Session.Route = "/" + strings.Trim(strings.TrimSpace(c.Session.Route), "/")
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreNone
	}
	if c.Logging.Verbose {
		c.Logging.Development = true
		c.Logging.Level = "debug"
	}
}

// Validate checks the configuration for values the proxy cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if err := ValidateAddress(c.Server.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen: %w", err))
	}
	if err := ValidateAddress(c.Upstream.Forward); err != nil {
		errs = append(errs, fmt.Errorf("forward: %w", err))
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %d", c.Upstream.TimeoutSeconds))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry max must not be negative, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.Delay.Duration < 0 {
		errs = append(errs, errors.New("retry delay must not be negative"))
	}
	if c.Session.Route == "/" {
		errs = append(errs, errors.New("session route must not be empty"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	for _, p := range c.Server.TrustedProxies {
		if err := validateProxy(p); err != nil {
			errs = append(errs, fmt.Errorf("trusted proxies: %w", err))
		}
	}
	switch c.Store.Backend {
	case StoreNone, StoreMemory, StoreRedis, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Auth.Enabled() && c.Auth.Password == "" {
		errs = append(errs, errors.New("auth password is required when auth user is set"))
	}

	return errors.Join(errs...)
}

// ValidateAddress enforces the HOST:PORT format for address inputs.
func ValidateAddress(addr string) error {
	// An empty host is allowed and means all interfaces.
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("format must be HOST:PORT: %w", err)
	}
	if port == "" {
		return fmt.Errorf("format must be HOST:PORT: missing port in %q", addr)
	}
	return nil
}

func validateProxy(p string) error {
	if strings.Contains(p, "/") {
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("invalid CIDR %q", p)
		}
		return nil
	}
	if net.ParseIP(p) == nil {
		return fmt.Errorf("invalid IP %q", p)
	}
	return nil
}

// LoadOrDefault loads configuration or returns defaults on error.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}
