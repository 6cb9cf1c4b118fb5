// Package config loads the game server's configuration from an optional
// TOML file, then applies environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Store       StoreConfig     `toml:"store"`
	Tick        TickConfig      `toml:"tick"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Admin       AdminConfig     `toml:"admin"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StoreConfig contains the shared key-value store connection settings.
type StoreConfig struct {
	URL string `toml:"url"`
}

// TickConfig contains the tick processor's cadence settings.
type TickConfig struct {
	IntervalMs         int   `toml:"interval_ms"`
	EmulatorSettleMs   int   `toml:"emulator_settle_ms"`
	SnapshotEveryTurns int64 `toml:"snapshot_every_turns"`
}

// RateLimitConfig holds the RATE_LIMIT_RPS/RATE_LIMIT_BURST settings. The
// rate limiter does not read them: it takes limits from its plan table, and
// an unrecognised plan falls back to the credential's rpsLimit with a burst
// of twice that.
type RateLimitConfig struct {
	RPS   int `toml:"rps"`
	Burst int `toml:"burst"`
}

// AdminConfig contains the admin control-plane settings.
type AdminConfig struct {
	Secret     string `toml:"secret"`
	TrustProxy string `toml:"trust_proxy"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

const (
	minTickIntervalMs = 1000
	maxTickIntervalMs = 60000
	minAdminSecretLen = 32
)

// IsDevMode returns true when the environment is "dev" (case-insensitive,
// trimmed).
func (c *Config) IsDevMode() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "dev"
}

// normalizeEnvironment maps environment aliases to canonical short forms.
func normalizeEnvironment(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development":
		return "dev"
	case "production":
		return "prod"
	default:
		return env
	}
}

// Addr returns the host:port the HTTP server should listen on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// An empty path skips the file stage.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// ones; environment variables always win last.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Environment = normalizeEnvironment(cfg.Environment)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration's invariants.
func (c *Config) Validate() error {
	if c.Tick.IntervalMs < minTickIntervalMs || c.Tick.IntervalMs > maxTickIntervalMs {
		return fmt.Errorf("tick interval %dms out of range [%d, %d]", c.Tick.IntervalMs, minTickIntervalMs, maxTickIntervalMs)
	}
	switch c.Admin.TrustProxy {
	case "none", "cloudflare", "any":
	default:
		return fmt.Errorf("invalid trust_proxy mode %q", c.Admin.TrustProxy)
	}
	if c.Admin.Secret != "" && len(c.Admin.Secret) < minAdminSecretLen {
		return fmt.Errorf("admin.secret must be at least %d characters when set", minAdminSecretLen)
	}
	if c.Tick.SnapshotEveryTurns < 0 {
		return fmt.Errorf("tick.snapshot_every_turns must be >= 0")
	}
	return nil
}

// applyEnvOverrides applies environment-variable overrides, which always
// win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STORE_URL"); v != "" {
		cfg.Store.URL = v
	}
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tick.IntervalMs = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RPS = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		cfg.Admin.Secret = v
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		cfg.Admin.TrustProxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SNAPSHOT_EVERY_TURNS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Tick.SnapshotEveryTurns = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(cfg *Config, port int, host string) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
}
