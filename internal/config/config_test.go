package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Tick.IntervalMs != 10000 {
		t.Errorf("default tick interval = %d, want 10000", cfg.Tick.IntervalMs)
	}
	if cfg.RateLimit.RPS != 20 || cfg.RateLimit.Burst != 30 {
		t.Errorf("default rate limit = (%d, %d), want (20, 30)", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	if cfg.Admin.TrustProxy != "none" {
		t.Errorf("default trust proxy = %q, want none", cfg.Admin.TrustProxy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gameserver.toml")
	content := `
environment = "dev"

[server]
port = 9001
host = "127.0.0.1"

[store]
url = "redis://redis.internal:6379/1"

[tick]
interval_ms = 5000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Store.URL != "redis://redis.internal:6379/1" {
		t.Errorf("store url = %q", cfg.Store.URL)
	}
	if cfg.Tick.IntervalMs != 5000 {
		t.Errorf("tick interval = %d, want 5000", cfg.Tick.IntervalMs)
	}
	// Values the file doesn't set keep their defaults.
	if cfg.RateLimit.RPS != 20 {
		t.Errorf("rps = %d, want default 20", cfg.RateLimit.RPS)
	}
	if !cfg.IsDevMode() {
		t.Error("expected dev mode")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("STORE_URL", "redis://env:6379/0")
	t.Setenv("TICK_INTERVAL_MS", "2000")
	t.Setenv("TRUST_PROXY", "cloudflare")
	t.Setenv("ADMIN_SECRET", strings.Repeat("s", 32))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromFiles()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Store.URL != "redis://env:6379/0" {
		t.Errorf("store url = %q", cfg.Store.URL)
	}
	if cfg.Tick.IntervalMs != 2000 {
		t.Errorf("tick interval = %d", cfg.Tick.IntervalMs)
	}
	if cfg.Admin.TrustProxy != "cloudflare" {
		t.Errorf("trust proxy = %q", cfg.Admin.TrustProxy)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config { return NewDefaultConfig() }

	cfg := base()
	cfg.Tick.IntervalMs = 500
	if err := cfg.Validate(); err == nil {
		t.Error("tick interval below 1000ms must fail")
	}

	cfg = base()
	cfg.Tick.IntervalMs = 61000
	if err := cfg.Validate(); err == nil {
		t.Error("tick interval above 60000ms must fail")
	}

	cfg = base()
	cfg.Admin.TrustProxy = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown trust proxy mode must fail")
	}

	cfg = base()
	cfg.Admin.Secret = "too-short"
	if err := cfg.Validate(); err == nil {
		t.Error("short admin secret must fail")
	}

	// Unset secret is allowed: the admin surface simply stays disabled.
	cfg = base()
	cfg.Admin.Secret = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty admin secret must validate: %v", err)
	}

	cfg = base()
	cfg.Admin.Secret = strings.Repeat("x", 32)
	if err := cfg.Validate(); err != nil {
		t.Errorf("32-char secret must validate: %v", err)
	}
}

func TestNormalizeEnvironment(t *testing.T) {
	tests := map[string]string{
		"development": "dev",
		"production":  "prod",
		"dev":         "dev",
		"staging":     "staging",
	}
	for in, want := range tests {
		if got := normalizeEnvironment(in); got != want {
			t.Errorf("normalizeEnvironment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 7070, "10.0.0.1")
	if cfg.Server.Port != 7070 || cfg.Server.Host != "10.0.0.1" {
		t.Errorf("flag overrides not applied: %+v", cfg.Server)
	}

	ApplyFlagOverrides(cfg, 0, "")
	if cfg.Server.Port != 7070 || cfg.Server.Host != "10.0.0.1" {
		t.Error("zero-value flags must not clobber existing values")
	}
}
