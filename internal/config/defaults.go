package config

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Store: StoreConfig{
			URL: "redis://localhost:6379/0",
		},
		Tick: TickConfig{
			IntervalMs:         10000,
			EmulatorSettleMs:   150,
			SnapshotEveryTurns: 50,
		},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 30,
		},
		Admin: AdminConfig{
			Secret:     "",
			TrustProxy: "none",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Outputs:  []string{"console", "file"},
			FilePath: "logs/gameserver.log",
		},
	}
}
