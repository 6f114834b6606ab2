package main

import (
	"fmt"
	"time"

	"github.com/fluxorio/poolserver/pkg/config"
)

// envPrefix prefixes every environment override, e.g. POOLSERVER_POOL_WORKERS
const envPrefix = "POOLSERVER"

// AppConfig is the poolserver configuration file
type AppConfig struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Pool    PoolConfig    `yaml:"pool" json:"pool"`
	Site    SiteConfig    `yaml:"site" json:"site"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// AcceptLimit stops accepting after that many connections; 0 is unlimited
	AcceptLimit   int  `yaml:"accept_limit" json:"accept_limit"`
	RecoverPanics bool `yaml:"recover_panics" json:"recover_panics"`
}

type PoolConfig struct {
	Name    string `yaml:"name" json:"name"`
	Workers int    `yaml:"workers" json:"workers"`

	// Restart is "never" or "on-panic"
	Restart string `yaml:"restart" json:"restart"`
}

type SiteConfig struct {
	PublicDir string        `yaml:"public_dir" json:"public_dir"`
	SlowDelay time.Duration `yaml:"slow_delay" json:"slow_delay"`
}

type LogConfig struct {
	Format string `yaml:"format" json:"format"`
	Level  string `yaml:"level" json:"level"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Exporter   string  `yaml:"exporter" json:"exporter"`
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:          "127.0.0.1:7878",
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  5 * time.Second,
			RecoverPanics: true,
		},
		Pool: PoolConfig{
			Name:    "http",
			Workers: 4,
			Restart: "never",
		},
		Site: SiteConfig{
			SlowDelay: 5 * time.Second,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9090",
		},
		Tracing: TracingConfig{
			Exporter:   "stdout",
			SampleRate: 1,
		},
	}
}

// loadConfig layers defaults, the optional file at path and POOLSERVER_*
// environment overrides, then validates the result. Pool size is left to
// the pool itself to reject.
func loadConfig(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	if err := config.LoadWithEnv(path, envPrefix, cfg); err != nil {
		return nil, err
	}

	err := config.Validate(cfg,
		config.RequiredFields("Server.Addr", "Pool.Name"),
		config.OneOfValidator("Log.Format", "text", "json"),
		config.OneOfValidator("Log.Level", "debug", "info", "warn", "error"),
		config.OneOfValidator("Pool.Restart", "never", "on-panic"),
		config.OneOfValidator("Tracing.Exporter", "stdout", "none"),
		config.RangeValidator("Tracing.SampleRate", 0, 1),
		config.RangeValidator("Server.AcceptLimit", 0, 1<<31-1),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return nil, fmt.Errorf("invalid config: metrics.addr is required when metrics are enabled")
	}
	return cfg, nil
}
