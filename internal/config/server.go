package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ServerConfig configures the balance proxy (dappastra serve).
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
	// RequestsPerMinute limits each client IP; 0 disables the limit.
	RequestsPerMinute int `toml:"requests_per_minute"`
	// MaxConcurrent caps in-flight requests; 0 disables the cap.
	MaxConcurrent   int      `toml:"max_concurrent"`
	UpstreamTimeout Duration `toml:"upstream_timeout"`
	MetricsEnabled  bool     `toml:"metrics_enabled"`
	// ExplorerAPI overrides a network's explorer API root, keyed by network.
	ExplorerAPI map[string]string `toml:"explorer_api"`
}

// Duration is a time.Duration written as a string ("15s") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultServerConfig returns the settings used without a config file.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr:        "localhost:8787",
		RequestsPerMinute: 60,
		MaxConcurrent:     100,
		UpstreamTimeout:   Duration{UpstreamTimeout},
		MetricsEnabled:    true,
		ExplorerAPI:       map[string]string{},
	}
}

// LoadServer reads a TOML server config. An empty path returns defaults;
// keys missing from the file keep their default values.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	if !strings.HasSuffix(path, ".toml") {
		return nil, fmt.Errorf("server config must be a .toml file: %s", path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server config: %w", err)
	}
	if err := toml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be >= 0")
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must be >= 0")
	}
	if c.UpstreamTimeout.Duration <= 0 {
		return fmt.Errorf("upstream_timeout must be positive")
	}
	return nil
}

// Encode renders the config as TOML (used by `serve --print-config`).
func (c *ServerConfig) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
