package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultNetwork     = "ethereum"
	defaultReceiptPoll = 2
	defaultEndpoint    = "http://localhost:8787/api/token-balances"

	configFile      = "config.json"
	deploymentsFile = "deployments.json"
)

// Load reads config from dir (or creates defaults). dir defaults to
// ~/.dappastra.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".dappastra")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.configDir = dir
	if cfg.RPCOverrides == nil {
		cfg.RPCOverrides = make(map[string]string)
	}
	if cfg.ReceiptPollSeconds <= 0 {
		cfg.ReceiptPollSeconds = defaultReceiptPoll
	}

	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// SetRPC overrides the RPC URL advertised when a network is added to the
// wallet. An empty url clears the override.
func (c *Config) SetRPC(network, url string) {
	if c.RPCOverrides == nil {
		c.RPCOverrides = make(map[string]string)
	}
	if url == "" {
		delete(c.RPCOverrides, network)
		return
	}
	c.RPCOverrides[network] = url
}

// ReceiptPoll is the receipt polling interval.
func (c *Config) ReceiptPoll() time.Duration {
	return time.Duration(c.ReceiptPollSeconds) * time.Second
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// LoadDeployments reads deployments.json.
func (c *Config) LoadDeployments() (*DeploymentsFile, error) {
	return loadJSON[DeploymentsFile](filepath.Join(c.configDir, deploymentsFile))
}

// RecordDeployment appends a deployed token to deployments.json.
func (c *Config) RecordDeployment(d Deployment) error {
	df, err := c.LoadDeployments()
	if err != nil {
		return fmt.Errorf("reading deployments: %w", err)
	}
	df.Deployments = append(df.Deployments, d)
	return saveJSON(filepath.Join(c.configDir, deploymentsFile), df)
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		DefaultNetwork:     defaultNetwork,
		BalanceEndpoint:    defaultEndpoint,
		ReceiptPollSeconds: defaultReceiptPoll,
		RPCOverrides:       make(map[string]string),
		configDir:          dir,
	}
}

func loadJSON[T any](path string) (*T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &zero, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
