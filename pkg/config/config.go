package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Backend modes.
const (
	ModeDirect  = "direct"
	ModeGateway = "gateway"
)

// Aggregation sample caps per backend mode. The gateway path is slower and
// more expensive per record, so it samples less. Both are policy knobs, not
// invariants, and can be overridden in the config file.
const (
	DefaultDirectSampleLimit  = 1000
	DefaultGatewaySampleLimit = 200
)

// Config holds credentials and backend selection, stored at
// ~/.loupe/config.json.
type Config struct {
	APIKey             string `json:"api_key"`
	Mode               string `json:"mode"`
	Region             string `json:"region"`
	GatewayURL         string `json:"gateway_url,omitempty"`
	DirectSampleLimit  int    `json:"direct_sample_limit,omitempty"`
	GatewaySampleLimit int    `json:"gateway_sample_limit,omitempty"`
}

func defaults() *Config {
	return &Config{
		Mode:               ModeDirect,
		Region:             "us",
		DirectSampleLimit:  DefaultDirectSampleLimit,
		GatewaySampleLimit: DefaultGatewaySampleLimit,
	}
}

// Load reads the config file, returning defaults if it doesn't exist.
// LOUPE_API_KEY overrides the stored key.
func Load() (*Config, error) {
	cfg := defaults()

	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Mode == "" {
		cfg.Mode = ModeDirect
	}
	if cfg.Region == "" {
		cfg.Region = "us"
	}
	if cfg.DirectSampleLimit <= 0 {
		cfg.DirectSampleLimit = DefaultDirectSampleLimit
	}
	if cfg.GatewaySampleLimit <= 0 {
		cfg.GatewaySampleLimit = DefaultGatewaySampleLimit
	}

	if key := os.Getenv("LOUPE_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	return cfg, nil
}

// Save validates and writes the config. The write goes through a temp file
// and atomic rename so a crash never leaves a half-written config behind.
func Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	path, err := Path()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config: %w", err)
	}

	return nil
}

// Path returns the config file location. LOUPE_CONFIG_PATH overrides the
// default, which tests rely on.
func Path() (string, error) {
	if p := os.Getenv("LOUPE_CONFIG_PATH"); p != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".loupe", "config.json"), nil
}

// StateDir returns the directory holding loupe's local state (config,
// history database, logs).
func StateDir() (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// Validate checks mode, region, key format, and gateway URL.
func (c *Config) Validate() error {
	if c.Mode != ModeDirect && c.Mode != ModeGateway {
		return fmt.Errorf("invalid mode %q (use %s or %s)", c.Mode, ModeDirect, ModeGateway)
	}
	if c.Region != "us" && c.Region != "eu" {
		return fmt.Errorf("invalid region %q (use us or eu)", c.Region)
	}
	if err := ValidateAPIKey(c.APIKey); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	if err := ValidateGatewayURL(c.GatewayURL); err != nil {
		return fmt.Errorf("invalid gateway URL: %w", err)
	}
	if c.Mode == ModeGateway && c.GatewayURL == "" {
		return fmt.Errorf("gateway mode requires a gateway URL")
	}
	return nil
}

// ValidateGatewayURL checks the gateway base URL. Empty is allowed (not
// configured).
func ValidateGatewayURL(raw string) error {
	if raw == "" {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}

// ValidateAPIKey checks the key format. Empty is allowed (not configured).
func ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return nil
	}

	const minKeyLength = 16
	if len(apiKey) < minKeyLength {
		return fmt.Errorf("api key too short (minimum %d characters)", minKeyLength)
	}
	if strings.ContainsAny(apiKey, " \t\n\r") {
		return fmt.Errorf("api key contains invalid whitespace characters")
	}
	return nil
}

// EnsureAuthenticated loads the config and verifies a key is present.
func EnsureAuthenticated() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("not authenticated. Run 'loupe login' first")
	}
	return cfg, nil
}

// SampleLimit returns the aggregation sample cap for the active mode.
func (c *Config) SampleLimit() int {
	if c.Mode == ModeGateway {
		return c.GatewaySampleLimit
	}
	return c.DirectSampleLimit
}
