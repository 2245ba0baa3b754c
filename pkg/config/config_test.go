package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("LOUPE_CONFIG_PATH", path)
	t.Setenv("LOUPE_API_KEY", "")
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	withTempConfig(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeDirect {
		t.Errorf("Mode = %q, want direct", cfg.Mode)
	}
	if cfg.Region != "us" {
		t.Errorf("Region = %q, want us", cfg.Region)
	}
	if cfg.DirectSampleLimit != DefaultDirectSampleLimit {
		t.Errorf("DirectSampleLimit = %d, want %d", cfg.DirectSampleLimit, DefaultDirectSampleLimit)
	}
	if cfg.GatewaySampleLimit != DefaultGatewaySampleLimit {
		t.Errorf("GatewaySampleLimit = %d, want %d", cfg.GatewaySampleLimit, DefaultGatewaySampleLimit)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := withTempConfig(t)

	cfg := defaults()
	cfg.APIKey = "sk-loupe-0123456789abcdef"
	cfg.Region = "eu"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 0600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.APIKey != cfg.APIKey || loaded.Region != "eu" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestEnvKeyOverride(t *testing.T) {
	withTempConfig(t)

	cfg := defaults()
	cfg.APIKey = "sk-loupe-storedkey12345"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Setenv("LOUPE_API_KEY", "sk-loupe-envkey1234567")
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.APIKey != "sk-loupe-envkey1234567" {
		t.Errorf("APIKey = %q, want env override", loaded.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"bad mode", func(c *Config) { c.Mode = "proxy" }, true},
		{"bad region", func(c *Config) { c.Region = "ap" }, true},
		{"short key", func(c *Config) { c.APIKey = "short" }, true},
		{"key with whitespace", func(c *Config) { c.APIKey = "sk loupe 0123456789" }, true},
		{"gateway mode without url", func(c *Config) { c.Mode = ModeGateway }, true},
		{"gateway mode with url", func(c *Config) {
			c.Mode = ModeGateway
			c.GatewayURL = "https://gw.internal:8443"
		}, false},
		{"gateway url missing scheme", func(c *Config) { c.GatewayURL = "gw.internal" }, true},
		{"gateway url bad scheme", func(c *Config) { c.GatewayURL = "ftp://gw.internal" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSampleLimitPerMode(t *testing.T) {
	cfg := defaults()
	if got := cfg.SampleLimit(); got != DefaultDirectSampleLimit {
		t.Errorf("direct SampleLimit = %d, want %d", got, DefaultDirectSampleLimit)
	}
	cfg.Mode = ModeGateway
	if got := cfg.SampleLimit(); got != DefaultGatewaySampleLimit {
		t.Errorf("gateway SampleLimit = %d, want %d", got, DefaultGatewaySampleLimit)
	}
}

func TestEnsureAuthenticated(t *testing.T) {
	withTempConfig(t)

	if _, err := EnsureAuthenticated(); err == nil {
		t.Error("EnsureAuthenticated succeeded with no key, want error")
	}

	cfg := defaults()
	cfg.APIKey = "sk-loupe-0123456789abcdef"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := EnsureAuthenticated(); err != nil {
		t.Errorf("EnsureAuthenticated: %v", err)
	}
}
