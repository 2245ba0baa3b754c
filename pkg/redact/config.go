package redact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loupelabs/loupe/pkg/config"
)

const configFileName = "redaction.json"

// fileConfig is the on-disk shape of a custom pattern file.
type fileConfig struct {
	Patterns []Pattern `json:"patterns"`
}

// ConfigPath returns the custom pattern file location in the loupe state
// directory.
func ConfigPath() (string, error) {
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Where the active pattern set came from.
const (
	SourceBuiltin = "builtin"
	SourceCustom  = "custom"
)

// ActivePatterns returns the pattern set a Load would compile and where
// it came from.
func ActivePatterns() ([]Pattern, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPatterns(), SourceBuiltin, nil
		}
		return nil, "", fmt.Errorf("failed to read redaction config: %w", err)
	}

	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse redaction config: %w", err)
	}
	if len(cfg.Patterns) == 0 {
		return DefaultPatterns(), SourceBuiltin, nil
	}
	return cfg.Patterns, SourceCustom, nil
}

// Load builds a Redactor from the custom pattern file if one exists, the
// built-in set otherwise. Custom patterns replace the built-ins entirely
// so a user can also narrow the set.
func Load() (*Redactor, error) {
	patterns, _, err := ActivePatterns()
	if err != nil {
		return nil, err
	}
	return New(patterns)
}

// WriteDefaultConfig writes the built-in pattern set to the custom
// pattern file as a starting point for editing.
func WriteDefaultConfig() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(fileConfig{Patterns: DefaultPatterns()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal redaction config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write redaction config: %w", err)
	}
	return path, nil
}
