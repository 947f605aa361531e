package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name searched for in standard locations.
const FileName = "liteviz.yaml"

// EnvPath names an environment variable holding a config path. It is
// consulted after -config and before the search locations.
const EnvPath = "LITEVIZ_CONFIG"

// Load builds the configuration from defaults, then the config file, then
// flags, and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if path := resolvePath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath() string {
	if p := ConfigPath(); p != "" {
		return p
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return findConfigFile()
}

// findConfigFile returns the first existing file among ./liteviz.yaml and
// the per-user config directory.
func findConfigFile() string {
	for _, dir := range []string{".", ConfigDir()} {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "LiteViz")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "LiteViz")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "liteviz")
	}
	return filepath.Join(home, ".config", "liteviz")
}

// loadFromFile merges a YAML file over the values already in cfg. Unknown
// keys are rejected so a misspelled setting does not silently fall back to
// its default. An empty file changes nothing.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
