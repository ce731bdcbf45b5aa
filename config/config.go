// Package config handles CLI configuration for pvefleet.
//
// Config is stored at $XDG_CONFIG_HOME/pvefleet/config.yaml (defaults to
// ~/.config/pvefleet/config.yaml). It carries the registry database path,
// SSH connection defaults, and container discovery overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SSH holds connection defaults applied to every remote host.
type SSH struct {
	KnownHostsPath  string `yaml:"known-hosts,omitempty"`
	InsecureHostKey bool   `yaml:"insecure-host-key,omitempty"`
	TimeoutSeconds  int    `yaml:"timeout-seconds,omitempty"`
}

// Timeout returns the configured command timeout, or zero when unset.
func (s SSH) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Scan holds container discovery overrides.
type Scan struct {
	ConfigDir string `yaml:"config-dir,omitempty"` // defaults to /etc/pve/lxc
	Marker    string `yaml:"marker,omitempty"`     // defaults to community-script
}

// Config is the root configuration document.
type Config struct {
	Database string `yaml:"database,omitempty"` // sqlite registry path
	SSH      SSH    `yaml:"ssh,omitempty"`
	Scan     Scan   `yaml:"scan,omitempty"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/pvefleet/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "pvefleet", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "pvefleet", "config.yaml")
}

// DatabasePath returns the registry database location. The config value wins;
// otherwise the database lives next to the config file.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(filepath.Dir(Path()), "registry.db")
}

// Load reads the config file. If the file does not exist, an empty Config
// is returned (not an error).
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
