// Package config loads guestmap configuration from YAML.
//
// Config file locations (priority order):
//  1. $GUESTMAP_CONFIG
//  2. ./guestmap.yaml
//  3. ~/.config/guestmap/config.yaml
//  4. /etc/guestmap/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"guestmap/internal/domain"
)

// Config is the full guestmap configuration
type Config struct {
	Targets             []domain.VMTarget           `yaml:"targets"`
	Credentials         CredentialsConfig           `yaml:"credentials"`
	DatabaseCredentials []domain.DatabaseCredential `yaml:"database_credentials"`
	Discovery           DiscoveryConfig             `yaml:"discovery"`
	Database            DatabaseConfig              `yaml:"database"`
	Server              ServerConfig                `yaml:"server"`
}

// CredentialsConfig holds the ordered credential lists per OS family
type CredentialsConfig struct {
	Linux   []domain.Credential `yaml:"linux"`
	Windows []domain.Credential `yaml:"windows"`
}

// DiscoveryConfig tunes the scan scheduler
type DiscoveryConfig struct {
	// Concurrency bounds the worker pool
	Concurrency int `yaml:"concurrency"`
	// ConnectTimeoutSeconds bounds TCP dial plus handshake
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	// CommandTimeoutSeconds bounds each remote command
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`
	// VMTimeoutSeconds caps one VM's whole scan; 0 means unlimited
	VMTimeoutSeconds int `yaml:"vm_timeout_seconds"`
	// Preflight enables the transport-port reachability check
	Preflight bool `yaml:"preflight"`
}

// DatabaseConfig locates the run-history store
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// FindConfigPath returns the first config file that exists, "" if none
func FindConfigPath() string {
	if path := os.Getenv("GUESTMAP_CONFIG"); path != "" {
		return path
	}

	candidates := []string{"./guestmap.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "guestmap", "config.yaml"))
	}
	candidates = append(candidates, "/etc/guestmap/config.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Discovery.Concurrency == 0 {
		c.Discovery.Concurrency = 5
	}
	if c.Discovery.ConnectTimeoutSeconds == 0 {
		c.Discovery.ConnectTimeoutSeconds = 10
	}
	if c.Discovery.CommandTimeoutSeconds == 0 {
		c.Discovery.CommandTimeoutSeconds = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "./guestmap.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// ConnectTimeout returns the dial timeout as a duration
func (d DiscoveryConfig) ConnectTimeout() time.Duration {
	return time.Duration(d.ConnectTimeoutSeconds) * time.Second
}

// CommandTimeout returns the per-command timeout as a duration
func (d DiscoveryConfig) CommandTimeout() time.Duration {
	return time.Duration(d.CommandTimeoutSeconds) * time.Second
}

// VMTimeout returns the per-VM time limit as a duration, 0 for unlimited
func (d DiscoveryConfig) VMTimeout() time.Duration {
	return time.Duration(d.VMTimeoutSeconds) * time.Second
}
