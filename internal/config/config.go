// Package config models arborplan.yml, the workspace configuration file.
// Secrets (completion API key, JWT signing secret) never live in the file;
// they come from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models arborplan.yml.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Completion struct {
		BaseURL          string `yaml:"base_url"`
		Model            string `yaml:"model"`
		ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
		ReadTimeoutMs    int    `yaml:"read_timeout_ms"`
	} `yaml:"completion"`
	Scheduling struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"scheduling"`
	Demo struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"demo"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run arbor init to create it", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Completion.BaseURL == "" {
		return fmt.Errorf("config.completion.base_url is required")
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("config.completion.model is required")
	}
	if c.Completion.ConnectTimeoutMs <= 0 {
		return fmt.Errorf("config.completion.connect_timeout_ms must be positive")
	}
	if c.Completion.ReadTimeoutMs <= 0 {
		return fmt.Errorf("config.completion.read_timeout_ms must be positive")
	}
	if c.Scheduling.Timezone == "" {
		return fmt.Errorf("config.scheduling.timezone is required")
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		return fmt.Errorf("config.scheduling.timezone is invalid: %w", err)
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "arborplan.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ConnectTimeout converts the configured connect timeout to a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Completion.ConnectTimeoutMs) * time.Millisecond
}

// ReadTimeout converts the configured read timeout to a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Completion.ReadTimeoutMs) * time.Millisecond
}

const defaultTemplate = `server:
  addr: :8080

completion:
  base_url: https://api.openai.com/v1
  model: gpt-4o-mini
  connect_timeout_ms: 10000
  read_timeout_ms: 20000

scheduling:
  timezone: America/New_York

demo:
  enabled: true
`
