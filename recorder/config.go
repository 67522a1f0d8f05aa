package recorder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the recorder's YAML configuration file.
type Config struct {
	// BackendURL is the SOPify API root, e.g. "http://localhost:8080".
	BackendURL string `yaml:"backend_url"`

	// CompanionURL is the web app origin whose localStorage carries the
	// auth token.
	CompanionURL string `yaml:"companion_url"`

	// RemoteBrowser is a WebSocket URL of an external Chrome. Empty =
	// launch locally.
	RemoteBrowser string `yaml:"remote_browser"`

	// Headless launches Chrome without a window. Defaults to false:
	// recording is an interactive activity.
	Headless bool `yaml:"headless"`

	// StatePath is the SQLite file holding session state. Default:
	// "recorder.db".
	StatePath string `yaml:"state_path"`

	// LogLevel is debug, info, warn, or error. Default: info.
	LogLevel string `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:8080"
	}
	if c.CompanionURL == "" {
		c.CompanionURL = "http://localhost:3000"
	}
	if c.StatePath == "" {
		c.StatePath = "recorder.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LoadConfig reads a YAML config file. A missing path yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("recorder: read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("recorder: parse config: %w", err)
		}
	}
	cfg.defaults()
	return cfg, nil
}
