package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// State values accepted in the config file and on the command line.
const (
	StateOn  = "on"
	StateOff = "off"
)

// CommandsConfig holds the commands run on each transition.
type CommandsConfig struct {
	On  string `yaml:"on"`
	Off string `yaml:"off"`
}

// IconsConfig holds the icon names for each state.
type IconsConfig struct {
	On  string `yaml:"on"`
	Off string `yaml:"off"`
}

// Config is the top-level configuration file structure.
type Config struct {
	Commands       CommandsConfig `yaml:"commands"`
	Icons          IconsConfig    `yaml:"icons"`
	Title          string         `yaml:"title"`
	State          string         `yaml:"state"`
	LogLevel       string         `yaml:"log_level"`
	LogFormat      string         `yaml:"log_format"`
	NotifyFailures *bool          `yaml:"notify_failures"`
}

// DefaultPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "toggler", "config.yaml")
}

// Load reads and parses a YAML config file. If the file does not exist,
// it returns an empty Config and a nil error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks enumerated fields. Empty values mean "not set".
func (c *Config) Validate() error {
	if c.State != "" {
		if err := ValidateState(c.State); err != nil {
			return err
		}
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q, use 'text' or 'json'", c.LogFormat)
	}
	return nil
}

// ValidateState checks an initial state value.
func ValidateState(s string) error {
	switch s {
	case StateOn, StateOff:
		return nil
	default:
		return fmt.Errorf("unknown state %q, use 'on' or 'off'", s)
	}
}
