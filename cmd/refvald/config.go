package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML decoding of strings like
// "30s" or "720h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the daemon configuration. Flag values override file values.
type Config struct {
	// Listen is the HTTP listen address for the submit/query API.
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Validity is the window applied to reference values whose
	// submission carries no expiration parameter.
	Validity Duration `yaml:"validity"`

	// ExtractTimeout bounds each extractor invocation. Zero disables
	// the bound.
	ExtractTimeout Duration `yaml:"extract_timeout"`

	Channel ChannelConfig `yaml:"channel"`
	Cache   CacheConfig   `yaml:"cache"`
}

// ChannelConfig selects the notification channel. An empty target
// disables publishing to an external sink; notifications are logged
// instead.
type ChannelConfig struct {
	Target    string `yaml:"target"`
	Source    string `yaml:"source"`
	EventType string `yaml:"event_type"`
}

// CacheConfig selects the reference value store.
type CacheConfig struct {
	// Backend is "memory" or "disk".
	Backend string `yaml:"backend"`
	// Dir is the disk backend's root directory.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when no file or flags
// are given.
func DefaultConfig() Config {
	return Config{
		Listen:   ":8084",
		LogLevel: "info",
		Cache:    CacheConfig{Backend: "memory"},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory":
	case "disk":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache backend %q requires cache.dir", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
