// ABOUTME: Configuration loading and parsing for scoutbase
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete scoutbase configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	TBA      TBAConfig      `yaml:"tba"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds the embedded database location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TBAConfig holds remote feed access configuration
type TBAConfig struct {
	BaseURL string `yaml:"base_url"`
	AuthKey string `yaml:"auth_key"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. If the environment variable is not set, it is replaced with
// an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts raw duration strings into time.Duration values,
// applying defaults for unset fields.
func parseDurations(cfg *Config) error {
	if cfg.TBA.TimeoutRaw == "" {
		cfg.TBA.Timeout = 10 * time.Second
		return nil
	}
	d, err := time.ParseDuration(cfg.TBA.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("invalid tba.timeout %q: %w", cfg.TBA.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("tba.timeout must be positive, got %q", cfg.TBA.TimeoutRaw)
	}
	cfg.TBA.Timeout = d
	return nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}
	return nil
}
