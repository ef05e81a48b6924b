package logger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable that overrides logging.
const EnvPrefix = "LEVELFORGE_LOG_"

// Config describes where log records go.
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled *bool  `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

type fileConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig logs INFO and above as text to stderr.
func DefaultConfig() Config {
	console := true
	return Config{
		Level:          "INFO",
		ConsoleEnabled: &console,
		ConsoleFormat:  "text",
		FilePath:       "logs/levelforge.log",
		FileFormat:     "json",
		FileMaxSizeMB:  10,
		FileMaxBackups: 3,
		FileMaxAgeDays: 14,
	}
}

// Console reports whether console output is enabled.
func (c Config) Console() bool {
	return c.ConsoleEnabled == nil || *c.ConsoleEnabled
}

// LoadConfig reads the logging: section of a YAML file over the defaults,
// then applies LEVELFORGE_LOG_* overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read logging config: %w", err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return cfg, fmt.Errorf("failed to parse logging config: %w", err)
			}
			cfg.merge(fc.Logging)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Level != "" {
		c.Level = o.Level
	}
	if o.ConsoleEnabled != nil {
		c.ConsoleEnabled = o.ConsoleEnabled
	}
	if o.ConsoleFormat != "" {
		c.ConsoleFormat = o.ConsoleFormat
	}
	c.FileEnabled = c.FileEnabled || o.FileEnabled
	if o.FilePath != "" {
		c.FilePath = o.FilePath
	}
	if o.FileFormat != "" {
		c.FileFormat = o.FileFormat
	}
	if o.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = o.FileMaxSizeMB
	}
	if o.FileMaxBackups > 0 {
		c.FileMaxBackups = o.FileMaxBackups
	}
	if o.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = o.FileMaxAgeDays
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPrefix + "LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv(EnvPrefix + "CONSOLE_FORMAT"); v != "" {
		c.ConsoleFormat = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvPrefix + "CONSOLE_ENABLED")); err == nil {
		c.ConsoleEnabled = &v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvPrefix + "FILE_ENABLED")); err == nil {
		c.FileEnabled = v
	}
	if v := os.Getenv(EnvPrefix + "FILE_PATH"); v != "" {
		c.FilePath = v
	}
}
