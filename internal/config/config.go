package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/livinlefevreloca/cronexec/internal/db"
	"github.com/livinlefevreloca/cronexec/internal/executor"
	"github.com/livinlefevreloca/cronexec/internal/jobfile"
	"github.com/livinlefevreloca/cronexec/internal/lifecycle"
	"github.com/livinlefevreloca/cronexec/internal/logging"
	"github.com/livinlefevreloca/cronexec/internal/scheduler"
	"github.com/livinlefevreloca/cronexec/internal/stats"
)

// Environment variables that override file settings
const (
	EnvLogLevel  = "CRONEXEC_LOG_LEVEL"
	EnvLogFormat = "CRONEXEC_LOG_FORMAT"
	EnvJobsPath  = "CRONEXEC_JOBS_PATH"
	EnvTimezone  = "CRONEXEC_TIMEZONE"
)

// Job sources
const (
	SourceFile   = "file"
	SourceSQLite = "sqlite"
)

// Config represents the application configuration
type Config struct {
	Scheduler scheduler.Config `toml:"scheduler"`
	Executor  executor.Config  `toml:"executor"`
	Shutdown  lifecycle.Config `toml:"shutdown"`
	Jobs      JobsConfig       `toml:"jobs"`
	Database  db.Config        `toml:"database"`
	Logging   logging.Config   `toml:"logging"`
	Stats     stats.Config     `toml:"stats"`
}

// JobsConfig selects where job definitions come from
type JobsConfig struct {
	Source string `toml:"source" validate:"oneof=file sqlite"`
	Path   string `toml:"path" validate:"required_if=Source file"`
	// Reload the job file when it changes
	Watch bool `toml:"watch"`
}

var validate = validator.New()

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scheduler: scheduler.DefaultConfig(),
		Executor:  executor.DefaultConfig(),
		Shutdown:  lifecycle.DefaultConfig(),
		Jobs: JobsConfig{
			Source: SourceFile,
			Path:   jobfile.DefaultPath,
		},
		Database: db.DefaultConfig(),
		Logging:  logging.DefaultConfig(),
		Stats:    stats.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a TOML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Newf("config file does not exist: %s", path)
	}

	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.WithHint(
			errors.Newf("unknown config keys in %s: %v", path, undecoded),
			"check the section and key names for typos")
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. .env file and environment variables
// 4. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	config.ApplyEnv(os.LookupEnv)

	return config, nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v, ok := lookup(EnvJobsPath); ok && v != "" {
		c.Jobs.Path = v
	}
	if v, ok := lookup(EnvTimezone); ok && v != "" {
		c.Scheduler.Timezone = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c.Jobs); err != nil {
		return errors.Wrap(err, "jobs")
	}
	if c.Jobs.Source == SourceSQLite {
		if err := c.Database.Validate(); err != nil {
			return errors.Wrap(err, "database")
		}
	}
	if err := c.Scheduler.Validate(); err != nil {
		return errors.Wrap(err, "scheduler")
	}
	if err := c.Executor.Validate(); err != nil {
		return errors.Wrap(err, "executor")
	}
	if err := c.Shutdown.Validate(); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}
	if err := c.Stats.Validate(); err != nil {
		return errors.Wrap(err, "stats")
	}
	return nil
}
