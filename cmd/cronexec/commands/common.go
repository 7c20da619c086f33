// Package commands implements the cronexec command line.
package commands

import (
	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/livinlefevreloca/cronexec/internal/config"
	"github.com/livinlefevreloca/cronexec/internal/db"
	"github.com/livinlefevreloca/cronexec/internal/job"
	"github.com/livinlefevreloca/cronexec/internal/jobfile"
)

// ConfigPath is bound to the root --config flag
var ConfigPath string

// jobsPath overrides jobs.path and forces the file source when set
var jobsPath string

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(ConfigPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	if jobsPath != "" {
		cfg.Jobs.Source = config.SourceFile
		cfg.Jobs.Path = jobsPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// loadSpecs reads job definitions from the configured source
func loadSpecs(cfg *config.Config) ([]job.Spec, error) {
	if cfg.Jobs.Source != config.SourceSQLite {
		return jobfile.Load(cfg.Jobs.Path)
	}

	database, err := db.OpenWithConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	return database.EnabledSpecs()
}
