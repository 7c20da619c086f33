package scheduler

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Overlap policies
const (
	// OverlapAllow starts a new run even if the previous one is still going
	OverlapAllow = "allow"
	// OverlapSkip drops a tick while a previous run of the same job is in flight
	OverlapSkip = "skip"
)

// Config defines configuration for the scheduler's main loop and dispatch
type Config struct {
	// IANA zone the cron expressions are evaluated in
	Timezone string `toml:"timezone"`

	// What to do when a job is due while its previous run is in flight
	Overlap string `toml:"overlap"`

	// Maximum number of simultaneously running jobs, 0 = unlimited
	MaxConcurrent int64 `toml:"max_concurrent"`

	// Result inbox buffer size
	InboxBufferSize int `toml:"inbox_buffer_size"`

	// How long a result send may block before it is reported
	InboxSendTimeout time.Duration `toml:"inbox_send_timeout"`
}

// DefaultConfig returns scheduler configuration defaults
func DefaultConfig() Config {
	return Config{
		Timezone:         "Local",
		Overlap:          OverlapAllow,
		MaxConcurrent:    0,
		InboxBufferSize:  1024,
		InboxSendTimeout: 5 * time.Second,
	}
}

// validateConfig validates scheduler configuration and returns error if invalid
func validateConfig(config Config) error {
	if _, err := loadLocation(config.Timezone); err != nil {
		return err
	}

	if config.Overlap != OverlapAllow && config.Overlap != OverlapSkip {
		return errors.Newf("overlap must be %q or %q, got %q", OverlapAllow, OverlapSkip, config.Overlap)
	}

	if config.MaxConcurrent < 0 {
		return errors.Newf("max_concurrent must not be negative, got %d", config.MaxConcurrent)
	}

	if config.InboxBufferSize <= 0 {
		return errors.Newf("inbox_buffer_size must be positive, got %d", config.InboxBufferSize)
	}

	if config.InboxSendTimeout <= 0 {
		return errors.Newf("inbox_send_timeout must be positive, got %v", config.InboxSendTimeout)
	}

	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "unknown timezone %q", name),
			"use an IANA name such as \"UTC\" or \"Europe/Berlin\"")
	}
	return loc, nil
}

// Validate checks scheduler configuration
func (c Config) Validate() error {
	return validateConfig(c)
}
