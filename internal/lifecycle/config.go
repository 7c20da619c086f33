package lifecycle

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Shutdown policies
const (
	// PolicyWait lets in-flight jobs run to completion
	PolicyWait = "wait"
	// PolicyCancel kills in-flight jobs once DrainTimeout has elapsed
	PolicyCancel = "cancel"
)

// Config defines how in-flight work is treated on shutdown
type Config struct {
	Policy string `toml:"policy"`

	// How long PolicyCancel waits before killing in-flight jobs
	DrainTimeout time.Duration `toml:"drain_timeout"`
}

// DefaultConfig returns shutdown defaults: wait for every in-flight job
func DefaultConfig() Config {
	return Config{
		Policy:       PolicyWait,
		DrainTimeout: 30 * time.Second,
	}
}

// Validate checks shutdown configuration
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyWait:
	case PolicyCancel:
		if c.DrainTimeout <= 0 {
			return errors.Newf("drain_timeout must be positive with policy %q, got %v", PolicyCancel, c.DrainTimeout)
		}
	default:
		return errors.Newf("shutdown policy must be %q or %q, got %q", PolicyWait, PolicyCancel, c.Policy)
	}
	return nil
}
