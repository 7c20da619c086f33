package stats

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Config defines configuration for the stats collector
type Config struct {
	// Inbox configuration
	InboxBufferSize  int           `toml:"inbox_buffer_size"`
	InboxSendTimeout time.Duration `toml:"inbox_send_timeout"`

	// FlushInterval is the length of a stats period. Zero disables the
	// collector.
	FlushInterval time.Duration `toml:"flush_interval"`
}

// DefaultConfig returns default stats collector configuration
func DefaultConfig() Config {
	return Config{
		InboxBufferSize:  1000,
		InboxSendTimeout: 5 * time.Second,
		FlushInterval:    15 * time.Minute,
	}
}

// Enabled reports whether stats should be collected
func (c Config) Enabled() bool {
	return c.FlushInterval > 0
}

// Validate checks stats configuration
func (c Config) Validate() error {
	if c.FlushInterval < 0 {
		return errors.Newf("flush_interval must not be negative, got %v", c.FlushInterval)
	}
	if !c.Enabled() {
		return nil
	}
	if c.InboxBufferSize <= 0 {
		return errors.Newf("inbox_buffer_size must be positive, got %d", c.InboxBufferSize)
	}
	if c.InboxSendTimeout <= 0 {
		return errors.Newf("inbox_send_timeout must be positive, got %v", c.InboxSendTimeout)
	}
	return nil
}
