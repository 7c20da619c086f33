package executor

import (
	"github.com/cockroachdb/errors"
)

// Argument splitting modes
const (
	SplitWhitespace = "whitespace"
	SplitShell      = "shell"
)

// Config defines how job processes are launched and how much output is kept
type Config struct {
	// How the Command string is turned into arguments: whitespace or shell
	ArgSplitting string `toml:"arg_splitting"`

	// Per-stream output cap in bytes, 0 = unlimited
	MaxOutputBytes int `toml:"max_output_bytes"`

	// Working directory for child processes, empty = inherit
	WorkDir string `toml:"work_dir"`

	// Extra KEY=VALUE entries appended to the inherited environment
	Env []string `toml:"env"`
}

// DefaultConfig returns the executor defaults
func DefaultConfig() Config {
	return Config{
		ArgSplitting:   SplitWhitespace,
		MaxOutputBytes: 1 << 20,
	}
}

// Validate checks executor configuration
func (c Config) Validate() error {
	switch c.ArgSplitting {
	case SplitWhitespace, SplitShell:
	default:
		return errors.WithHint(
			errors.Newf("arg_splitting must be %q or %q, got %q", SplitWhitespace, SplitShell, c.ArgSplitting),
			"use \"shell\" to honour quotes in commands")
	}

	if c.MaxOutputBytes < 0 {
		return errors.Newf("max_output_bytes must not be negative, got %d", c.MaxOutputBytes)
	}

	return nil
}
