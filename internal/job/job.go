// Package job defines the records that flow between the job sources, the
// registry, the scheduler and the executor.
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidSpec marks a job definition that fails validation.
var ErrInvalidSpec = errors.New("job: invalid spec")

var validate = validator.New()

// Spec is a job definition as supplied by a job source. It is not mutated
// after load.
type Spec struct {
	Name     string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Schedule string `json:"schedule" yaml:"schedule" toml:"schedule" validate:"required"`
	// Process is the executable to run
	Process string `json:"process" yaml:"process" toml:"process" validate:"required"`
	// Command is the raw argument string handed to Process
	Command string `json:"command" yaml:"command" toml:"command"`
}

// Validate checks that the required fields are present.
func (s Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			missing := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				missing = append(missing, strings.ToLower(fe.Field()))
			}
			return errors.Mark(errors.Newf("job %q: missing %s", s.Name, strings.Join(missing, ", ")), ErrInvalidSpec)
		}
		return errors.Mark(errors.Wrapf(err, "job %q", s.Name), ErrInvalidSpec)
	}
	return nil
}

// Snapshot is the value copy of a job handed to the executor at dispatch
// time. It never changes after dispatch.
type Snapshot struct {
	JobID        string
	Name         string
	Process      string
	Command      string
	ScheduledAt  time.Time
	DispatchedAt time.Time
}

// Result is the outcome of one execution. It lives only until it has been
// reported.
type Result struct {
	JobID       string
	Name        string
	ScheduledAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time

	// ExitCode is -1 when the process never ran or was killed by a signal
	ExitCode int
	Stdout   []byte
	Stderr   []byte

	StdoutTruncated bool
	StderrTruncated bool

	// Err is set when the process could not be started or waited for.
	// A non-zero exit code alone is not an error.
	Err error
}

// Outcome classifies a result
type Outcome int

const (
	OutcomeSucceeded Outcome = iota // exit code 0
	OutcomeExitError                // ran, non-zero exit
	OutcomeFailed                   // could not be run
)

// String returns a human-readable representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeExitError:
		return "exit_error"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports how the execution ended.
func (r Result) Outcome() Outcome {
	switch {
	case r.Err != nil:
		return OutcomeFailed
	case r.ExitCode != 0:
		return OutcomeExitError
	default:
		return OutcomeSucceeded
	}
}

// Duration returns the wall time the process ran for.
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String renders a result for logs and the CLI.
func (r Result) String() string {
	return fmt.Sprintf("%s[%s] %s exit=%d", r.Name, r.JobID, r.Outcome(), r.ExitCode)
}
