// Package executor runs one job execution as a child process and captures
// its outcome.
package executor

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"

	"github.com/livinlefevreloca/cronexec/internal/job"
)

// ErrSpawn marks a process that could not be started.
var ErrSpawn = errors.New("executor: spawn failed")

// Executor launches job processes. It is safe for concurrent use.
type Executor struct {
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an executor with validated configuration
func New(config Config, logger *slog.Logger) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid executor config")
	}
	return &Executor{
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SplitArgs turns a raw command string into process arguments
func SplitArgs(mode, command string) ([]string, error) {
	if mode == SplitShell {
		args, err := shellquote.Split(command)
		if err != nil {
			return nil, errors.Wrapf(err, "split command %q", command)
		}
		return args, nil
	}
	return strings.Fields(command), nil
}

// Run executes snap.Process with the arguments from snap.Command and waits
// for it to exit. It never returns an error directly; spawn failures are
// reported through Result.Err marked with ErrSpawn. Cancelling ctx kills
// the process and reports the run as failed with ctx's error.
func (e *Executor) Run(ctx context.Context, snap job.Snapshot) job.Result {
	result := job.Result{
		JobID:       snap.JobID,
		Name:        snap.Name,
		ScheduledAt: snap.ScheduledAt,
		ExitCode:    -1,
	}

	args, err := SplitArgs(e.config.ArgSplitting, snap.Command)
	if err != nil {
		result.Err = errors.Mark(errors.Wrapf(err, "job %q", snap.Name), ErrSpawn)
		return result
	}

	e.logger.Info("job running", "job", snap.Name, "process", snap.Process, "args", args)

	cmd := exec.CommandContext(ctx, snap.Process, args...)
	cmd.Dir = e.config.WorkDir
	if len(e.config.Env) > 0 {
		cmd.Env = append(os.Environ(), e.config.Env...)
	}

	stdout := &cappedBuffer{limit: e.config.MaxOutputBytes}
	stderr := &cappedBuffer{limit: e.config.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	result.StartedAt = e.now()
	if err := cmd.Start(); err != nil {
		result.FinishedAt = e.now()
		result.Err = errors.Mark(errors.Wrapf(err, "start %q for job %q", snap.Process, snap.Name), ErrSpawn)
		return result
	}

	waitErr := cmd.Wait()
	result.FinishedAt = e.now()
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	result.StdoutTruncated = stdout.truncated
	result.StderrTruncated = stderr.truncated

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		result.ExitCode = 0
	case ctx.Err() != nil:
		// Killed through ctx, not the job's own exit
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		result.Err = errors.Wrapf(ctx.Err(), "job %q cancelled", snap.Name)
	case errors.As(waitErr, &exitErr):
		// -1 when killed by a signal
		result.ExitCode = exitErr.ExitCode()
	default:
		result.Err = errors.Wrapf(waitErr, "wait for job %q", snap.Name)
	}

	return result
}
