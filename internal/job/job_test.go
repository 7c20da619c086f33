package job

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{
			name: "complete",
			spec: Spec{Name: "backup", Schedule: "0 0 3 * * *", Process: "/usr/bin/rsync", Command: "-a /src /dst"},
		},
		{
			name: "empty command is allowed",
			spec: Spec{Name: "ping", Schedule: "* * * * * *", Process: "/bin/true"},
		},
		{
			name:    "missing process",
			spec:    Spec{Name: "broken", Schedule: "* * * * * *"},
			wantErr: `job "broken": missing process`,
		},
		{
			name:    "missing everything",
			spec:    Spec{},
			wantErr: `job "": missing name, schedule, process`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSpec))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestResultOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSucceeded, Result{}.Outcome())
	assert.Equal(t, OutcomeExitError, Result{ExitCode: 2}.Outcome())
	assert.Equal(t, OutcomeFailed, Result{ExitCode: -1, Err: errors.New("no such file")}.Outcome())

	assert.Equal(t, "exit_error", OutcomeExitError.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestResultDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	r := Result{StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, r.Duration())

	assert.Zero(t, Result{FinishedAt: start}.Duration(), "never started")
}
