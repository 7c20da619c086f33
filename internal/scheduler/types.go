package scheduler

import (
	"context"
	"time"

	"github.com/livinlefevreloca/cronexec/internal/inbox"
	"github.com/livinlefevreloca/cronexec/internal/job"
)

// Runner executes one job and reports its outcome. Implementations must be
// safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, snap job.Snapshot) job.Result
}

// ResultObserver is called on the main loop for every result. Observe must
// not block for long.
type ResultObserver interface {
	Observe(r job.Result)
}

// Clock is the scheduler's source of time. NewTimer returns a channel that
// fires once after d and a function that disarms it.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) (<-chan time.Time, func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// State is the scheduler's lifecycle state
type State int32

const (
	StateIdle         State = iota // created, Run not called
	StateWaiting                   // sleeping until the next fire time or a message
	StateDispatching               // launching due jobs
	StateShuttingDown              // no new dispatches, draining in-flight runs
	StateStopped                   // every in-flight run has reported
)

// String returns a human-readable representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateDispatching:
		return "dispatching"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of scheduler activity
type Stats struct {
	State       State
	Jobs        int
	InFlight    int64
	Dispatched  int64
	Succeeded   int64
	ExitErrors  int64
	Failures    int64
	SpawnErrors int64
	Skipped     int64
	Retired     int64
	Inbox       inbox.Stats
}
