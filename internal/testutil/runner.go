package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/livinlefevreloca/cronexec/internal/job"
)

// FakeRunner records every execution it is asked to perform and returns
// scripted results. Runs for a held job name block until released.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []job.Snapshot
	results map[string]job.Result
	gates   map[string]chan struct{}
	active  int
	peak    int
	now     func() time.Time
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		results: make(map[string]job.Result),
		gates:   make(map[string]chan struct{}),
		now:     time.Now,
	}
}

// SetResult scripts the exit code, output and error returned for name
func (f *FakeRunner) SetResult(name string, result job.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = result
}

// Hold makes subsequent runs of name block until Release is called or
// their context is cancelled.
func (f *FakeRunner) Hold(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[name] = make(chan struct{})
}

// Release unblocks all held runs of name
func (f *FakeRunner) Release(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gate, ok := f.gates[name]; ok {
		close(gate)
		delete(f.gates, name)
	}
}

func (f *FakeRunner) Run(ctx context.Context, snap job.Snapshot) job.Result {
	f.mu.Lock()
	f.calls = append(f.calls, snap)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	gate := f.gates[snap.Name]
	scripted := f.results[snap.Name]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	result := scripted
	result.JobID = snap.JobID
	result.Name = snap.Name
	result.ScheduledAt = snap.ScheduledAt
	result.StartedAt = f.now()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			result.ExitCode = -1
			result.Err = ctx.Err()
		}
	}

	result.FinishedAt = f.now()
	return result
}

// Calls returns a copy of every snapshot passed to Run, in call order
func (f *FakeRunner) Calls() []job.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]job.Snapshot, len(f.calls))
	copy(result, f.calls)
	return result
}

// CallsFor returns the snapshots passed to Run for name
func (f *FakeRunner) CallsFor(name string) []job.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]job.Snapshot, 0)
	for _, c := range f.calls {
		if c.Name == name {
			result = append(result, c)
		}
	}
	return result
}

func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Active returns the number of runs currently executing
func (f *FakeRunner) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Peak returns the highest number of simultaneous runs observed
func (f *FakeRunner) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}
