// Package registry holds the active jobs and answers "what fires next".
package registry

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/livinlefevreloca/cronexec/internal/cron"
	"github.com/livinlefevreloca/cronexec/internal/job"
)

var (
	// ErrExhausted is returned when a job's schedule can never fire again.
	// The job has been retired by the time the error is returned.
	ErrExhausted = errors.New("registry: schedule exhausted")

	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = errors.New("registry: job not found")
)

// ScheduledJob is a registered job together with its next fire time.
// Values returned by the registry are copies.
type ScheduledJob struct {
	ID       string
	Spec     job.Spec
	Schedule *cron.Schedule
	NextFire time.Time
}

// Snapshot returns the value handed to the executor when the job is
// dispatched.
func (sj ScheduledJob) Snapshot(dispatchedAt time.Time) job.Snapshot {
	return job.Snapshot{
		JobID:        sj.ID,
		Name:         sj.Spec.Name,
		Process:      sj.Spec.Process,
		Command:      sj.Spec.Command,
		ScheduledAt:  sj.NextFire,
		DispatchedAt: dispatchedAt,
	}
}

// IDFunc generates job IDs.
type IDFunc func() string

// Registry is a set of scheduled jobs ordered by (NextFire, ID).
type Registry struct {
	mu    sync.Mutex
	jobs  map[string]*entry
	queue fireQueue
	newID IDFunc
}

// New creates an empty registry. A nil newID uses random UUIDs.
func New(newID IDFunc) *Registry {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Registry{
		jobs:  make(map[string]*entry),
		newID: newID,
	}
}

// Register validates spec, parses its schedule and arms it with the first
// fire time after now.
// Returns an error marked with job.ErrInvalidSpec or cron.ErrParse for bad
// definitions, and ErrExhausted if the schedule never fires after now.
func (r *Registry) Register(spec job.Spec, now time.Time) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	schedule, err := cron.Parse(spec.Schedule)
	if err != nil {
		return "", errors.Wrapf(err, "job %q", spec.Name)
	}

	next, err := schedule.Next(now)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "job %q", spec.Name), ErrExhausted)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	if _, exists := r.jobs[id]; exists {
		return "", errors.Newf("duplicate job id %q", id)
	}

	e := &entry{job: ScheduledJob{ID: id, Spec: spec, Schedule: schedule, NextFire: next}}
	r.jobs[id] = e
	heap.Push(&r.queue, e)

	return id, nil
}

// NextDue returns the job with the globally minimum NextFire.
// Ties are broken by ID. Returns false if the registry is empty.
func (r *Registry) NextDue() (ScheduledJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return ScheduledJob{}, false
	}
	return r.queue[0].job, true
}

// Due returns every job whose NextFire is at or before now, ordered by
// (NextFire, ID). It does not modify the registry.
func (r *Registry) Due(now time.Time) []ScheduledJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []ScheduledJob
	for _, e := range r.queue {
		if !e.job.NextFire.After(now) {
			due = append(due, e.job)
		}
	}
	sortJobs(due)
	return due
}

// Advance recomputes the job's NextFire as the first match strictly after
// 'after' and returns it. If the schedule is exhausted the job is removed and
// an error marked with ErrExhausted is returned.
func (r *Registry) Advance(id string, after time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return time.Time{}, errors.Wrapf(ErrNotFound, "advance %q", id)
	}

	next, err := e.job.Schedule.Next(after)
	if err != nil {
		r.removeLocked(e)
		return time.Time{}, errors.Mark(errors.Wrapf(err, "job %q retired", e.job.Spec.Name), ErrExhausted)
	}

	e.job.NextFire = next
	heap.Fix(&r.queue, e.index)
	return next, nil
}

// Remove retires a job. Returns false if the ID is unknown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return false
	}
	r.removeLocked(e)
	return true
}

func (r *Registry) removeLocked(e *entry) {
	heap.Remove(&r.queue, e.index)
	delete(r.jobs, e.job.ID)
}

// Get returns a copy of a registered job.
func (r *Registry) Get(id string) (ScheduledJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return ScheduledJob{}, false
	}
	return e.job, true
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// List returns all registered jobs ordered by (NextFire, ID).
func (r *Registry) List() []ScheduledJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]ScheduledJob, 0, len(r.queue))
	for _, e := range r.queue {
		jobs = append(jobs, e.job)
	}
	sortJobs(jobs)
	return jobs
}
