package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/livinlefevreloca/cronexec/internal/executor"
	"github.com/livinlefevreloca/cronexec/internal/inbox"
	"github.com/livinlefevreloca/cronexec/internal/job"
	"github.com/livinlefevreloca/cronexec/internal/lifecycle"
	"github.com/livinlefevreloca/cronexec/internal/registry"
)

var (
	// ErrAlreadyStarted is returned by Run when called more than once
	ErrAlreadyStarted = errors.New("scheduler: already started")

	// ErrStopped is returned by Reload once the scheduler has stopped
	ErrStopped = errors.New("scheduler: stopped")
)

// Scheduler waits for the earliest due job, dispatches every due job to the
// runner on its own goroutine and collects the results.
type Scheduler struct {
	// Configuration
	config   Config
	shutdown lifecycle.Config
	logger   *slog.Logger
	location *time.Location
	clock    Clock

	// State
	registry  *registry.Registry
	runner    Runner
	observers []ResultObserver
	sem       *semaphore.Weighted
	state     atomic.Int32

	// Accessed only by the main loop
	inflight int
	running  map[string]int // job ID → runs in flight

	// Stats
	inflightGauge atomic.Int64
	dispatched    atomic.Int64
	succeeded     atomic.Int64
	exitErrors    atomic.Int64
	failures      atomic.Int64
	spawnErrors   atomic.Int64
	skipped       atomic.Int64
	retired       atomic.Int64

	// Communication
	results *inbox.Inbox[job.Result]
	reloads chan []job.Spec

	// Control
	execCtx    context.Context
	execCancel context.CancelFunc
	stopped    chan struct{}
}

// Option customises a scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithRegistry replaces the job registry, e.g. to inject deterministic IDs
func WithRegistry(r *registry.Registry) Option {
	return func(s *Scheduler) { s.registry = r }
}

// WithResultObserver adds an observer that sees every result after it has
// been accounted for
func WithResultObserver(o ResultObserver) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, o) }
}

// New creates a new scheduler instance with validated configuration
func New(config Config, shutdown lifecycle.Config, runner Runner, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "invalid scheduler config")
	}
	if err := shutdown.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shutdown config")
	}

	location, err := loadLocation(config.Timezone)
	if err != nil {
		return nil, err
	}

	// Child processes outlive the signal context; only the cancel policy
	// ends them.
	execCtx, execCancel := context.WithCancel(context.Background())

	s := &Scheduler{
		config:     config,
		shutdown:   shutdown,
		logger:     logger,
		location:   location,
		clock:      realClock{},
		registry:   registry.New(nil),
		runner:     runner,
		running:    make(map[string]int),
		results:    inbox.New[job.Result](config.InboxBufferSize, config.InboxSendTimeout, logger),
		reloads:    make(chan []job.Spec),
		execCtx:    execCtx,
		execCancel: execCancel,
		stopped:    make(chan struct{}),
	}
	if config.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(config.MaxConcurrent)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Register adds job definitions to the registry. It must be called before
// Run; afterwards use Reload. Invalid definitions are logged and skipped.
// Returns the number of jobs registered.
func (s *Scheduler) Register(specs []job.Spec) int {
	now := s.now()
	registered := 0
	for _, spec := range specs {
		if s.register(spec, now) {
			registered++
		}
	}

	s.logger.Info("jobs loaded",
		"registered", registered,
		"rejected", len(specs)-registered)

	return registered
}

func (s *Scheduler) register(spec job.Spec, now time.Time) bool {
	id, err := s.registry.Register(spec, now)
	if err != nil {
		s.logger.Error("job rejected",
			"job", spec.Name,
			"schedule", spec.Schedule,
			"error", err)
		return false
	}

	sj, _ := s.registry.Get(id)
	s.logger.Info("job registered",
		"job", spec.Name,
		"job_id", id,
		"schedule", spec.Schedule,
		"next_fire", sj.NextFire)
	return true
}

// Reload replaces the job set. Jobs whose definition is unchanged keep their
// ID and next fire time. Blocks until the main loop has taken the list;
// a reload that arrives while shutting down returns ErrStopped once the
// drain has finished.
func (s *Scheduler) Reload(ctx context.Context, specs []job.Spec) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}

	select {
	case s.reloads <- specs:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the main scheduler loop. It returns once ctx is cancelled and every
// in-flight run has reported back.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateWaiting)) {
		return ErrAlreadyStarted
	}

	s.logger.Info("starting scheduler",
		"jobs", s.registry.Len(),
		"timezone", s.location.String(),
		"overlap", s.config.Overlap,
		"max_concurrent", s.config.MaxConcurrent)

	for {
		if ctx.Err() != nil {
			s.handleShutdown()
			return nil
		}

		s.setState(StateWaiting)
		wake, stop := s.nextWake()

		select {
		case <-ctx.Done():
			stop()
			s.handleShutdown()
			return nil

		case <-wake:
			// A cancelled context takes priority over a timer that fired
			// at the same moment
			if ctx.Err() != nil {
				continue
			}
			s.dispatchDue()

		case result := <-s.results.C():
			stop()
			s.results.Received()
			s.handleResult(result)

		case specs := <-s.reloads:
			stop()
			s.applyReload(specs)
		}
	}
}

// nextWake arms a timer for the earliest NextFire. With no jobs registered
// the returned channel is nil and never fires.
func (s *Scheduler) nextWake() (<-chan time.Time, func() bool) {
	next, ok := s.registry.NextDue()
	if !ok {
		return nil, func() bool { return false }
	}
	return s.clock.NewTimer(next.NextFire.Sub(s.clock.Now()))
}

// dispatchDue launches every job whose NextFire has passed and advances each
// past now. Ticks missed while the process was suspended are caught up once.
func (s *Scheduler) dispatchDue() {
	s.setState(StateDispatching)
	now := s.now()

	for _, sj := range s.registry.Due(now) {
		s.dispatch(sj, now)

		next, err := s.registry.Advance(sj.ID, now)
		if err != nil {
			if errors.Is(err, registry.ErrExhausted) {
				s.retired.Add(1)
				s.logger.Error("schedule exhausted, job retired",
					"job", sj.Spec.Name,
					"job_id", sj.ID,
					"schedule", sj.Spec.Schedule,
					"error", err)
				continue
			}
			s.logger.Error("failed to advance job", "job", sj.Spec.Name, "job_id", sj.ID, "error", err)
			continue
		}

		s.logger.Debug("job advanced", "job", sj.Spec.Name, "next_fire", next)
	}
}

func (s *Scheduler) dispatch(sj registry.ScheduledJob, now time.Time) {
	if s.config.Overlap == OverlapSkip && s.running[sj.ID] > 0 {
		s.skipped.Add(1)
		s.logger.Warn("job skipped, previous run still in flight",
			"job", sj.Spec.Name,
			"job_id", sj.ID,
			"scheduled_at", sj.NextFire)
		return
	}

	snap := sj.Snapshot(now)

	s.inflight++
	s.running[sj.ID]++
	s.inflightGauge.Store(int64(s.inflight))
	s.dispatched.Add(1)

	s.logger.Info("job dispatched",
		"job", snap.Name,
		"job_id", snap.JobID,
		"scheduled_at", snap.ScheduledAt)

	go s.execute(snap)
}

// execute runs on its own goroutine per dispatch
func (s *Scheduler) execute(snap job.Snapshot) {
	if s.sem != nil {
		if err := s.sem.Acquire(s.execCtx, 1); err != nil {
			s.results.Send(context.Background(), job.Result{
				JobID:       snap.JobID,
				Name:        snap.Name,
				ScheduledAt: snap.ScheduledAt,
				ExitCode:    -1,
				Err:         errors.Wrap(err, "waiting for execution slot"),
			})
			return
		}
	}

	result := s.runner.Run(s.execCtx, snap)

	if s.sem != nil {
		s.sem.Release(1)
	}

	// Results are never dropped; the loop keeps receiving until every
	// in-flight run has reported.
	s.results.Send(context.Background(), result)
}

// handleResult records a finished run and logs its outcome
func (s *Scheduler) handleResult(r job.Result) {
	s.inflight--
	s.inflightGauge.Store(int64(s.inflight))
	if s.running[r.JobID] <= 1 {
		delete(s.running, r.JobID)
	} else {
		s.running[r.JobID]--
	}

	for _, o := range s.observers {
		o.Observe(r)
	}

	switch r.Outcome() {
	case job.OutcomeFailed:
		s.failures.Add(1)
		if errors.Is(r.Err, executor.ErrSpawn) {
			s.spawnErrors.Add(1)
		}
		s.logger.Error("job failed",
			"job", r.Name,
			"job_id", r.JobID,
			"scheduled_at", r.ScheduledAt,
			"error", r.Err)
		return
	case job.OutcomeExitError:
		s.exitErrors.Add(1)
		s.logger.Warn("job exited with non-zero status",
			"job", r.Name,
			"job_id", r.JobID,
			"exit_code", r.ExitCode)
	default:
		s.succeeded.Add(1)
	}

	s.logger.Info("job finished",
		"job", r.Name,
		"job_id", r.JobID,
		"exit_code", r.ExitCode,
		"duration", r.Duration())

	if len(r.Stdout) > 0 {
		s.logger.Debug("job stdout",
			"job", r.Name,
			"output", string(r.Stdout),
			"truncated", r.StdoutTruncated)
	}
	if len(r.Stderr) > 0 {
		s.logger.Warn("job stderr",
			"job", r.Name,
			"output", string(r.Stderr),
			"truncated", r.StderrTruncated)
	}
}

// applyReload diffs the new job list against the registry. Unchanged
// definitions keep their ID and NextFire.
func (s *Scheduler) applyReload(specs []job.Spec) {
	now := s.now()

	wanted := make(map[job.Spec]int, len(specs))
	for _, spec := range specs {
		wanted[spec]++
	}

	kept, removed, added := 0, 0, 0
	for _, sj := range s.registry.List() {
		if wanted[sj.Spec] > 0 {
			wanted[sj.Spec]--
			kept++
			continue
		}
		s.registry.Remove(sj.ID)
		removed++
		s.logger.Info("job removed", "job", sj.Spec.Name, "job_id", sj.ID)
	}

	for _, spec := range specs {
		if wanted[spec] == 0 {
			continue
		}
		wanted[spec]--
		if s.register(spec, now) {
			added++
		}
	}

	s.logger.Info("jobs reloaded",
		"kept", kept,
		"removed", removed,
		"added", added)
}

// handleShutdown stops dispatching and drains results until no run is in
// flight
func (s *Scheduler) handleShutdown() {
	s.setState(StateShuttingDown)
	s.logger.Info("shutting down scheduler",
		"in_flight", s.inflight,
		"policy", s.shutdown.Policy)

	var deadline <-chan time.Time
	if s.shutdown.Policy == lifecycle.PolicyCancel && s.inflight > 0 {
		var stop func() bool
		deadline, stop = s.clock.NewTimer(s.shutdown.DrainTimeout)
		defer stop()
	}

	for s.inflight > 0 {
		select {
		case result := <-s.results.C():
			s.results.Received()
			s.handleResult(result)
		case <-deadline:
			s.logger.Warn("drain timeout reached, cancelling in-flight jobs",
				"in_flight", s.inflight,
				"drain_timeout", s.shutdown.DrainTimeout)
			s.execCancel()
			deadline = nil
		}
	}

	s.execCancel()
	s.setState(StateStopped)
	close(s.stopped)
	s.logger.Info("scheduler shutdown complete")
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stopped is closed once the scheduler has drained and stopped
func (s *Scheduler) Stopped() <-chan struct{} {
	return s.stopped
}

// Jobs returns the registered jobs ordered by next fire time
func (s *Scheduler) Jobs() []registry.ScheduledJob {
	return s.registry.List()
}

// Stats returns current scheduler statistics
func (s *Scheduler) Stats() Stats {
	return Stats{
		State:       s.State(),
		Jobs:        s.registry.Len(),
		InFlight:    s.inflightGauge.Load(),
		Dispatched:  s.dispatched.Load(),
		Succeeded:   s.succeeded.Load(),
		ExitErrors:  s.exitErrors.Load(),
		Failures:    s.failures.Load(),
		SpawnErrors: s.spawnErrors.Load(),
		Skipped:     s.skipped.Load(),
		Retired:     s.retired.Load(),
		Inbox:       s.results.GetStats(),
	}
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().In(s.location)
}
