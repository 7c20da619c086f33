package stats

import (
	"time"

	"github.com/livinlefevreloca/cronexec/internal/job"
)

// JobStatsAccumulator accumulates run statistics for one job over a period
type JobStatsAccumulator struct {
	Runs       int
	Succeeded  int
	ExitErrors int
	Failures   int
	Truncated  int

	// Samples for min/max/avg calculations
	Durations []time.Duration
	// Time from scheduled fire to process start
	StartDelays []time.Duration
}

// Add adds one result to the accumulator
func (acc *JobStatsAccumulator) Add(r job.Result) {
	acc.Runs++
	switch r.Outcome() {
	case job.OutcomeSucceeded:
		acc.Succeeded++
	case job.OutcomeExitError:
		acc.ExitErrors++
	default:
		acc.Failures++
	}
	if r.StdoutTruncated || r.StderrTruncated {
		acc.Truncated++
	}

	if r.Outcome() != job.OutcomeFailed {
		acc.Durations = append(acc.Durations, r.Duration())
	}
	if !r.StartedAt.IsZero() && !r.ScheduledAt.IsZero() {
		acc.StartDelays = append(acc.StartDelays, r.StartedAt.Sub(r.ScheduledAt))
	}
}

// JobSummary is the flushed form of an accumulator
type JobSummary struct {
	Job        string
	Runs       int
	Succeeded  int
	ExitErrors int
	Failures   int
	Truncated  int

	MinDuration time.Duration
	MaxDuration time.Duration
	AvgDuration time.Duration
	MaxDelay    time.Duration
	AvgDelay    time.Duration
}

// Summary computes the period summary for the named job
func (acc *JobStatsAccumulator) Summary(name string) JobSummary {
	minDur, maxDur, avgDur := calculateMinMaxAvgDuration(acc.Durations)
	_, maxDelay, avgDelay := calculateMinMaxAvgDuration(acc.StartDelays)

	return JobSummary{
		Job:         name,
		Runs:        acc.Runs,
		Succeeded:   acc.Succeeded,
		ExitErrors:  acc.ExitErrors,
		Failures:    acc.Failures,
		Truncated:   acc.Truncated,
		MinDuration: minDur,
		MaxDuration: maxDur,
		AvgDuration: avgDur,
		MaxDelay:    maxDelay,
		AvgDelay:    avgDelay,
	}
}
