// Package stats aggregates job results into per-period summaries and writes
// them to the log.
package stats

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/livinlefevreloca/cronexec/internal/inbox"
	"github.com/livinlefevreloca/cronexec/internal/job"
)

// Collector receives job results through its inbox and logs one summary per
// job at the end of every period
type Collector struct {
	inbox  *inbox.Inbox[job.Result]
	config Config
	logger *slog.Logger

	// Mutex protects the period state below
	mu sync.Mutex

	periodStart time.Time
	jobs        map[string]*JobStatsAccumulator

	// Cancelled when Run returns so late Observe calls do not block
	closed    context.Context
	markClose context.CancelFunc
}

// NewCollector creates a new stats collector
func NewCollector(config Config, logger *slog.Logger) *Collector {
	closed, markClose := context.WithCancel(context.Background())
	return &Collector{
		inbox:       inbox.New[job.Result](config.InboxBufferSize, config.InboxSendTimeout, logger),
		config:      config,
		logger:      logger,
		periodStart: time.Now(),
		jobs:        make(map[string]*JobStatsAccumulator),
		closed:      closed,
		markClose:   markClose,
	}
}

// Observe queues a result for aggregation. It is a no-op once Run has
// returned.
func (c *Collector) Observe(r job.Result) {
	c.inbox.Send(c.closed, r)
}

// Run aggregates results until ctx is cancelled, flushing every
// FlushInterval. Queued results are folded into a final flush on exit.
func (c *Collector) Run(ctx context.Context) {
	defer c.markClose()

	c.logger.Info("starting stats collector", "flush_interval", c.config.FlushInterval)

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for {
				r, ok := c.inbox.TryReceive()
				if !ok {
					break
				}
				c.add(r)
			}
			c.Flush()
			c.logger.Info("stats collector stopped")
			return

		case <-ticker.C:
			c.Flush()

		case r := <-c.inbox.C():
			c.inbox.Received()
			c.add(r)
		}
	}
}

func (c *Collector) add(r job.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acc, ok := c.jobs[r.Name]
	if !ok {
		acc = &JobStatsAccumulator{}
		c.jobs[r.Name] = acc
	}
	acc.Add(r)
}

// Flush logs the current period and starts a new one. Periods without runs
// are not logged.
func (c *Collector) Flush() []JobSummary {
	c.mu.Lock()
	start := c.periodStart
	jobs := c.jobs
	c.periodStart = time.Now()
	c.jobs = make(map[string]*JobStatsAccumulator)
	c.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}

	summaries := make([]JobSummary, 0, len(jobs))
	for name, acc := range jobs {
		summaries = append(summaries, acc.Summary(name))
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Job < summaries[j].Job })

	for _, s := range summaries {
		c.logger.Info("job stats",
			"job", s.Job,
			"period_start", start,
			"runs", s.Runs,
			"succeeded", s.Succeeded,
			"exit_errors", s.ExitErrors,
			"failures", s.Failures,
			"truncated", s.Truncated,
			"min_duration", s.MinDuration,
			"max_duration", s.MaxDuration,
			"avg_duration", s.AvgDuration,
			"max_start_delay", s.MaxDelay,
			"avg_start_delay", s.AvgDelay)
	}

	return summaries
}

// Pending returns the number of results queued but not yet aggregated
func (c *Collector) Pending() int {
	return c.inbox.Len()
}

// Helper functions for min/max/avg calculations

func calculateMinMaxAvgDuration(values []time.Duration) (min, max, avg time.Duration) {
	if len(values) == 0 {
		return 0, 0, 0
	}

	min = values[0]
	max = values[0]
	var sum time.Duration

	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	avg = sum / time.Duration(len(values))
	return min, max, avg
}
