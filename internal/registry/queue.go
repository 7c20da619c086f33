package registry

import "sort"

// entry is a registered job and its position in the fire queue
type entry struct {
	job   ScheduledJob
	index int
}

// fireQueue is a min-heap of entries ordered by (NextFire, ID).
type fireQueue []*entry

func (q fireQueue) Len() int { return len(q) }

func (q fireQueue) Less(i, j int) bool {
	return less(q[i].job, q[j].job)
}

func (q fireQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *fireQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *fireQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// less orders jobs by (NextFire, ID).
// When times are equal, jobs are ordered by ID for deterministic iteration.
func less(a, b ScheduledJob) bool {
	if a.NextFire.Equal(b.NextFire) {
		return a.ID < b.ID
	}
	return a.NextFire.Before(b.NextFire)
}

// sortJobs sorts jobs by (NextFire, ID).
func sortJobs(jobs []ScheduledJob) {
	sort.Slice(jobs, func(i, j int) bool {
		return less(jobs[i], jobs[j])
	})
}
