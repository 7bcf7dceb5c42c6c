package batch

import (
	"sync"
	"time"
)

// Batch owns its jobs. Every mutation and every snapshot goes through mu so a
// status query can never observe a torn state.
type Batch struct {
	ID        string
	Options   Options
	CreatedAt time.Time

	mu           sync.Mutex
	jobs         []*Job
	cancelled    bool
	shortCircuit ErrorKind // set on auth/quota failure, fails queued jobs
}

func newBatch(id string, opts Options) *Batch {
	return &Batch{ID: id, Options: opts, CreatedAt: time.Now()}
}

// Cancel flips the cooperative flag. Running jobs observe it at the next
// checkpoint; jobs still queued terminate without starting.
func (b *Batch) Cancel() {
	b.mu.Lock()
	b.cancelled = true
	b.mu.Unlock()
}

func (b *Batch) isCancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled
}

func (b *Batch) setShortCircuit(kind ErrorKind) {
	b.mu.Lock()
	b.shortCircuit = kind
	b.mu.Unlock()
}

func (b *Batch) shortCircuited() ErrorKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shortCircuit
}

// Snapshot copies every job under the batch lock.
func (b *Batch) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		ID:        b.ID,
		Options:   b.Options,
		Cancelled: b.cancelled,
		CreatedAt: b.CreatedAt,
		Jobs:      make([]Job, len(b.jobs)),
	}
	done := true
	for i, j := range b.jobs {
		snap.Jobs[i] = *j
		snap.CostSoFar += j.ActualCost
		snap.EstimatedCost += j.EstimatedCost
		snap.DurationSoFar += j.BilledSeconds
		switch j.State {
		case StateCompleted:
			snap.Counts.Completed++
		case StateSkipped:
			snap.Counts.Skipped++
		case StateFailed:
			snap.Counts.Failed++
		case StateCancelled:
			snap.Counts.Cancelled++
		default:
			done = false
		}
	}
	snap.Done = done
	return snap
}

// update mutates one job under the lock and returns a copy for persistence and
// event publishing. Transition validity is enforced here; an invalid target
// state leaves the job untouched.
func (b *Batch) update(j *Job, fn func(*Job)) (Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	before := j.State
	fn(j)
	if j.State != before && !validTransition(before, j.State) {
		j.State = before
		return *j, false
	}
	if j.State.Terminal() && j.CompletedAt == nil {
		now := time.Now()
		j.CompletedAt = &now
	}
	return *j, true
}
