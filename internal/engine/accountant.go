package engine

import (
	"math"
	"sync"
	"sync/atomic"
)

// driftTolerance is how far the counters may sit from the target at
// completion and still be rescaled onto it (1/100 MiB).
const driftTolerance = MB / 100

// AddResult is the outcome of one Accountant.Add call.
type AddResult struct {
	// Added is the number of bytes actually credited after clamping.
	Added int64

	// Total is downloaded + uploaded after the add.
	Total int64

	// Complete reports whether the session target has been reached.
	Complete bool

	// Completed is true for exactly one call: the one that crossed the target.
	Completed bool
}

// Accountant is the single serialization point for the session's byte
// counters and completion detection.
type Accountant struct {
	target int64

	mu         sync.Mutex
	downloaded int64
	uploaded   int64
	complete   bool

	done      chan struct{}
	responded atomic.Bool
}

// NewAccountant returns an accountant for target bytes. A zero target is
// unbounded and never completes.
func NewAccountant(target int64) *Accountant {
	if target < 0 {
		target = 0
	}
	return &Accountant{
		target: target,
		done:   make(chan struct{}),
	}
}

// IsComplete reports whether total has reached target. An unbounded
// target (zero) is never complete.
func IsComplete(target, total int64) bool {
	if target == 0 {
		return false
	}
	return math.Abs(float64(total-target)) < 1
}

// Add credits n bytes to d. n is clamped to the remaining budget so the
// total never overshoots a bounded target. Adds after completion credit
// nothing.
func (a *Accountant) Add(d Direction, n int64) AddResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := AddResult{Complete: a.complete}
	if a.complete || n <= 0 {
		res.Total = a.downloaded + a.uploaded
		return res
	}

	if a.target > 0 {
		n = min(n, a.target-(a.downloaded+a.uploaded))
	}
	switch d {
	case Download:
		a.downloaded += n
	case Upload:
		a.uploaded += n
	}

	res.Added = n
	res.Total = a.downloaded + a.uploaded
	if IsComplete(a.target, res.Total) {
		a.settle()
		a.complete = true
		close(a.done)
		res.Total = a.downloaded + a.uploaded
		res.Complete = true
		res.Completed = true
	}
	return res
}

// settle rescales the counters so their sum equals the target exactly when
// they drifted within driftTolerance of it. With a single active direction
// that counter is clamped to the target instead. Callers hold a.mu.
// Add already clamps, so on its path the sum is exact and settle is a no-op.
func (a *Accountant) settle() {
	total := a.downloaded + a.uploaded
	if total == a.target || total == 0 {
		return
	}
	if diff := total - a.target; diff > driftTolerance || diff < -driftTolerance {
		return
	}

	switch {
	case a.uploaded == 0:
		a.downloaded = a.target
	case a.downloaded == 0:
		a.uploaded = a.target
	default:
		down := int64(math.Round(float64(a.downloaded) * float64(a.target) / float64(total)))
		a.downloaded = down
		a.uploaded = a.target - down
	}
}

// Remaining returns the bytes still needed to reach the target, or
// math.MaxInt64 for an unbounded session.
func (a *Accountant) Remaining() int64 {
	if a.target == 0 {
		return math.MaxInt64
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return max(a.target-(a.downloaded+a.uploaded), 0)
}

// Totals returns the current counters.
func (a *Accountant) Totals() (downloaded, uploaded int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.downloaded, a.uploaded
}

// Target returns the configured target in bytes.
func (a *Accountant) Target() int64 {
	return a.target
}

// Complete reports whether the target has been reached.
func (a *Accountant) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.complete
}

// Done is closed when the target is reached.
func (a *Accountant) Done() <-chan struct{} {
	return a.done
}

// MarkResponse records that a worker received a response.
func (a *Accountant) MarkResponse() {
	a.responded.Store(true)
}

// Responded reports whether any worker has received a response.
func (a *Accountant) Responded() bool {
	return a.responded.Load()
}
