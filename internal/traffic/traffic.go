package traffic

import (
	"sync"
	"time"
)

// maxAge bounds how long outcomes are kept; windows longer than this see
// only the most recent maxAge of history.
const maxAge = 30 * time.Minute

// Tracker keeps a sliding window of fetch outcome timestamps. The zero value
// is ready to use.
type Tracker struct {
	mu           sync.Mutex
	successTimes []time.Time
	errorTimes   []time.Time
	now          func() time.Time
}

// RecordSuccess records a successful fetch.
func (t *Tracker) RecordSuccess() {
	t.recordOutcome(&t.successTimes)
}

// RecordError records a failed fetch.
func (t *Tracker) RecordError() {
	t.recordOutcome(&t.errorTimes)
}

func (t *Tracker) recordOutcome(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) within the window ending now.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	errCount := countInWindow(t.errorTimes, cutoff)
	return errCount, errCount + countInWindow(t.successTimes, cutoff)
}

// Degraded reports whether at least minSamples outcomes fell in the window and
// the error share reached thresholdPct.
func (t *Tracker) Degraded(window time.Duration, thresholdPct, minSamples int) bool {
	errs, total := t.ErrorRate(window)
	if total == 0 || total < minSamples {
		return false
	}
	return errs*100 >= thresholdPct*total
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
}
