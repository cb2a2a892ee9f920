package watchlist

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kjstillabower/station-watch/internal/models"
	"github.com/kjstillabower/station-watch/internal/observability"
)

// AddResult is the outcome of Add.
type AddResult int

const (
	Added AddResult = iota
	AlreadyPresent
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// RemoveResult is the outcome of Remove.
type RemoveResult int

const (
	Removed RemoveResult = iota
	NotFound
)

func (r RemoveResult) String() string {
	switch r {
	case Removed:
		return "removed"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// WakeReason tells the refresher why WaitForWake returned.
type WakeReason int

const (
	WakeTimeout WakeReason = iota
	WakeSignal
	WakeCanceled
)

func (r WakeReason) String() string {
	switch r {
	case WakeTimeout:
		return "timeout"
	case WakeSignal:
		return "signal"
	case WakeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Watchlist is the set of stations being refreshed, most recently added first.
// Names are unique ignoring case. All access goes through mu; the wake channel
// holds at most one pending signal so a signal raised while the refresher is
// busy is seen by its next wait.
type Watchlist struct {
	mu      sync.Mutex
	entries []*models.WatchEntry
	wake    chan struct{}
}

// New returns an empty Watchlist.
func New() *Watchlist {
	return &Watchlist{wake: make(chan struct{}, 1)}
}

// Add inserts a zero-valued entry at the front unless an entry with the same
// name (ignoring case) exists. On Added the refresher is woken before the lock
// is released.
func (w *Watchlist) Add(name, id string) AddResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.indexLocked(name) >= 0 {
		return AlreadyPresent
	}
	w.prependLocked(name, id)
	w.signalLocked()
	return Added
}

// AddAll adds every record not already present and returns how many were
// added. The refresher is woken once if anything was added.
func (w *Watchlist) AddAll(records []models.StationRecord) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, rec := range records {
		if w.indexLocked(rec.Name) >= 0 {
			continue
		}
		w.prependLocked(rec.Name, rec.ID)
		n++
	}
	if n > 0 {
		w.signalLocked()
	}
	return n
}

// Remove deletes the first entry whose name matches, ignoring case.
func (w *Watchlist) Remove(name string) RemoveResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexLocked(name)
	if i < 0 {
		return NotFound
	}
	copy(w.entries[i:], w.entries[i+1:])
	w.entries[len(w.entries)-1] = nil
	w.entries = w.entries[:len(w.entries)-1]
	observability.WatchlistSize.Set(float64(len(w.entries)))
	return Removed
}

// RemoveAll empties the watchlist and returns how many entries it held.
func (w *Watchlist) RemoveAll() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.entries)
	w.entries = nil
	observability.WatchlistSize.Set(0)
	return n
}

// ForEach calls visit for every entry in order with the lock held. visit may
// modify the entry but must not keep the pointer or call back into w.
func (w *Watchlist) ForEach(visit func(e *models.WatchEntry)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.entries {
		visit(e)
	}
}

// UpdateReading applies r to the entry with the given name and id. Fields
// absent from r are left untouched. Returns false when the entry is gone,
// for example because it was removed while its reading was being fetched.
func (w *Watchlist) UpdateReading(name, id string, r models.Reading) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexLocked(name)
	if i < 0 || w.entries[i].ID != id {
		return false
	}
	w.entries[i].Apply(r)
	return true
}

// Targets returns the name/id pairs of the current entries, in order.
func (w *Watchlist) Targets() []models.StationRecord {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.StationRecord, len(w.entries))
	for i, e := range w.entries {
		out[i] = models.StationRecord{Name: e.Name, ID: e.ID}
	}
	return out
}

// Snapshot returns copies of the current entries, in order.
func (w *Watchlist) Snapshot() []models.WatchEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.WatchEntry, len(w.entries))
	for i, e := range w.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries.
func (w *Watchlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Wake asks the refresher to start a cycle now.
func (w *Watchlist) Wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signalLocked()
}

// WaitForWake blocks until a wake signal arrives, deadline passes or ctx is
// done. A signal raised before the call is consumed immediately.
func (w *Watchlist) WaitForWake(ctx context.Context, deadline time.Time) WakeReason {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-w.wake:
		return WakeSignal
	case <-timer.C:
		return WakeTimeout
	case <-ctx.Done():
		return WakeCanceled
	}
}

func (w *Watchlist) indexLocked(name string) int {
	for i, e := range w.entries {
		if strings.EqualFold(e.Name, name) {
			return i
		}
	}
	return -1
}

func (w *Watchlist) prependLocked(name, id string) {
	w.entries = append(w.entries, nil)
	copy(w.entries[1:], w.entries)
	w.entries[0] = &models.WatchEntry{Name: name, ID: id}
	observability.WatchlistSize.Set(float64(len(w.entries)))
}

// signalLocked leaves a pending wake signal unless one is already queued.
func (w *Watchlist) signalLocked() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
