package watchlist

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/station-watch/internal/models"
)

func ptr[T any](v T) *T { return &v }

// TestWatchlist_SydneyAirportScenario walks the add/add/remove/remove sequence
// with varying case.
func TestWatchlist_SydneyAirportScenario(t *testing.T) {
	w := New()

	if got := w.Add("Sydney Airport", "066214"); got != Added {
		t.Fatalf("Add() = %v, want Added", got)
	}
	if w.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", w.Len())
	}
	if got := w.Add("sydney airport", "066214"); got != AlreadyPresent {
		t.Fatalf("Add() lower case = %v, want AlreadyPresent", got)
	}
	if w.Len() != 1 {
		t.Fatalf("Len() after duplicate add = %d, want 1", w.Len())
	}
	if got := w.Remove("SYDNEY AIRPORT"); got != Removed {
		t.Fatalf("Remove() = %v, want Removed", got)
	}
	if w.Len() != 0 {
		t.Fatalf("Len() after remove = %d, want 0", w.Len())
	}
	if got := w.Remove("Sydney Airport"); got != NotFound {
		t.Fatalf("second Remove() = %v, want NotFound", got)
	}
}

func TestWatchlist_Add_PrependsZeroValuedEntry(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	w.Add("Newcastle", "061055")

	got := w.Snapshot()
	if len(got) != 2 {
		t.Fatalf("Snapshot() len = %d, want 2", len(got))
	}
	if got[0].Name != "Newcastle" || got[1].Name != "Sydney" {
		t.Errorf("order = [%s %s], want most recent first", got[0].Name, got[1].Name)
	}
	want := models.WatchEntry{Name: "Newcastle", ID: "061055"}
	if got[0] != want {
		t.Errorf("new entry = %+v, want %+v", got[0], want)
	}
}

func TestWatchlist_FailedAddLeavesEntryUntouched(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	w.UpdateReading("Sydney", "066214", models.Reading{TemperatureC: ptr(21.5), HumidityPct: ptr(60), RainTrace: ptr("0.2")})
	before := w.Snapshot()

	if got := w.Add("SYDNEY", "999999"); got != AlreadyPresent {
		t.Fatalf("Add() = %v, want AlreadyPresent", got)
	}
	after := w.Snapshot()
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("watchlist changed by failed add: before %+v, after %+v", before, after)
	}
}

func TestWatchlist_Remove_NotFoundLeavesListUnchanged(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	w.Add("Newcastle", "061055")
	before := w.Snapshot()

	if got := w.Remove("Perth"); got != NotFound {
		t.Fatalf("Remove() = %v, want NotFound", got)
	}
	after := w.Snapshot()
	if len(after) != len(before) {
		t.Fatalf("len changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("entry %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestWatchlist_Remove_KeepsOrderOfOthers(t *testing.T) {
	w := New()
	for _, n := range []string{"a", "b", "c", "d"} {
		w.Add(n, "id-"+n)
	}
	w.Remove("B")
	var names []string
	w.ForEach(func(e *models.WatchEntry) { names = append(names, e.Name) })
	if got := strings.Join(names, ","); got != "d,c,a" {
		t.Errorf("order after remove = %s, want d,c,a", got)
	}
}

// TestWatchlist_NoCaseInsensitiveDuplicates applies random add/remove sequences
// and checks the uniqueness invariant after every step.
func TestWatchlist_NoCaseInsensitiveDuplicates(t *testing.T) {
	names := []string{"Sydney", "sydney", "SYDNEY", "Newcastle", "newCASTLE", "Perth"}
	rng := rand.New(rand.NewSource(42))
	w := New()

	for step := 0; step < 2000; step++ {
		n := names[rng.Intn(len(names))]
		if rng.Intn(3) == 0 {
			w.Remove(n)
		} else {
			w.Add(n, "id")
		}
		seen := make(map[string]bool)
		for _, e := range w.Snapshot() {
			key := strings.ToLower(e.Name)
			if seen[key] {
				t.Fatalf("step %d: duplicate entry %q", step, e.Name)
			}
			seen[key] = true
		}
	}
}

func TestWatchlist_UpdateReading_PartialOnlyTouchesPresentFields(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	w.UpdateReading("Sydney", "066214", models.Reading{TemperatureC: ptr(18.0), HumidityPct: ptr(55), RainTrace: ptr("1.4")})
	before := w.Snapshot()[0]

	ok := w.UpdateReading("Sydney", "066214", models.Reading{TemperatureC: ptr(19.5)})
	if !ok {
		t.Fatal("UpdateReading() = false, want true")
	}
	after := w.Snapshot()[0]

	if after.TemperatureC != 19.5 {
		t.Errorf("TemperatureC = %v, want 19.5", after.TemperatureC)
	}
	if after.HumidityPct != before.HumidityPct {
		t.Errorf("HumidityPct = %d, want unchanged %d", after.HumidityPct, before.HumidityPct)
	}
	if after.RainTrace != before.RainTrace {
		t.Errorf("RainTrace = %q, want unchanged %q", after.RainTrace, before.RainTrace)
	}
	if after.Name != before.Name || after.ID != before.ID {
		t.Errorf("identity changed: %+v -> %+v", before, after)
	}
}

func TestWatchlist_UpdateReading_MissingEntry(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	if w.UpdateReading("Perth", "009021", models.Reading{TemperatureC: ptr(30.0)}) {
		t.Error("UpdateReading() for unknown name = true, want false")
	}
	if w.UpdateReading("Sydney", "000000", models.Reading{TemperatureC: ptr(30.0)}) {
		t.Error("UpdateReading() with mismatched id = true, want false")
	}
	if got := w.Snapshot()[0].TemperatureC; got != 0 {
		t.Errorf("TemperatureC = %v, want 0", got)
	}
}

func TestWatchlist_AddAll_and_RemoveAll(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	drainWake(w)

	n := w.AddAll([]models.StationRecord{
		{Name: "sydney", ID: "066214"},
		{Name: "Newcastle", ID: "061055"},
		{Name: "Perth", ID: "009021"},
	})
	if n != 2 {
		t.Fatalf("AddAll() = %d, want 2", n)
	}
	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}
	if got := w.WaitForWake(context.Background(), time.Now().Add(time.Second)); got != WakeSignal {
		t.Errorf("AddAll did not leave a wake signal, got %v", got)
	}

	if n := w.RemoveAll(); n != 3 {
		t.Errorf("RemoveAll() = %d, want 3", n)
	}
	if w.Len() != 0 {
		t.Errorf("Len() after RemoveAll = %d, want 0", w.Len())
	}
}

func TestWatchlist_AddAll_NothingNewDoesNotSignal(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	drainWake(w)

	if n := w.AddAll([]models.StationRecord{{Name: "SYDNEY", ID: "066214"}}); n != 0 {
		t.Fatalf("AddAll() = %d, want 0", n)
	}
	if got := w.WaitForWake(context.Background(), time.Now().Add(10*time.Millisecond)); got != WakeTimeout {
		t.Errorf("WaitForWake() = %v, want timeout", got)
	}
}

func TestWatchlist_Add_SignalsOnlyWhenAdded(t *testing.T) {
	w := New()
	w.Add("Sydney", "066214")
	if got := w.WaitForWake(context.Background(), time.Now().Add(time.Second)); got != WakeSignal {
		t.Fatalf("WaitForWake() after Add = %v, want signal", got)
	}

	w.Add("sydney", "066214")
	w.Remove("Sydney")
	if got := w.WaitForWake(context.Background(), time.Now().Add(10*time.Millisecond)); got != WakeTimeout {
		t.Errorf("WaitForWake() after duplicate add and remove = %v, want timeout", got)
	}
}

func TestWatchlist_WaitForWake_Canceled(t *testing.T) {
	w := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := w.WaitForWake(ctx, time.Now().Add(time.Hour)); got != WakeCanceled {
		t.Errorf("WaitForWake() = %v, want canceled", got)
	}
}

// TestWatchlist_WakeEndsLongWait parks a waiter on an hour-long deadline and
// checks an Add from another goroutine releases it promptly.
func TestWatchlist_WakeEndsLongWait(t *testing.T) {
	w := New()
	done := make(chan WakeReason, 1)
	go func() {
		done <- w.WaitForWake(context.Background(), time.Now().Add(time.Hour))
	}()

	time.Sleep(20 * time.Millisecond)
	if got := w.Add("Sydney", "066214"); got != Added {
		t.Fatalf("Add() = %v, want Added", got)
	}

	select {
	case got := <-done:
		if got != WakeSignal {
			t.Errorf("WaitForWake() = %v, want signal", got)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not woken within 1s of Add")
	}
}

func TestWatchlist_ConcurrentAccess(t *testing.T) {
	w := New()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				name := fmt.Sprintf("station-%d", i%10)
				switch i % 4 {
				case 0:
					w.Add(name, "id")
				case 1:
					w.UpdateReading(name, "id", models.Reading{TemperatureC: ptr(float64(g))})
				case 2:
					w.ForEach(func(e *models.WatchEntry) { _ = e.TemperatureC })
				case 3:
					w.Remove(name)
				}
			}
		}(g)
	}
	wg.Wait()
	if w.Len() > 10 {
		t.Errorf("Len() = %d, want at most 10 distinct names", w.Len())
	}
}

func TestResultStrings(t *testing.T) {
	if Added.String() != "added" || AlreadyPresent.String() != "already_present" {
		t.Error("AddResult strings")
	}
	if Removed.String() != "removed" || NotFound.String() != "not_found" {
		t.Error("RemoveResult strings")
	}
	if WakeSignal.String() != "signal" || WakeTimeout.String() != "timeout" || WakeCanceled.String() != "canceled" {
		t.Error("WakeReason strings")
	}
}

func drainWake(w *Watchlist) {
	select {
	case <-w.wake:
	default:
	}
}
