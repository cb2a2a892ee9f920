package traffic

import (
	"testing"
	"time"
)

func TestTracker_ErrorRate(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()

	errs, total := tr.ErrorRate(time.Minute)
	if errs != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errs, total)
	}
}

func TestTracker_WindowExcludesOldOutcomes(t *testing.T) {
	now := time.Unix(10_000, 0)
	tr := Tracker{now: func() time.Time { return now }}
	tr.RecordError()
	now = now.Add(2 * time.Minute)
	tr.RecordSuccess()

	errs, total := tr.ErrorRate(time.Minute)
	if errs != 0 || total != 1 {
		t.Errorf("ErrorRate(1m) = (%d, %d), want (0, 1)", errs, total)
	}
}

func TestTracker_PrunesPastMaxAge(t *testing.T) {
	now := time.Unix(10_000, 0)
	tr := Tracker{now: func() time.Time { return now }}
	tr.RecordError()
	now = now.Add(maxAge + time.Minute)
	tr.RecordSuccess()

	if len(tr.errorTimes) != 0 {
		t.Errorf("errorTimes len = %d, want 0 after prune", len(tr.errorTimes))
	}
}

func TestTracker_Degraded(t *testing.T) {
	tests := []struct {
		name       string
		successes  int
		errors     int
		pct        int
		minSamples int
		want       bool
	}{
		{name: "no samples", pct: 50, want: false},
		{name: "below min samples", errors: 2, pct: 50, minSamples: 3, want: false},
		{name: "at threshold", successes: 1, errors: 1, pct: 50, want: true},
		{name: "below threshold", successes: 3, errors: 1, pct: 50, want: false},
		{name: "all failing", errors: 4, pct: 100, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Tracker
			for i := 0; i < tt.successes; i++ {
				tr.RecordSuccess()
			}
			for i := 0; i < tt.errors; i++ {
				tr.RecordError()
			}
			if got := tr.Degraded(time.Minute, tt.pct, tt.minSamples); got != tt.want {
				t.Errorf("Degraded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.RecordError()
	tr.Reset()
	if _, total := tr.ErrorRate(time.Hour); total != 0 {
		t.Errorf("total after Reset = %d, want 0", total)
	}
}
