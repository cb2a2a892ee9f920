package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-watch/internal/client"
	"github.com/kjstillabower/station-watch/internal/models"
	"github.com/kjstillabower/station-watch/internal/observability"
	"github.com/kjstillabower/station-watch/internal/traffic"
	"github.com/kjstillabower/station-watch/internal/watchlist"
)

// DefaultInterval is the wait between cycles when none is configured.
const DefaultInterval = 5 * time.Second

// State is the refresher's position in its cycle.
type State int

const (
	StateIdle State = iota
	StateRefreshing
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the refresher for the status surface.
type Status struct {
	State        State     `json:"-"`
	StateName    string    `json:"state"`
	Deadline     time.Time `json:"deadline"`
	Cycles       uint64    `json:"cycles"`
	LastCycleEnd time.Time `json:"lastCycleEnd"`
}

// CycleStats summarizes one pass over the watchlist.
type CycleStats struct {
	Stations int
	Updated  int
	Failed   int
	Vanished int
	Duration time.Duration
}

// Refresher runs the background refresh loop: fetch every watched station,
// then wait for the interval or a wake signal, forever.
type Refresher struct {
	watchlist *watchlist.Watchlist
	fetcher   client.Fetcher
	interval  time.Duration
	logger    *zap.Logger
	outcomes  *traffic.Tracker
	now       func() time.Time

	mu     sync.Mutex
	status Status
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithOutcomeTracker records every fetch success and failure in t.
func WithOutcomeTracker(t *traffic.Tracker) Option {
	return func(r *Refresher) { r.outcomes = t }
}

// WithClock overrides time.Now. Tests only.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// New returns a Refresher over wl. A non-positive interval uses DefaultInterval.
func New(wl *watchlist.Watchlist, fetcher client.Fetcher, interval time.Duration, logger *zap.Logger, opts ...Option) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Refresher{
		watchlist: wl,
		fetcher:   fetcher,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.status.StateName = StateIdle.String()
	return r
}

// Run loops until ctx is done and then returns ctx.Err(). Fetch failures and
// panics inside a cycle are logged and never end the loop.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresh loop started", zap.Duration("interval", r.interval))
	trigger := "startup"
	for {
		if err := ctx.Err(); err != nil {
			r.setState(StateIdle, time.Time{})
			r.logger.Info("refresh loop stopped")
			return err
		}
		observability.RefreshCyclesTotal.WithLabelValues(trigger).Inc()

		cycleLogger := r.logger.With(zap.String("cycle_id", uuid.NewString()))
		stats := r.safeCycle(ctx, cycleLogger)
		cycleLogger.Debug("refresh cycle complete",
			zap.Int("stations", stats.Stations),
			zap.Int("updated", stats.Updated),
			zap.Int("failed", stats.Failed),
			zap.Duration("duration", stats.Duration))

		deadline := r.now().Add(r.interval)
		r.setState(StateWaiting, deadline)
		switch r.watchlist.WaitForWake(ctx, deadline) {
		case watchlist.WakeSignal:
			r.logger.Info("refresh woken by signal")
			trigger = "signal"
		case watchlist.WakeTimeout:
			trigger = "timeout"
		case watchlist.WakeCanceled:
			// loop head returns
		}
	}
}

// RunCycle fetches a reading for every station on the watchlist, in order,
// and writes each success back. The watchlist lock is held only while
// reading targets and while writing each result, never across a fetch.
func (r *Refresher) RunCycle(ctx context.Context) CycleStats {
	return r.runCycle(ctx, r.logger)
}

func (r *Refresher) runCycle(ctx context.Context, logger *zap.Logger) CycleStats {
	start := r.now()
	r.setState(StateRefreshing, time.Time{})

	targets := r.watchlist.Targets()
	stats := CycleStats{Stations: len(targets)}
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		reading, err := r.fetch(ctx, target.ID)
		if err != nil {
			stats.Failed++
			r.recordFailure(logger, target, err)
			continue
		}
		r.recordSuccess()
		if r.watchlist.UpdateReading(target.Name, target.ID, reading) {
			stats.Updated++
		} else {
			stats.Vanished++
			logger.Debug("station removed during fetch", zap.String("station", target.Name))
		}
	}

	stats.Duration = r.now().Sub(start)
	observability.RefreshCycleDuration.Observe(stats.Duration.Seconds())
	r.mu.Lock()
	r.status.Cycles++
	r.status.LastCycleEnd = r.now()
	r.mu.Unlock()
	return stats
}

// safeCycle runs one cycle, turning a panic outside a fetch into a logged,
// empty cycle so the loop carries on to its wait.
func (r *Refresher) safeCycle(ctx context.Context, logger *zap.Logger) (stats CycleStats) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("refresh cycle panicked", zap.Any("panic", p))
		}
	}()
	return r.runCycle(ctx, logger)
}

// fetch calls the fetcher, converting a panic into an error.
func (r *Refresher) fetch(ctx context.Context, stationID string) (reading models.Reading, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %w: %v", client.ErrFetchFailed, client.ErrPanic, p)
		}
	}()
	return r.fetcher.Fetch(ctx, stationID)
}

func (r *Refresher) recordFailure(logger *zap.Logger, target models.StationRecord, err error) {
	category := client.CategorizeError(err)
	observability.FetchErrorsTotal.WithLabelValues(string(category)).Inc()
	if r.outcomes != nil {
		r.outcomes.RecordError()
	}
	logger.Warn("fetch failed",
		zap.String("station", target.Name),
		zap.String("station_id", target.ID),
		zap.String("category", string(category)),
		zap.Error(err))
}

func (r *Refresher) recordSuccess() {
	if r.outcomes != nil {
		r.outcomes.RecordSuccess()
	}
}

// Status returns a copy of the current status.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Refresher) setState(s State, deadline time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = s
	r.status.StateName = s.String()
	r.status.Deadline = deadline
}
