package models

import "time"

// StationRecord is one catalog entry. Immutable after load.
type StationRecord struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Reading is one observation for a station. Nil fields were absent upstream
// and must not overwrite what the watchlist already holds.
type Reading struct {
	TemperatureC *float64  `json:"temperatureC,omitempty"`
	HumidityPct  *int      `json:"humidityPct,omitempty"`
	RainTrace    *string   `json:"rainTrace,omitempty"`
	ObservedAt   time.Time `json:"observedAt"`
}

// Empty reports whether the reading carries no fields at all.
func (r Reading) Empty() bool {
	return r.TemperatureC == nil && r.HumidityPct == nil && r.RainTrace == nil
}

// WatchEntry is a tracked station and its last-known reading.
type WatchEntry struct {
	Name         string    `json:"name"`
	ID           string    `json:"id"`
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  int       `json:"humidityPct"`
	RainTrace    string    `json:"rainTrace"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// Apply copies the fields present in r into e. Absent fields are left as they are.
func (e *WatchEntry) Apply(r Reading) {
	if r.TemperatureC != nil {
		e.TemperatureC = *r.TemperatureC
	}
	if r.HumidityPct != nil {
		e.HumidityPct = *r.HumidityPct
	}
	if r.RainTrace != nil {
		e.RainTrace = *r.RainTrace
	}
	if !r.Empty() {
		e.UpdatedAt = r.ObservedAt
	}
}
