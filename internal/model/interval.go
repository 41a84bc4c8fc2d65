package model

import "time"

// SignalKind identifies which raw power signal produced a record.
type SignalKind string

const (
	SignalConnected    SignalKind = "CONNECTED"
	SignalDisconnected SignalKind = "DISCONNECTED"
)

// Valid reports whether the kind is one of the two known signals.
func (k SignalKind) Valid() bool {
	return k == SignalConnected || k == SignalDisconnected
}

// RawSignal is a single power transition as delivered by the signal source.
type RawSignal struct {
	Kind        SignalKind `json:"kind"`
	TimestampMs int64      `json:"timestamp_ms"`
}

// OutageInterval is one logged span between a disconnect and the following
// connect. EndTimeMs is nil while the outage is ongoing; DurationSeconds is
// nil exactly when EndTimeMs is.
type OutageInterval struct {
	ID              int64      `json:"id"`
	StartTimeMs     int64      `json:"start_time_ms"`
	EndTimeMs       *int64     `json:"end_time_ms,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	Source          SignalKind `json:"source"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Ongoing reports whether the interval has no recorded end.
func (iv OutageInterval) Ongoing() bool {
	return iv.EndTimeMs == nil
}

// StartTime returns the start instant in the given location.
func (iv OutageInterval) StartTime(loc *time.Location) time.Time {
	return time.UnixMilli(iv.StartTimeMs).In(loc)
}

// DailyTotal is the rollup for one local calendar date.
type DailyTotal struct {
	Date                 string `json:"date"` // YYYY-MM-DD, local
	EventCount           int    `json:"event_count"`
	TotalDurationSeconds int64  `json:"total_duration_seconds"`
}

// TodayTotals is the live rollup for the current local day.
type TodayTotals struct {
	EventCount           int    `json:"event_count"`
	TotalDurationSeconds int64  `json:"total_duration_seconds"`
	FormattedDuration    string `json:"formatted_duration"`
}
