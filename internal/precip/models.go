package precip

import (
	"fmt"
	"time"
)

// DatasetStart is the first date covered by the historical backfill.
// Readings before it are never expected to appear.
var DatasetStart = time.Date(2023, time.October, 10, 0, 0, 0, 0, time.UTC)

// Station is a fixed CHMI precipitation-measuring location.
type Station struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Elevation float64 `json:"elevation"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	ChmiID    string  `json:"chmiId"`
	Type      string  `json:"type"`
}

// HourlyReading is a single hourly precipitation measurement. Following the
// source data, the timestamp is the middle of the measured hour (22:30 for
// the hour ending at 23:00).
type HourlyReading struct {
	Station    string    `json:"station"`
	MeasuredAt time.Time `json:"measuredAt"` // always UTC
	AmountMM   float64   `json:"amountMm"`
}

// DayReadings holds everything the remote source reported for one day.
type DayReadings struct {
	Date     time.Time `json:"date"` // midnight UTC
	Readings []HourlyReading
}

// DailyValue is the per-station daily precipitation total derived from the
// stored hourly readings.
type DailyValue struct {
	Station  string    `json:"station"`
	Date     time.Time `json:"date"`
	AmountMM float64   `json:"amountMm"`
}

// Aggregation selects the statistic shown in the dashboard summary.
type Aggregation string

const (
	AggSum  Aggregation = "sum"
	AggMean Aggregation = "mean"
	AggVar  Aggregation = "var"
)

// StationSummary holds the summary statistics for one station over a range.
type StationSummary struct {
	Station  string  `json:"station"`
	Days     int     `json:"days"`
	TotalMM  float64 `json:"totalMm"`
	MeanMM   float64 `json:"meanMm"`
	Variance float64 `json:"variance"`
}

// Value returns the statistic selected by agg.
func (s StationSummary) Value(agg Aggregation) float64 {
	switch agg {
	case AggMean:
		return s.MeanMM
	case AggVar:
		return s.Variance
	default:
		return s.TotalMM
	}
}

// HourTimestamp maps an hour column (1..24) on a given day to the stored
// timestamp, the middle of the measured hour.
func HourTimestamp(date time.Time, hour int) time.Time {
	return date.Add(time.Duration(hour)*time.Hour - 30*time.Minute)
}

// ParseDate accepts ISO (2023-10-02) and Czech (2.10.2023) date formats,
// returning midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2.1.2006", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q; expected yyyy-mm-dd or d.m.yyyy", s)
}

// Midnight truncates t to midnight UTC.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date the way stores index it.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
