package precip

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned by stores when no precipitation has been recorded
// yet, e.g. when asking for the dataset date range before the first ingest.
var ErrNoData = errors.New("no precipitation data recorded")

// Source abstracts the remote precipitation data source (CHMI).
type Source interface {
	// FetchDay retrieves all hourly readings for the day at the given
	// offset (0 = today, 1 = yesterday, ... up to the source's maximum).
	FetchDay(ctx context.Context, dayOffset int) (DayReadings, error)
}

// Store is the contract the SQLite store (and the in-memory test store)
// must satisfy. Writes are append-only and idempotent: a reading whose
// (station, timestamp) key is already present is silently skipped.
type Store interface {
	// InsertDay atomically appends one day of readings. It reports how
	// many rows were inserted and how many were skipped as duplicates or
	// because their station is unknown.
	InsertDay(ctx context.Context, day DayReadings) (inserted, skipped int, err error)

	// RecordedDates returns the dates already fully present in the store,
	// i.e. those whose final hour has been recorded.
	RecordedDates(ctx context.Context) ([]time.Time, error)

	// DateRange returns the oldest and newest recorded date.
	DateRange(ctx context.Context) (min, max time.Time, err error)

	// DailySeries returns per-station daily totals for the named stations
	// between from and to (inclusive), ordered by station and date.
	DailySeries(ctx context.Context, stations []string, from, to time.Time) ([]DailyValue, error)

	Stations(ctx context.Context) ([]Station, error)
	InsertStations(ctx context.Context, stations []Station) error
}
