// Package store provides an in-memory implementation of precip.Store.
// The SQLite implementation in the sqlite subpackage is the one used in
// production; this one backs unit tests.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jskoda/precip-dashboard/internal/precip"
)

type readingKey struct {
	station string
	at      time.Time
}

// MemoryStore is a concurrency-safe in-memory precipitation store.
type MemoryStore struct {
	mu sync.RWMutex

	stations map[string]precip.Station
	nextID   int64
	readings map[readingKey]float64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stations: make(map[string]precip.Station),
		nextID:   1,
		readings: make(map[readingKey]float64),
	}
}

// InsertDay appends one day of readings. The whole day is applied at once
// under the lock, so readers never observe a partial day.
func (s *MemoryStore) InsertDay(_ context.Context, day precip.DayReadings) (inserted, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range day.Readings {
		if _, ok := s.stations[r.Station]; !ok {
			skipped++
			continue
		}
		k := readingKey{station: r.Station, at: r.MeasuredAt.UTC()}
		if _, ok := s.readings[k]; ok {
			skipped++
			continue
		}
		s.readings[k] = r.AmountMM
		inserted++
	}
	return inserted, skipped, nil
}

// RecordedDates lists dates whose final hourly reading (23:30) is present.
func (s *MemoryStore) RecordedDates(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]time.Time)
	for k := range s.readings {
		if k.at.Hour() == 23 {
			d := precip.Midnight(k.at)
			seen[precip.DateKey(d)] = d
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// DateRange returns the oldest and newest date with any recorded reading.
func (s *MemoryStore) DateRange(_ context.Context) (min, max time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.readings) == 0 {
		return time.Time{}, time.Time{}, precip.ErrNoData
	}
	for k := range s.readings {
		d := precip.Midnight(k.at)
		if min.IsZero() || d.Before(min) {
			min = d
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}
	return min, max, nil
}

// DailySeries sums hourly readings per station and day over the range.
func (s *MemoryStore) DailySeries(_ context.Context, stations []string, from, to time.Time) ([]precip.DailyValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := make(map[string]bool, len(stations))
	for _, st := range stations {
		selected[st] = true
	}

	type dayKey struct {
		station string
		date    string
	}
	sums := make(map[dayKey]precip.DailyValue)
	for k, amount := range s.readings {
		if !selected[k.station] {
			continue
		}
		d := precip.Midnight(k.at)
		if d.Before(from) || d.After(to) {
			continue
		}
		dk := dayKey{station: k.station, date: precip.DateKey(d)}
		v := sums[dk]
		v.Station = k.station
		v.Date = d
		v.AmountMM += amount
		sums[dk] = v
	}

	values := make([]precip.DailyValue, 0, len(sums))
	for _, v := range sums {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if values[i].Station != values[j].Station {
			return values[i].Station < values[j].Station
		}
		return values[i].Date.Before(values[j].Date)
	})
	return values, nil
}

// Stations returns all station metadata.
func (s *MemoryStore) Stations(_ context.Context) ([]precip.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stations := make([]precip.Station, 0, len(s.stations))
	for _, st := range s.stations {
		stations = append(stations, st)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })
	return stations, nil
}

// InsertStations imports station metadata, skipping names already present.
func (s *MemoryStore) InsertStations(_ context.Context, stations []precip.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range stations {
		if _, ok := s.stations[st.Name]; ok {
			continue
		}
		st.ID = s.nextID
		s.nextID++
		s.stations[st.Name] = st
	}
	return nil
}

// Snapshot returns a copy of every stored reading, keyed by station and
// timestamp. Tests use it to assert that runs never mutate history.
func (s *MemoryStore) Snapshot() map[string]map[time.Time]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[time.Time]float64)
	for k, amount := range s.readings {
		if out[k.station] == nil {
			out[k.station] = make(map[time.Time]float64)
		}
		out[k.station][k.at] = amount
	}
	return out
}
