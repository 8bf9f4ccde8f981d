package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/jskoda/precip-dashboard/internal/precip"
)

func seedMemory(t *testing.T, s *MemoryStore, names ...string) {
	t.Helper()
	stations := make([]precip.Station, 0, len(names))
	for _, n := range names {
		stations = append(stations, precip.Station{Name: n})
	}
	if err := s.InsertStations(context.Background(), stations); err != nil {
		t.Fatalf("failed to seed stations: %v", err)
	}
}

func day(date time.Time, amount float64, stations ...string) precip.DayReadings {
	d := precip.DayReadings{Date: date}
	for _, st := range stations {
		for h := 1; h <= 24; h++ {
			d.Readings = append(d.Readings, precip.HourlyReading{
				Station:    st,
				MeasuredAt: precip.HourTimestamp(date, h),
				AmountMM:   amount,
			})
		}
	}
	return d
}

func TestMemoryInsertDayIdempotent(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore()
	ctx := context.Background()
	seedMemory(t, s, "Brno")

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ins, skip, err := s.InsertDay(ctx, day(date, 0.5, "Brno"))
	is.NoErr(err)
	is.Equal(ins, 24)
	is.Equal(skip, 0)

	before := s.Snapshot()

	// Re-running the same day, even with different amounts, changes nothing.
	ins, skip, err = s.InsertDay(ctx, day(date, 9.9, "Brno"))
	is.NoErr(err)
	is.Equal(ins, 0)
	is.Equal(skip, 24)
	is.True(reflect.DeepEqual(before, s.Snapshot()))
}

func TestMemoryRecordedDates(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore()
	ctx := context.Background()
	seedMemory(t, s, "Brno")

	full := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	partial := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	_, _, err := s.InsertDay(ctx, day(full, 1, "Brno"))
	is.NoErr(err)

	_, _, err = s.InsertDay(ctx, precip.DayReadings{
		Date: partial,
		Readings: []precip.HourlyReading{
			{Station: "Brno", MeasuredAt: precip.HourTimestamp(partial, 12), AmountMM: 1},
		},
	})
	is.NoErr(err)

	dates, err := s.RecordedDates(ctx)
	is.NoErr(err)
	is.Equal(dates, []time.Time{full})
}

func TestMemoryDailySeries(t *testing.T) {
	is := is.New(t)
	s := NewMemoryStore()
	ctx := context.Background()
	seedMemory(t, s, "Brno", "Aš")

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, _, err := s.InsertDay(ctx, day(start.AddDate(0, 0, i), 0.5, "Brno", "Aš"))
		is.NoErr(err)
	}

	values, err := s.DailySeries(ctx, []string{"Brno"}, start, start.AddDate(0, 0, 1))
	is.NoErr(err)
	is.Equal(len(values), 2) // only Brno, only two days
	for _, v := range values {
		is.Equal(v.Station, "Brno")
		is.Equal(v.AmountMM, 12.0)
	}
}
