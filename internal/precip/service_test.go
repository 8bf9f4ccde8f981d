package precip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

type fakeStore struct {
	stations map[string]bool
	days     []DayReadings
	recorded []time.Time

	insertErr error
}

func newFakeStore(stations ...string) *fakeStore {
	s := &fakeStore{stations: make(map[string]bool)}
	for _, st := range stations {
		s.stations[st] = true
	}
	return s
}

func (s *fakeStore) InsertDay(_ context.Context, day DayReadings) (int, int, error) {
	if s.insertErr != nil {
		return 0, 0, s.insertErr
	}
	s.days = append(s.days, day)
	s.recorded = append(s.recorded, day.Date)
	return len(day.Readings), 0, nil
}

func (s *fakeStore) RecordedDates(_ context.Context) ([]time.Time, error) {
	return s.recorded, nil
}

func (s *fakeStore) DateRange(_ context.Context) (time.Time, time.Time, error) {
	if len(s.recorded) == 0 {
		return time.Time{}, time.Time{}, ErrNoData
	}
	min, max := s.recorded[0], s.recorded[0]
	for _, d := range s.recorded {
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}
	return min, max, nil
}

func (s *fakeStore) DailySeries(_ context.Context, stations []string, from, to time.Time) ([]DailyValue, error) {
	sel := make(map[string]bool)
	for _, st := range stations {
		sel[st] = true
	}
	sums := make(map[string]DailyValue)
	var order []string
	for _, day := range s.days {
		if day.Date.Before(from) || day.Date.After(to) {
			continue
		}
		for _, r := range day.Readings {
			if !sel[r.Station] {
				continue
			}
			k := r.Station + "|" + DateKey(day.Date)
			v, ok := sums[k]
			if !ok {
				v = DailyValue{Station: r.Station, Date: day.Date}
				order = append(order, k)
			}
			v.AmountMM += r.AmountMM
			sums[k] = v
		}
	}
	out := make([]DailyValue, 0, len(order))
	for _, k := range order {
		out = append(out, sums[k])
	}
	return out, nil
}

func (s *fakeStore) Stations(_ context.Context) ([]Station, error) {
	var stations []Station
	for name := range s.stations {
		stations = append(stations, Station{Name: name})
	}
	return stations, nil
}

func (s *fakeStore) InsertStations(_ context.Context, stations []Station) error {
	for _, st := range stations {
		s.stations[st.Name] = true
	}
	return nil
}

// fakeSource records requested offsets and serves a full day of readings
// for the date the offset resolves to.
type fakeSource struct {
	now     time.Time
	offsets []int

	err       error
	wrongDate bool
}

func (f *fakeSource) FetchDay(_ context.Context, dayOffset int) (DayReadings, error) {
	if f.err != nil {
		return DayReadings{}, f.err
	}
	f.offsets = append(f.offsets, dayOffset)
	date := Midnight(f.now).AddDate(0, 0, -dayOffset)
	if f.wrongDate {
		date = date.AddDate(0, 0, -1)
	}
	return DayReadings{
		Date: date,
		Readings: []HourlyReading{
			{Station: "Brno", MeasuredAt: HourTimestamp(date, 24), AmountMM: 1.5},
		},
	}, nil
}

func newTestService(store Store, source Source, now time.Time) *Service {
	svc := NewService(store, source, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestIngestMissingFetchesOnlyMissingDates(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	store := newFakeStore("Brno")

	// Everything in the window is recorded except offsets 3 and 1.
	for _, off := range []int{7, 6, 5, 4, 2} {
		store.recorded = append(store.recorded, Midnight(now).AddDate(0, 0, -off))
	}

	source := &fakeSource{now: now}
	svc := newTestService(store, source, now)

	report, err := svc.IngestMissing(context.Background(), 1, 7)
	is.NoErr(err)

	// Oldest first.
	is.Equal(source.offsets, []int{3, 1})
	is.Equal(report.Dates, []string{"2024-05-05", "2024-05-07"})
	is.Equal(report.Inserted, 2)
}

func TestIngestMissingWithNothingMissing(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	store := newFakeStore("Brno")
	for off := 1; off <= 7; off++ {
		store.recorded = append(store.recorded, Midnight(now).AddDate(0, 0, -off))
	}

	source := &fakeSource{now: now}
	svc := newTestService(store, source, now)

	report, err := svc.IngestMissing(context.Background(), 1, 7)
	is.NoErr(err)
	is.Equal(len(source.offsets), 0)
	is.Equal(len(report.Dates), 0)
}

func TestIngestDateOffsetWindow(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	store := newFakeStore("Brno")
	source := &fakeSource{now: now}
	svc := newTestService(store, source, now)

	// Today is rejected unless explicitly allowed.
	_, err := svc.IngestDate(context.Background(), Midnight(now), false)
	is.True(errors.Is(err, ErrOutsideWindow))

	_, err = svc.IngestDate(context.Background(), Midnight(now), true)
	is.NoErr(err)

	// Older than the source window.
	_, err = svc.IngestDate(context.Background(), Midnight(now).AddDate(0, 0, -8), false)
	is.True(errors.Is(err, ErrOutsideWindow))
}

func TestIngestDateMismatch(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	store := newFakeStore("Brno")
	source := &fakeSource{now: now, wrongDate: true}
	svc := newTestService(store, source, now)

	_, err := svc.IngestDate(context.Background(), Midnight(now).AddDate(0, 0, -1), false)
	is.True(errors.Is(err, ErrDateMismatch))
	is.Equal(len(store.days), 0) // nothing written
}

func TestIngestFailureLeavesStoreUnchanged(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	store := newFakeStore("Brno")
	store.recorded = append(store.recorded, Midnight(now).AddDate(0, 0, -2))

	source := &fakeSource{now: now, err: errors.New("connection timed out")}
	svc := newTestService(store, source, now)

	_, err := svc.IngestMissing(context.Background(), 1, 7)
	is.True(err != nil)
	is.Equal(len(store.days), 0)
	is.Equal(len(store.recorded), 1) // prior history untouched
}

func TestDailySeriesRejectsUnknownStation(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	store := newFakeStore("Brno")
	store.recorded = append(store.recorded, Midnight(now).AddDate(0, 0, -1))
	svc := newTestService(store, &fakeSource{now: now}, now)

	_, _, _, err := svc.DailySeries(context.Background(), []string{"Atlantis"},
		Midnight(now).AddDate(0, 0, -1), Midnight(now))
	is.True(errors.Is(err, ErrUnknownStation))
}

func TestDailySeriesClampsDisjointRange(t *testing.T) {
	is := is.New(t)

	now := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	store := newFakeStore("Brno")
	recorded := Midnight(now).AddDate(0, 0, -1)
	store.days = append(store.days, DayReadings{
		Date: recorded,
		Readings: []HourlyReading{
			{Station: "Brno", MeasuredAt: HourTimestamp(recorded, 24), AmountMM: 1.5},
		},
	})
	store.recorded = append(store.recorded, recorded)
	svc := newTestService(store, &fakeSource{now: now}, now)

	// A range entirely after the dataset collapses to the newest day.
	values, from, to, err := svc.DailySeries(context.Background(), []string{"Brno"},
		Midnight(now).AddDate(0, 0, 5), Midnight(now).AddDate(0, 0, 10))
	is.NoErr(err)
	is.Equal(from, recorded)
	is.Equal(to, recorded)
	is.Equal(len(values), 1)
	is.Equal(values[0].Date, recorded)

	// And one entirely before it to the oldest.
	values, from, to, err = svc.DailySeries(context.Background(), []string{"Brno"},
		Midnight(now).AddDate(0, 0, -20), Midnight(now).AddDate(0, 0, -10))
	is.NoErr(err)
	is.Equal(from, recorded)
	is.Equal(to, recorded)
	is.Equal(len(values), 1)
	is.Equal(values[0].Date, recorded)
}

func TestSummarize(t *testing.T) {
	is := is.New(t)

	d := func(day int) time.Time {
		return time.Date(2024, 4, day, 0, 0, 0, 0, time.UTC)
	}
	values := []DailyValue{
		{Station: "Brno", Date: d(1), AmountMM: 1},
		{Station: "Brno", Date: d(2), AmountMM: 2},
		{Station: "Brno", Date: d(3), AmountMM: 3},
		{Station: "Aš", Date: d(1), AmountMM: 5},
	}

	summaries := Summarize(values)
	is.Equal(len(summaries), 2)

	// Czech collation puts Aš first.
	is.Equal(summaries[0].Station, "Aš")
	is.Equal(summaries[0].Days, 1)
	is.Equal(summaries[0].TotalMM, 5.0)
	is.Equal(summaries[0].Variance, 0.0) // single day, no variance

	is.Equal(summaries[1].Station, "Brno")
	is.Equal(summaries[1].Days, 3)
	is.Equal(summaries[1].TotalMM, 6.0)
	is.Equal(summaries[1].MeanMM, 2.0)
	is.Equal(summaries[1].Variance, 1.0) // sample variance of 1,2,3
}

func TestParseDate(t *testing.T) {
	is := is.New(t)

	iso, err := ParseDate("2023-10-02")
	is.NoErr(err)
	czech, err := ParseDate("2.10.2023")
	is.NoErr(err)
	is.Equal(iso, czech)

	_, err = ParseDate("32.10.2023")
	is.True(err != nil)
}

func TestHourTimestamp(t *testing.T) {
	is := is.New(t)

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	is.Equal(HourTimestamp(date, 1), date.Add(30*time.Minute))
	is.Equal(HourTimestamp(date, 23), date.Add(22*time.Hour+30*time.Minute))
	is.Equal(HourTimestamp(date, 24), date.Add(23*time.Hour+30*time.Minute))
}
