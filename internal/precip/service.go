package precip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

var (
	// ErrOutsideWindow is returned when a requested date cannot be fetched
	// because its offset from today falls outside the source's window.
	ErrOutsideWindow = errors.New("date outside the allowed offset window")

	// ErrDateMismatch is returned when the source reports data for a
	// different day than the one requested.
	ErrDateMismatch = errors.New("downloaded date differs from requested date")

	// ErrUnknownStation is returned for selections naming stations that do
	// not exist in the dataset.
	ErrUnknownStation = errors.New("unknown station")
)

// MaxDayOffset is the oldest day offset the CHMI source still serves.
const MaxDayOffset = 7

// Service orchestrates ingestion from the remote source and read access
// for the dashboard.
type Service struct {
	store  Store
	source Source
	log    *slog.Logger

	now func() time.Time
}

// NewService creates a new Service.
func NewService(store Store, source Source, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		source: source,
		log:    log,
		now:    time.Now,
	}
}

// IngestReport describes the outcome of one ingestion run.
type IngestReport struct {
	Dates    []string `json:"dates"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
}

// IngestMissing fetches and stores every date in the [minOffset, maxOffset]
// window that is not yet recorded, oldest first. It stops at the first
// failed date; dates merged before the failure remain stored (each date is
// inserted atomically), and the next run retries the rest.
func (s *Service) IngestMissing(ctx context.Context, minOffset, maxOffset int) (IngestReport, error) {
	var report IngestReport

	if minOffset < 0 || maxOffset > MaxDayOffset || minOffset > maxOffset {
		return report, fmt.Errorf("invalid offset window [%d, %d]", minOffset, maxOffset)
	}

	recorded, err := s.store.RecordedDates(ctx)
	if err != nil {
		return report, fmt.Errorf("listing recorded dates: %w", err)
	}
	have := make(map[string]bool, len(recorded))
	for _, d := range recorded {
		have[DateKey(d)] = true
	}

	today := Midnight(s.now())
	var missing []time.Time
	for off := maxOffset; off >= minOffset; off-- {
		d := today.AddDate(0, 0, -off)
		if !have[DateKey(d)] {
			missing = append(missing, d)
		}
	}

	s.log.Info("ingestion run starting",
		"missingDates", len(missing),
		"minOffset", minOffset,
		"maxOffset", maxOffset)

	for _, d := range missing {
		ins, skip, err := s.ingestDate(ctx, d, minOffset == 0)
		if err != nil {
			return report, fmt.Errorf("ingesting %s: %w", DateKey(d), err)
		}
		report.Dates = append(report.Dates, DateKey(d))
		report.Inserted += ins
		report.Skipped += skip
	}

	s.log.Info("ingestion run completed",
		"dates", len(report.Dates),
		"inserted", report.Inserted,
		"skipped", report.Skipped)

	return report, nil
}

// IngestDate fetches and stores a single date. allowToday permits offset 0,
// whose data is still incomplete at the source.
func (s *Service) IngestDate(ctx context.Context, date time.Time, allowToday bool) (IngestReport, error) {
	ins, skip, err := s.ingestDate(ctx, Midnight(date), allowToday)
	if err != nil {
		return IngestReport{}, err
	}
	return IngestReport{
		Dates:    []string{DateKey(date)},
		Inserted: ins,
		Skipped:  skip,
	}, nil
}

func (s *Service) ingestDate(ctx context.Context, date time.Time, allowToday bool) (inserted, skipped int, err error) {
	offset := int(Midnight(s.now()).Sub(date).Hours() / 24)
	minOffset := 1
	if allowToday {
		minOffset = 0
	}
	if offset < minOffset || offset > MaxDayOffset {
		return 0, 0, fmt.Errorf("%w: %s has offset %d, allowed [%d, %d]",
			ErrOutsideWindow, DateKey(date), offset, minOffset, MaxDayOffset)
	}

	day, err := s.source.FetchDay(ctx, offset)
	if err != nil {
		return 0, 0, err
	}

	// The offset is relative, so a slow download around midnight (or a
	// source-side hiccup) can return a different day than intended.
	if !day.Date.Equal(date) {
		return 0, 0, fmt.Errorf("%w: requested %s, got %s (offset %d)",
			ErrDateMismatch, DateKey(date), DateKey(day.Date), offset)
	}

	inserted, skipped, err = s.store.InsertDay(ctx, day)
	if err != nil {
		return 0, 0, err
	}

	s.log.Info("day ingested",
		"date", DateKey(date),
		"inserted", inserted,
		"skipped", skipped)
	return inserted, skipped, nil
}

// Stations returns all known stations ordered by Czech collation.
func (s *Service) Stations(ctx context.Context) ([]Station, error) {
	stations, err := s.store.Stations(ctx)
	if err != nil {
		return nil, err
	}
	SortStations(stations)
	return stations, nil
}

// DateRange returns the recorded dataset bounds.
func (s *Service) DateRange(ctx context.Context) (min, max time.Time, err error) {
	return s.store.DateRange(ctx)
}

// DailySeries returns daily totals for the selected stations over the
// requested range, along with the effective range after clamping to the
// recorded dataset bounds. Unknown station names are rejected.
func (s *Service) DailySeries(ctx context.Context, stations []string, from, to time.Time) ([]DailyValue, time.Time, time.Time, error) {
	from, to, err := s.clampRange(ctx, from, to)
	if err != nil {
		return nil, from, to, err
	}
	if err := s.checkStations(ctx, stations); err != nil {
		return nil, from, to, err
	}
	values, err := s.store.DailySeries(ctx, stations, from, to)
	return values, from, to, err
}

// Summaries computes per-station summary statistics (total, daily mean,
// sample variance) over the requested range.
func (s *Service) Summaries(ctx context.Context, stations []string, from, to time.Time) ([]StationSummary, time.Time, time.Time, error) {
	values, from, to, err := s.DailySeries(ctx, stations, from, to)
	if err != nil {
		return nil, from, to, err
	}
	return Summarize(values), from, to, nil
}

func (s *Service) clampRange(ctx context.Context, from, to time.Time) (time.Time, time.Time, error) {
	min, max, err := s.store.DateRange(ctx)
	if err != nil {
		return from, to, err
	}
	// Both endpoints are clamped into the recorded bounds, so a selection
	// lying entirely outside the dataset collapses to the nearest recorded
	// day instead of producing an inverted range.
	clamp := func(t time.Time) time.Time {
		if t.Before(min) {
			return min
		}
		if t.After(max) {
			return max
		}
		return t
	}
	return clamp(from), clamp(to), nil
}

func (s *Service) checkStations(ctx context.Context, names []string) error {
	stations, err := s.store.Stations(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(stations))
	for _, st := range stations {
		known[st.Name] = true
	}
	for _, n := range names {
		if !known[n] {
			return fmt.Errorf("%w: %q", ErrUnknownStation, n)
		}
	}
	return nil
}

// Summarize aggregates daily values into one summary row per station.
// Variance is the sample variance of the daily totals (0 for fewer than
// two days).
func Summarize(values []DailyValue) []StationSummary {
	totals := make(map[string][]float64)
	for _, v := range values {
		totals[v.Station] = append(totals[v.Station], v.AmountMM)
	}

	summaries := make([]StationSummary, 0, len(totals))
	for station, daily := range totals {
		var sum float64
		for _, a := range daily {
			sum += a
		}
		n := float64(len(daily))
		mean := sum / n

		var variance float64
		if len(daily) > 1 {
			var sq float64
			for _, a := range daily {
				d := a - mean
				sq += d * d
			}
			variance = sq / (n - 1)
		}

		summaries = append(summaries, StationSummary{
			Station:  station,
			Days:     len(daily),
			TotalMM:  sum,
			MeanMM:   mean,
			Variance: variance,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return CompareCzech(summaries[i].Station, summaries[j].Station) < 0
	})
	return summaries
}
