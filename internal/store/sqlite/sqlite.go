// Package sqlite persists the precipitation dataset in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jskoda/precip-dashboard/internal/precip"
)

// timeLayout is how measurement timestamps are stored; the format keeps
// SQLite's date() and strftime() usable on the column.
const timeLayout = "2006-01-02 15:04:05"

// Store implements precip.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the database at path. Use ":memory:"
// for an ephemeral store in tests.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection sidesteps SQLite writer contention and keeps
	// ":memory:" databases from fragmenting across pool connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		elevation REAL NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		chmi_id TEXT NOT NULL,
		type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hourly_precip (
		station_id INTEGER NOT NULL,
		measured_at TEXT NOT NULL,
		amount_mm REAL NOT NULL,
		PRIMARY KEY (station_id, measured_at),
		FOREIGN KEY (station_id) REFERENCES stations(id)
	) WITHOUT ROWID;

	CREATE INDEX IF NOT EXISTS idx_hourly_precip_measured_at ON hourly_precip(measured_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertDay appends one day of readings in a single transaction. Rows whose
// (station, timestamp) key already exists are skipped, as are rows for
// stations missing from the stations table.
func (s *Store) InsertDay(ctx context.Context, day precip.DayReadings) (inserted, skipped int, err error) {
	ids, err := s.stationIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO hourly_precip (station_id, measured_at, amount_mm) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range day.Readings {
		id, ok := ids[r.Station]
		if !ok {
			skipped++
			continue
		}
		res, err := stmt.ExecContext(ctx, id, r.MeasuredAt.UTC().Format(timeLayout), r.AmountMM)
		if err != nil {
			return 0, 0, fmt.Errorf("inserting reading for %s: %w", r.Station, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, err
		}
		if n == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing day %s: %w", precip.DateKey(day.Date), err)
	}
	return inserted, skipped, nil
}

// RecordedDates lists the dates whose final hour has been stored. A day
// with its last hourly reading present (timestamp 23:30) counts as fully
// recorded; partially scraped days do not.
func (s *Store) RecordedDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT date(measured_at) FROM hourly_precip
		 WHERE strftime('%H', measured_at) = '23'
		 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("querying recorded dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		t, err := precip.ParseDate(d)
		if err != nil {
			return nil, err
		}
		dates = append(dates, t)
	}
	return dates, rows.Err()
}

// DateRange returns the oldest and newest date with any recorded reading.
func (s *Store) DateRange(ctx context.Context) (min, max time.Time, err error) {
	var minStr, maxStr sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(date(measured_at)), MAX(date(measured_at)) FROM hourly_precip`).
		Scan(&minStr, &maxStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("querying date range: %w", err)
	}
	if !minStr.Valid || !maxStr.Valid {
		return time.Time{}, time.Time{}, precip.ErrNoData
	}
	if min, err = precip.ParseDate(minStr.String); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if max, err = precip.ParseDate(maxStr.String); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return min, max, nil
}

// DailySeries sums the hourly readings per station and day over the range.
func (s *Store) DailySeries(ctx context.Context, stations []string, from, to time.Time) ([]precip.DailyValue, error) {
	if len(stations) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(stations)-1) + "?"
	query := fmt.Sprintf(`
		SELECT s.name, date(h.measured_at) AS day, SUM(h.amount_mm)
		FROM hourly_precip h
		JOIN stations s ON h.station_id = s.id
		WHERE s.name IN (%s) AND date(h.measured_at) BETWEEN ? AND ?
		GROUP BY s.name, day
		ORDER BY s.name, day`, placeholders)

	args := make([]any, 0, len(stations)+2)
	for _, st := range stations {
		args = append(args, st)
	}
	args = append(args, precip.DateKey(from), precip.DateKey(to))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying daily series: %w", err)
	}
	defer rows.Close()

	var values []precip.DailyValue
	for rows.Next() {
		var (
			v   precip.DailyValue
			day string
		)
		if err := rows.Scan(&v.Station, &day, &v.AmountMM); err != nil {
			return nil, err
		}
		if v.Date, err = precip.ParseDate(day); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Stations returns all station metadata.
func (s *Store) Stations(ctx context.Context) ([]precip.Station, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, elevation, lat, lon, chmi_id, type FROM stations`)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	defer rows.Close()

	var stations []precip.Station
	for rows.Next() {
		var st precip.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Elevation, &st.Lat, &st.Lon, &st.ChmiID, &st.Type); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// InsertStations imports station metadata, skipping names already present
// so that a repeated import is harmless.
func (s *Store) InsertStations(ctx context.Context, stations []precip.Station) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO stations (name, elevation, lat, lon, chmi_id, type) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing station insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range stations {
		if _, err := stmt.ExecContext(ctx, st.Name, st.Elevation, st.Lat, st.Lon, st.ChmiID, st.Type); err != nil {
			return fmt.Errorf("inserting station %q: %w", st.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) stationIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM stations`)
	if err != nil {
		return nil, fmt.Errorf("querying station ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, rows.Err()
}
