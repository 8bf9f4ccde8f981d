// precip-fetch runs one ingestion pass and exits, so an external scheduler
// (cron, CI job) can drive the daily update without keeping a process
// around. A non-zero exit marks a failed run for the scheduler to report.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/jskoda/precip-dashboard/internal/config"
	"github.com/jskoda/precip-dashboard/internal/logging"
	"github.com/jskoda/precip-dashboard/internal/precip"
	"github.com/jskoda/precip-dashboard/internal/precip/chmi"
	"github.com/jskoda/precip-dashboard/internal/store/sqlite"
)

var (
	dateFlag    string
	allowToday  bool
	stationsCSV string
)

func main() {
	flag.StringVar(&dateFlag, "date", "", "ingest a single date (yyyy-mm-dd) instead of the catch-up window")
	flag.BoolVar(&allowToday, "allow-today", false, "permit fetching today's still-incomplete data")
	flag.StringVar(&stationsCSV, "stations-csv", "", "import station metadata from this CSV before ingesting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logging.New(cfg.AppEnv, cfg.LogLevel, "precip-fetch")
	slog.SetDefault(logg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logg.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if stationsCSV != "" {
		if err := importStations(ctx, db, stationsCSV, logg); err != nil {
			logg.Error("failed to import stations", "error", err)
			os.Exit(1)
		}
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	var chmiOpts []chmi.Option
	if cfg.ChmiBaseURL != "" {
		chmiOpts = append(chmiOpts, chmi.WithBaseURL(cfg.ChmiBaseURL))
	}
	chmiOpts = append(chmiOpts, chmi.WithPageDelay(cfg.PageDelay))
	source := chmi.NewClient(httpClient, chmiOpts...)

	service := precip.NewService(db, source, logg)

	var report precip.IngestReport
	if dateFlag != "" {
		date, err := precip.ParseDate(dateFlag)
		if err != nil {
			logg.Error("invalid -date", "error", err)
			os.Exit(2)
		}
		report, err = service.IngestDate(ctx, date, allowToday)
		if err != nil {
			logg.Error("ingestion failed", "date", dateFlag, "error", err)
			os.Exit(1)
		}
	} else {
		minOffset := cfg.FetchMinOffset
		if allowToday {
			minOffset = 0
		}
		report, err = service.IngestMissing(ctx, minOffset, cfg.FetchMaxOffset)
		if err != nil {
			logg.Error("ingestion failed", "error", err)
			os.Exit(1)
		}
	}

	logg.Info("done",
		"dates", report.Dates,
		"inserted", report.Inserted,
		"skipped", report.Skipped)
}

func importStations(ctx context.Context, db *sqlite.Store, path string, logg *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stations, err := precip.ReadStationsCSV(f)
	if err != nil {
		return err
	}
	if err := db.InsertStations(ctx, stations); err != nil {
		return err
	}
	logg.Info("stations imported", "path", path, "count", len(stations))
	return nil
}
