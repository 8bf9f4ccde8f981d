package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/jskoda/precip-dashboard/internal/api/http"
	"github.com/jskoda/precip-dashboard/internal/config"
	"github.com/jskoda/precip-dashboard/internal/logging"
	"github.com/jskoda/precip-dashboard/internal/precip"
	"github.com/jskoda/precip-dashboard/internal/precip/chmi"
	"github.com/jskoda/precip-dashboard/internal/scheduler"
	"github.com/jskoda/precip-dashboard/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg := logging.New(cfg.AppEnv, cfg.LogLevel, "precip-dashboard")
	slog.SetDefault(logg)

	// Persistent precipitation dataset.
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logg.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := importStations(db, cfg.StationsCSV, logg); err != nil {
		logg.Error("failed to import stations", "error", err)
		os.Exit(1)
	}

	// Shared HTTP client for outbound CHMI calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var chmiOpts []chmi.Option
	if cfg.ChmiBaseURL != "" {
		chmiOpts = append(chmiOpts, chmi.WithBaseURL(cfg.ChmiBaseURL))
	}
	chmiOpts = append(chmiOpts, chmi.WithPageDelay(cfg.PageDelay))
	source := chmi.NewClient(httpClient, chmiOpts...)

	service := precip.NewService(db, source, logg)

	// Daily ingestion schedule.
	sched := scheduler.New(service, cfg.FetchAt, cfg.FetchMinOffset, cfg.FetchMaxOffset, logg)
	if err := sched.Start(); err != nil {
		logg.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "precip-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "precip-dashboard",
		})
	})

	httpapi.RegisterDashboard(app)
	httpapi.RegisterRoutes(app, service, httpapi.RouteOptions{
		FetchMinOffset: cfg.FetchMinOffset,
		FetchMaxOffset: cfg.FetchMaxOffset,
	})

	go func() {
		logg.Info("http listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logg.Error("fiber server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Error("error during shutdown", "error", err)
	}
}

// importStations seeds the stations table from the metadata CSV when one is
// configured. The insert skips names already present, so running at every
// startup is safe.
func importStations(db *sqlite.Store, path string, logg *slog.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stations, err := precip.ReadStationsCSV(f)
	if err != nil {
		return err
	}
	if err := db.InsertStations(context.Background(), stations); err != nil {
		return err
	}
	logg.Info("stations imported", "path", path, "count", len(stations))
	return nil
}
