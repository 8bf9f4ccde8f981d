package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jskoda/precip-dashboard/internal/precip"
)

// Scheduler runs the catch-up ingestion once a day.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *precip.Service
	log       *slog.Logger

	at        string // HH:MM, UTC
	minOffset int
	maxOffset int
	timeout   time.Duration
}

// New creates a Scheduler firing daily at the given HH:MM (UTC).
func New(service *precip.Service, at string, minOffset, maxOffset int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		log:       log,
		at:        at,
		minOffset: minOffset,
		maxOffset: maxOffset,
		timeout:   15 * time.Minute,
	}
}

// Start schedules the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		s.log.Info("scheduled ingestion starting", "at", s.at)

		// The scrape pages through the whole station list for up to
		// seven days, so give the run a generous deadline.
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		report, err := s.service.IngestMissing(ctx, s.minOffset, s.maxOffset)
		if err != nil {
			s.log.Error("scheduled ingestion failed", "error", err)
			return
		}
		s.log.Info("scheduled ingestion finished",
			"dates", len(report.Dates),
			"inserted", report.Inserted,
			"skipped", report.Skipped)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
