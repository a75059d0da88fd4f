package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/webmet/climate-normals/internal/catalog"
)

// Scheduler periodically re-enumerates the station catalog so serve mode
// picks up newly digitized months without a restart.
type Scheduler struct {
	scheduler *gocron.Scheduler
	catalog   *catalog.Catalog
	interval  time.Duration
	log       *slog.Logger
}

// New creates a Scheduler refreshing the catalog every interval.
func New(cat *catalog.Catalog, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		catalog:   cat,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("catalog refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.log.Info("running scheduled catalog refresh")

		// A full enumeration walks decades of monthly listings; give it
		// room, but never let it run into the next refresh.
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()

		if err := s.catalog.Refresh(ctx); err != nil {
			// The previous catalog stays in place; an aborted refresh
			// never persists a partial one.
			s.log.Error("scheduled catalog refresh failed", "error", err)
			return
		}
		s.log.Info("scheduled catalog refresh completed", "stations", s.catalog.Len())
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
