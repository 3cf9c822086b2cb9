package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/nowplaying-aggregator/internal/logging"
	"github.com/i474232898/nowplaying-aggregator/internal/status"
)

const defaultInterval = 5 * time.Minute

// Scheduler periodically logs the status tracker so refresh and fetch
// health shows up in the logs without polling the debug endpoint.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tracker   *status.Tracker
	interval  time.Duration
}

// New creates a new Scheduler.
func New(tracker *status.Tracker, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		tracker:   tracker,
		interval:  interval,
	}
}

// Start schedules the heartbeat job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.heartbeat)
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

func (s *Scheduler) heartbeat() {
	snap := s.tracker.Snapshot()
	logging.Info().
		Interface("refresh", snap.Refresh).
		Interface("fetch", snap.Fetch).
		Msg("scheduler: status heartbeat")
}
