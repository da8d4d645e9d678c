/*
scheduler.go - Cron-driven lesson reminders

PURPOSE:
  Periodically looks a fixed number of hours ahead and logs one reminder per
  upcoming lesson, so an operator tailing the logs (or a log shipper feeding a
  notifier) sees what is about to start.

DESIGN:
  - robfig/cron runs the job on a standard 5-field schedule
  - Each run calls Reporter.Upcoming with the configured horizon
  - The outcome of the last run is kept for the status endpoint
  - Runs never overlap: cron.SkipIfStillRunning wraps the job

CONFIGURATION (config.RemindersConfig):
  - Cron: schedule, default "0 * * * *" (hourly)
  - HorizonHours: lookahead, default 24
  - Enabled: whether Start does anything

USAGE:
  rs := NewReminderScheduler(reporter, logger, cfg.Reminders)
  if err := rs.Start(); err != nil { ... }
  defer rs.Stop()

SEE ALSO:
  - lessons/report.go: Reporter.Upcoming
  - handlers.go: ReminderStatus endpoint
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/lesson-engine/config"
	"github.com/warp/lesson-engine/generic"
	"github.com/warp/lesson-engine/lessons"
)

// ReminderScheduler logs upcoming lessons on a cron schedule.
type ReminderScheduler struct {
	Reporter     *lessons.Reporter
	Logger       *slog.Logger
	Spec         string
	HorizonHours int
	Enabled      bool

	cron *cron.Cron
	mu   sync.Mutex

	lastRun   time.Time
	lastCount int
	lastErr   error
}

// NewReminderScheduler creates a scheduler from the reminder config.
func NewReminderScheduler(rep *lessons.Reporter, logger *slog.Logger, cfg config.RemindersConfig) *ReminderScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderScheduler{
		Reporter:     rep,
		Logger:       logger,
		Spec:         cfg.Cron,
		HorizonHours: cfg.HorizonHours,
		Enabled:      cfg.Enabled,
	}
}

// Start registers the job and starts the cron runner.
func (rs *ReminderScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("reminder scheduler disabled")
		return nil
	}
	if rs.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(rs.Spec, func() { rs.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", rs.Spec, err)
	}
	c.Start()
	rs.cron = c

	rs.Logger.Info("reminder scheduler started", "cron", rs.Spec, "horizon_hours", rs.HorizonHours)
	return nil
}

// Stop halts the runner and waits for a job in flight.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	c := rs.cron
	rs.cron = nil
	rs.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	rs.Logger.Info("reminder scheduler stopped")
}

// RunOnce logs every lesson starting within the horizon and records the run.
func (rs *ReminderScheduler) RunOnce(ctx context.Context) ([]lessons.Session, error) {
	sessions, err := rs.Reporter.Upcoming(ctx, rs.HorizonHours)

	rs.mu.Lock()
	rs.lastRun = time.Now()
	rs.lastCount = len(sessions)
	rs.lastErr = err
	rs.mu.Unlock()

	if err != nil {
		rs.Logger.Error("reminder run failed", "error", err)
		return nil, err
	}
	for _, s := range sessions {
		rs.Logger.Info("upcoming lesson",
			"id", s.ID,
			"title", s.Title,
			"person", s.PersonName,
			"start", s.Start.Format(generic.DateTimeLayout),
			"location", s.Location,
		)
	}
	rs.Logger.Debug("reminder run completed", "count", len(sessions))
	return sessions, nil
}

// Status snapshots the configuration and the last run.
func (rs *ReminderScheduler) Status() ReminderStatusDTO {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	dto := ReminderStatusDTO{
		Enabled:      rs.Enabled,
		Cron:         rs.Spec,
		HorizonHours: rs.HorizonHours,
		LastCount:    rs.lastCount,
	}
	if !rs.lastRun.IsZero() {
		dto.LastRunAt = rs.lastRun.Format(time.RFC3339)
	}
	if rs.lastErr != nil {
		dto.LastError = rs.lastErr.Error()
	}
	return dto
}
