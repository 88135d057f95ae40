// Package housekeeping runs periodic maintenance jobs.
package housekeeping

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/pixelhaven/marketplace/internal/app/services/sessions"
	"github.com/pixelhaven/marketplace/internal/app/system"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

var _ system.Service = (*Runner)(nil)

// Runner schedules maintenance jobs on a cron timetable. Currently the
// only job purges expired sessions.
type Runner struct {
	sessions *sessions.Service
	log      *logger.Logger
	schedule string
	cron     *cron.Cron
}

// NewRunner creates a housekeeping runner. An empty schedule defaults
// to hourly.
func NewRunner(sessionsSvc *sessions.Service, schedule string, log *logger.Logger) *Runner {
	if schedule == "" {
		schedule = "@hourly"
	}
	if log == nil {
		log = logger.NewDefault("housekeeping")
	}
	return &Runner{sessions: sessionsSvc, log: log, schedule: schedule}
}

func (r *Runner) Name() string { return "housekeeping" }

// Start schedules the jobs and begins the cron loop.
func (r *Runner) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(r.schedule, func() {
		removed, err := r.sessions.PurgeExpired(context.Background())
		if err != nil {
			r.log.WithError(err).Warn("purge expired sessions")
			return
		}
		if removed > 0 {
			r.log.WithField("removed", removed).Info("expired sessions purged")
		}
	})
	if err != nil {
		return err
	}
	r.cron = c
	c.Start()
	r.log.WithField("schedule", r.schedule).Info("housekeeping started")
	return nil
}

// Stop halts the cron loop and waits for a running job.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
