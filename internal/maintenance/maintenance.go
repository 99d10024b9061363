// Package maintenance runs the process-wide background sweep implied by
// spec §5's concurrency model but not detailed in it: a periodic job
// that looks for sessions whose scheduler admission flag appears stuck
// (a crashed worker left "turn in flight" set with no cancel function
// still reachable) and rebuilds the metadata index from a fresh
// directory scan.
//
// Repurposes the teacher's own cron dependency, github.com/robfig/cron/v3
// (pkg/cron/schedule.go uses its parser directly; this uses its full
// Cron scheduler to drive a recurring job instead of just computing one
// next-run timestamp).
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/turnengine/core/internal/session"
)

// Sweeper is the subset of scheduler.Scheduler the maintenance job needs,
// named here so maintenance depends on a narrow consumer-owned interface.
type Sweeper interface {
	SessionsInFlightLongerThan(d time.Duration) []string
}

// Job drives one periodic maintenance sweep.
type Job struct {
	Store   *session.Store
	Sweeper Sweeper
	Log     zerolog.Logger

	StuckThreshold time.Duration

	cron *cron.Cron
}

// New returns a Job ready to be started with Start.
func New(store *session.Store, sweeper Sweeper, log zerolog.Logger, stuckThreshold time.Duration) *Job {
	if stuckThreshold <= 0 {
		stuckThreshold = 5 * time.Minute
	}
	return &Job{Store: store, Sweeper: sweeper, Log: log, StuckThreshold: stuckThreshold}
}

// Start schedules the sweep to run on spec (a standard 5-field cron
// expression, e.g. "*/5 * * * *" for every 5 minutes) and begins running
// it in the background. Call Stop to end it.
func (j *Job) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, j.sweepOnce); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	return nil
}

// Stop ends the background schedule, waiting for any in-flight sweep to
// finish.
func (j *Job) Stop() {
	if j.cron == nil {
		return
	}
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// sweepOnce runs one maintenance pass: logging sessions whose admission
// flag has been held implausibly long (a crashed worker's flag, since
// the Scheduler itself never leaves a turn in flight across a clean
// Submit/defer cycle), and reconciling the metadata index against disk.
func (j *Job) sweepOnce() {
	stuck := j.Sweeper.SessionsInFlightLongerThan(j.StuckThreshold)
	for _, id := range stuck {
		j.Log.Warn().Str("session_id", id).Dur("threshold", j.StuckThreshold).
			Msg("maintenance: session admission flag held longer than threshold, possible crashed worker")
	}

	if err := j.Store.RebuildIndex(context.Background()); err != nil {
		j.Log.Warn().Err(err).Msg("maintenance: metadata index rebuild failed")
		return
	}
	j.Log.Debug().Msg("maintenance: metadata index reconciled from disk")
}
