package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultPurgeSchedule runs the expiry purge hourly.
const DefaultPurgeSchedule = "@every 1h"

const purgeTimeout = time.Minute

// Purger deletes expired records.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) error
}

// Janitor runs the purge on a cron schedule.
type Janitor struct {
	cron   *cron.Cron
	purger Purger
	log    zerolog.Logger
}

// NewJanitor schedules purger with a cron spec such as "@every 1h".
func NewJanitor(purger Purger, schedule string, log zerolog.Logger) (*Janitor, error) {
	cronLog := log.With().Str("component", "janitor").Logger()
	j := &Janitor{
		purger: purger,
		log:    cronLog,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&cronLog))),
		),
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, err
	}
	return j, nil
}

// Start starts the scheduler in the background.
func (j *Janitor) Start() {
	j.cron.Start()
	j.log.Info().Int("jobs", len(j.cron.Entries())).Msg("janitor started")
}

// Stop stops the scheduler and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info().Msg("janitor stopped")
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	if err := j.purger.PurgeExpired(ctx, time.Now().UTC()); err != nil {
		j.log.Error().Err(err).Msg("purge failed")
	}
}
