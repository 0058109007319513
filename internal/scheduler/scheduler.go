// Package scheduler runs a task on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

// Every runs task every interval until ctx is done. With runNow the first run
// starts immediately. Runs never overlap: a slow run delays the next tick.
func Every(ctx context.Context, interval time.Duration, name string, runNow bool, logger zerolog.Logger, task Task) {
	logger = logger.With().Str("component", "scheduler").Str("task", name).Logger()

	t := time.NewTicker(interval)
	defer t.Stop()

	run := func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled run failed")
			return
		}
		logger.Debug().Dur("duration", time.Since(start)).Msg("Scheduled run completed")
	}

	logger.Info().Dur("interval", interval).Bool("run_now", runNow).Msg("Scheduler started")

	if runNow {
		run()
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Scheduler stopped")
			return
		case <-t.C:
			run()
		}
	}
}
