package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Runner executes detached background work. The triggering request is not
// blocked; failures are retried a bounded number of times and logged, and the
// returned channel carries the final outcome for callers that do want to
// observe completion (tests, shutdown hooks).
type Runner struct {
	logger  zerolog.Logger
	wg      sync.WaitGroup
	retries int
	backoff time.Duration
}

func NewRunner(logger zerolog.Logger, retries int, backoff time.Duration) *Runner {
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Runner{logger: logger, retries: retries, backoff: backoff}
}

// Go launches fn on its own goroutine with a fresh background context, so it
// survives the HTTP request that triggered it.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx := context.Background()

		var err error
		for attempt := 0; attempt <= r.retries; attempt++ {
			if attempt > 0 {
				r.logger.Warn().Str("task", name).Int("attempt", attempt).Err(err).Msg("retrying background task")
				time.Sleep(r.backoff)
			}
			if err = fn(ctx); err == nil {
				break
			}
		}
		if err != nil {
			r.logger.Error().Str("task", name).Err(err).Msg("background task failed")
		} else {
			r.logger.Debug().Str("task", name).Msg("background task finished")
		}
		done <- err
		close(done)
	}()
	return done
}

// Wait blocks until every launched task has finished. Used at shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
