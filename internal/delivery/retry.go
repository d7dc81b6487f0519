package delivery

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// retry invokes op at most attempts times and returns the number of
// invocations made. Errors for which retryable returns false end the loop
// immediately. The context is checked before every invocation and during
// each backoff.
func (c *Coordinator) retry(ctx context.Context, logger *log.Entry, attempts int, backoff time.Duration,
	retryable func(error) bool, op func(context.Context) error) (int, error) {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt - 1, ctxErr
		}

		if err = op(ctx); err == nil {
			return attempt, nil
		}
		if !retryable(err) || attempt == attempts {
			return attempt, err
		}

		logger.WithField("attempt", attempt).Warnf("Attempt failed, retrying in %s: %v", backoff, err)
		if sleepErr := c.sleep(ctx, backoff); sleepErr != nil {
			return attempt, sleepErr
		}
	}
	return attempts, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
