package indexer

import (
	"context"
	"time"
)

const (
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// Retry calls fn up to maxRetries+1 times. The wait between attempts starts at baseDelay
// and doubles, capped at maxRetryDelay. The last error is returned.
func Retry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}

	var err error
	for attempt, delay := 0, baseDelay; ; attempt++ {
		if err = fn(ctx); err == nil || attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay = 2 * delay; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
