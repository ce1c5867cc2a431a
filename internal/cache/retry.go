package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devsetup/internal/logx"
)

// permanentError stops retry loops early, e.g. for a 404.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// retry runs op up to attempts times, sleeping wait between tries. It returns
// the number of attempts made.
func retry(ctx context.Context, logger *logx.Logger, what string, attempts int, wait time.Duration, op func() error) (int, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.Infof("retry %d/%d for %s (waiting %v)", attempt, attempts, what, wait)
			select {
			case <-ctx.Done():
				return attempt - 1, fmt.Errorf("%s: %w", what, ctx.Err())
			case <-time.After(wait):
			}
		}

		err := op()
		if err == nil {
			if attempt > 1 {
				logger.Infof("succeeded on attempt %d for %s", attempt, what)
			}
			return attempt, nil
		}
		lastErr = err

		var perm permanentError
		if errors.As(err, &perm) {
			return attempt, perm.err
		}
		if ctx.Err() != nil {
			return attempt, err
		}
		logger.Debugf("attempt %d for %s failed: %v", attempt, what, err)
	}
	return attempts, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
