// Package retry runs operations against flaky collaborators with a bounded
// number of attempts and quadratic backoff.
// This is part of the platform layer and contains no business logic.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_assistant_backend/platform/logger"
)

// Do calls fn up to attempts times, sleeping attempt²·baseDelay between tries.
// It stops early when ctx is done. The returned error wraps the last failure.
func Do(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if log != nil {
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}

// Once is the collaborator-boundary policy: one initial try plus a single retry.
func Once(ctx context.Context, log *logger.Logger, name string, fn func(context.Context) error) error {
	return Do(ctx, log, name, 2, 200*time.Millisecond, fn)
}
