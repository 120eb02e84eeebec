// Package retry provides a generic retry-with-backoff helper shared by all
// provider call sites.
package retry

import (
	"context"
	"time"
)

// Classifier decides whether an error is worth retrying. Terminal errors
// (bad credentials, malformed requests) should return false.
type Classifier func(error) bool

// Config controls attempt count and backoff shape.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig retries twice after the initial attempt with exponential
// backoff starting at 250ms.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Do runs op until it succeeds, the classifier rejects the error, attempts
// are exhausted, or the context is cancelled. The last error is returned.
func Do(ctx context.Context, cfg Config, retryable Classifier, op func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
