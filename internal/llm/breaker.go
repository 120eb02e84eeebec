package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"inbox-janitor-go/internal/apperrors"
	"inbox-janitor-go/internal/retry"
)

// RetryProvider retries each call a bounded number of times with
// exponential backoff before letting the failure count against the
// breaker. Terminal errors are not retried.
type RetryProvider struct {
	inner Provider
	cfg   retry.Config
}

// NewRetryProvider wraps a provider with the shared retry helper.
func NewRetryProvider(inner Provider, maxRetries int) *RetryProvider {
	cfg := retry.DefaultConfig()
	if maxRetries >= 0 {
		cfg.MaxAttempts = maxRetries + 1
	}
	return &RetryProvider{inner: inner, cfg: cfg}
}

// Name returns the wrapped provider's name.
func (p *RetryProvider) Name() string { return p.inner.Name() }

// Classify delegates with bounded retry.
func (p *RetryProvider) Classify(ctx context.Context, items []Item) ([]Result, error) {
	var results []Result
	err := retry.Do(ctx, p.cfg, Retryable, func(ctx context.Context) error {
		var opErr error
		results, opErr = p.inner.Classify(ctx, items)
		return opErr
	})
	return results, err
}

// BreakerProvider guards a provider with a consecutive-failure circuit
// breaker. Each engine owns its breaker instances; there is no process
// global.
type BreakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerProvider opens the circuit after failureThreshold consecutive
// failures and keeps it open for the cooldown window.
func NewBreakerProvider(inner Provider, failureThreshold uint32, cooldown time.Duration) *BreakerProvider {
	if failureThreshold == 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("Classification provider %s circuit %s -> %s", name, from, to)
		},
	}

	return &BreakerProvider{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the wrapped provider's name.
func (p *BreakerProvider) Name() string { return p.inner.Name() }

// Classify delegates through the breaker; an open circuit surfaces as
// apperrors.ErrCircuitOpen so the engine can skip straight to fallback.
func (p *BreakerProvider) Classify(ctx context.Context, items []Item) ([]Result, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.Classify(ctx, items)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.ErrCircuitOpen
		}
		return nil, err
	}
	return out.([]Result), nil
}
