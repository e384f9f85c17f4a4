package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig controls the shared retry policy for transport-class failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// total attempt count is MaxRetries+1.
	MaxRetries int

	// BaseDelay is the backoff delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the standard retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// RetryWithBackoff runs op up to cfg.MaxRetries+1 times, retrying only
// transport failures classified retryable (timeouts, network errors, transient
// 5xx). Rate-limit and quota failures are raised immediately without
// consuming a retry attempt; other non-retryable failures fail fast. Backoff
// is min(base*2^attempt, max) plus up to 10% uniform jitter, applied only
// between attempts.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	var last *Error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		last = Classify(err)

		// Rate-limit and quota failures surface immediately, already
		// classified, regardless of remaining attempts.
		if last.Kind == KindRateLimit || last.Kind == KindQuota {
			return zero, last
		}
		if !last.Retryable {
			return zero, last
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		delay := backoffDelay(cfg, attempt)
		slog.Debug("llm: retrying after transient failure",
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"kind", last.Kind.String(),
			"delay_ms", delay.Milliseconds(),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, Classify(ctx.Err())
		}
	}

	attempts := cfg.MaxRetries + 1
	if last.Kind == KindTimeout {
		return zero, &Error{
			Kind:      KindTimeout,
			Retryable: true,
			Message:   fmt.Sprintf("request timed out after %d attempts", attempts),
			Cause:     last,
		}
	}
	return zero, &Error{
		Kind:       last.Kind,
		StatusCode: last.StatusCode,
		Retryable:  true,
		Message:    fmt.Sprintf("request failed after %d attempts: %v", attempts, last),
		Cause:      last,
	}
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << uint(attempt)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}
