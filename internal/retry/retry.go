// Package retry implements the per-provider send retry policy with
// exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dayeon/mailcast/internal/clock"
	"github.com/dayeon/mailcast/internal/metrics"
	"github.com/dayeon/mailcast/internal/provider"
)

const (
	// DefaultMaxAttempts bounds the total number of send attempts per
	// provider, including the first.
	DefaultMaxAttempts = 3

	baseBackoff = 100 * time.Millisecond
)

// Backoff returns the delay before the given attempt number (1-based).
// Attempt 1 has no delay; attempt n waits base * 2^(n-2).
func Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return baseBackoff * (1 << (attempt - 2))
}

// Send attempts delivery through one provider, retrying retryable failures
// with exponential backoff. Non-retryable failures return immediately.
// Context cancellation interrupts any pending backoff and returns the
// context's error.
func Send(ctx context.Context, clk clock.Clock, p provider.Provider, msg *provider.Message, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if delay := Backoff(attempt); delay > 0 {
			if err := clk.Sleep(ctx, delay); err != nil {
				return err
			}
		}

		start := clk.Now()
		lastErr = p.Send(ctx, msg)
		metrics.SendDuration.WithLabelValues(p.Name()).Observe(clk.Now().Sub(start).Seconds())

		if lastErr == nil {
			metrics.SendsTotal.WithLabelValues(p.Name(), "success").Inc()
			return nil
		}

		metrics.SendsTotal.WithLabelValues(p.Name(), "failure").Inc()
		if !provider.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts {
			metrics.RetriesTotal.WithLabelValues(p.Name()).Inc()
			log.Debug().
				Err(lastErr).
				Str("provider", p.Name()).
				Str("recipient", msg.To).
				Int("attempt", attempt).
				Msg("send failed, retrying")
		}
	}
	return lastErr
}
