// Package retry implements bounded retry with exponential backoff for
// fallible network-bound operations.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        1 * time.Second,
		Max:         32 * time.Second,
	}
}

// Do runs op up to p.MaxAttempts times, sleeping Base*2^(n-1) plus jitter
// between attempts. It returns the first successful result, or the zero
// value together with the last error once attempts are exhausted. The
// backoff wait honors ctx cancellation.
func Do[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		wait := backoff(p, attempt)
		log.Warn().Err(err).
			Str("op", name).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", wait).
			Msg("Attempt failed, backing off")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	return zero, lastErr
}

func backoff(p Policy, attempt int) time.Duration {
	d := time.Duration(math.Min(float64(p.Base)*math.Pow(2, float64(attempt-1)), float64(p.Max)))
	jitter := time.Duration(rand.Float64() * float64(d) * 0.5)
	return d + jitter
}
