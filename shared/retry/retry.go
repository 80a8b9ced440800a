package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

// Policy bounds a retry loop. Attempts counts the first call.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewPolicy builds a Policy from config values; zero values fall back to defaults.
func NewPolicy(maxAttempts, initialIntervalMs, maxIntervalMs int) Policy {
	policy := Policy{
		MaxAttempts:     defaultMaxAttempts,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
	}

	if maxAttempts > 0 {
		policy.MaxAttempts = uint(maxAttempts)
	}

	if initialIntervalMs > 0 {
		policy.InitialInterval = time.Duration(initialIntervalMs) * time.Millisecond
	}

	if maxIntervalMs > 0 {
		policy.MaxInterval = time.Duration(maxIntervalMs) * time.Millisecond
	}

	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}

	return policy
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	return b
}

// Do calls op until it succeeds, returns a Permanent error, or the policy is
// exhausted. The last result and error are returned either way. op receives
// the 1-based attempt number.
func Do[T any](ctx context.Context, policy Policy, name string, op func(attempt int) (T, error)) (T, error) {
	attempt := 0

	return backoff.Retry(ctx, func() (T, error) {
		attempt++

		return op(attempt)
	},
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().
				Err(err).
				Str("operation", name).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("retrying after failure")
		}),
	)
}

// Permanent stops Do after the current attempt.
func Permanent(err error) error {
	return backoff.Permanent(err) //nolint:wrapcheck
}
