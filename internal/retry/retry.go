// Package retry wraps provider calls in the single bounded-retry policy:
// a fixed number of re-attempts at a constant interval, bounded by the
// caller's context. Making the policy explicit keeps timeout and retry
// behavior a testable contract instead of implicit HTTP-client behavior.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is the bounded-retry configuration applied to embedding and LLM
// calls. Attempts counts retries beyond the first try; Attempts of 1 means
// at most two tries total.
type Policy struct {
	Attempts uint64
	Interval time.Duration
	Timeout  time.Duration
}

// Do runs op under the policy, returning the first successful result or
// the last error once the attempts are exhausted. Each full run shares a
// single deadline derived from the policy timeout.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), p.Attempts),
		ctx,
	)

	err := backoff.Retry(func() error {
		r, err := op(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, b)

	return result, err
}
