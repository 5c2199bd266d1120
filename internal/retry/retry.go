// Package retry wraps storage operations with bounded exponential-backoff
// retry. Only errors classified as transient are retried; everything else
// (constraint violations, missing rows, verification failures) surfaces
// immediately. The final attempt's error is returned unchanged.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds the retry loop: at most MaxAttempts calls, sleeping
// min(BaseInterval * 2^attempt, MaxInterval) between them.
type Policy struct {
	MaxAttempts  uint
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultPolicy is 3 attempts with 100ms base backoff capped at 1s, bounding
// a fully failing operation at roughly 1.1s of waiting.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseInterval: 100 * time.Millisecond, MaxInterval: time.Second}
}

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

// Executor retries operations according to a Policy. Operations must be safe
// to re-issue: creates use pre-generated ids, and conditional updates simply
// find no matching row when a lost response already applied.
type Executor struct {
	policy    Policy
	transient Classifier
}

// NewExecutor returns an Executor with the given policy. classify may be nil,
// in which case no error is considered transient and operations run once.
func NewExecutor(policy Policy, classify Classifier) *Executor {
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy()
	}
	return &Executor{policy: policy, transient: classify}
}

// Do runs op, retrying transient failures per the policy. Context
// cancellation aborts the wait between attempts.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	_, err := Run(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Run is the value-returning form of Executor.Do.
func Run[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.policy.BaseInterval
	bo.Multiplier = 2
	bo.MaxInterval = e.policy.MaxInterval
	bo.RandomizationFactor = 0

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && (e.transient == nil || !e.transient(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(e.policy.MaxAttempts))
}
