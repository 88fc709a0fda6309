// Package retry runs an operation again after transient failures, waiting
// longer between each attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy describes how often and how patiently to retry.
//
// The zero Policy makes one attempt. Wait doubles after every failed attempt,
// starting at Base and never exceeding Cap.
type Policy struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	// Retryable reports whether err is worth another attempt. Nil means
	// every error except a Permanent one is.
	Retryable func(error) bool
}

const (
	defaultBase = 100 * time.Millisecond
	defaultCap  = 5 * time.Second
)

// Wait returns the pause after the given failed attempt, counted from 1.
func (p Policy) Wait(attempt int) time.Duration {
	base, limit := p.Base, p.Cap
	if base <= 0 {
		base = defaultBase
	}
	if limit <= 0 {
		limit = defaultCap
	}
	d := base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func (p Policy) retryable(err error) bool {
	var perm permanent
	if errors.As(err, &perm) {
		return false
	}
	return p.Retryable == nil || p.Retryable(err)
}

type permanent struct{ err error }

func (e permanent) Error() string { return e.err.Error() }
func (e permanent) Unwrap() error { return e.err }

// Permanent marks err so that no further attempt is made.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

// Run calls fn until it succeeds or the policy gives up. A context that ends
// while waiting stops the loop; its error is joined with the last failure.
func Run(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Run for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		switch {
		case err == nil:
			return v, nil
		case !p.retryable(err):
			return zero, unwrapPermanent(err)
		case attempt == attempts:
			return zero, fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		t := time.NewTimer(p.Wait(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, errors.Join(ctx.Err(), err)
		case <-t.C:
		}
	}
}

func unwrapPermanent(err error) error {
	if perm, ok := err.(permanent); ok {
		return perm.err
	}
	return err
}
