package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func quick(attempts int) Policy {
	return Policy{Attempts: attempts, Base: time.Millisecond, Cap: 2 * time.Millisecond}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		failures  int
		fail      error
		wantCalls int
		wantErr   error
	}{
		{name: "first try", policy: quick(3), wantCalls: 1},
		{name: "recovers", policy: quick(3), failures: 2, fail: errFlaky, wantCalls: 3},
		{name: "gives up", policy: quick(2), failures: 5, fail: errFlaky, wantCalls: 2, wantErr: errFlaky},
		{name: "zero policy tries once", failures: 1, fail: errFlaky, wantCalls: 1, wantErr: errFlaky},
		{name: "permanent", policy: quick(5), failures: 5, fail: Permanent(errFlaky), wantCalls: 1, wantErr: errFlaky},
		{
			name:      "not retryable",
			policy:    Policy{Attempts: 5, Retryable: func(err error) bool { return !errors.Is(err, errFlaky) }},
			failures:  5,
			fail:      errFlaky,
			wantCalls: 1,
			wantErr:   errFlaky,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Run(context.Background(), tt.policy, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.fail
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRun_PermanentIsUnwrapped(t *testing.T) {
	err := Run(context.Background(), quick(3), func(context.Context) error { return Permanent(errFlaky) })
	assert.Same(t, errFlaky, err)
	assert.NoError(t, Permanent(nil))
}

func TestRun_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Run(ctx, quick(3), func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = Run(ctx, Policy{Attempts: 10, Base: time.Hour}, func(context.Context) error { return errFlaky })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, errFlaky)
}

func TestValue(t *testing.T) {
	calls := 0
	v, err := Value(context.Background(), quick(2), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestPolicy_Wait(t *testing.T) {
	p := Policy{Base: 10 * time.Millisecond, Cap: 50 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, p.Wait(1))
	assert.Equal(t, 20*time.Millisecond, p.Wait(2))
	assert.Equal(t, 40*time.Millisecond, p.Wait(3))
	assert.Equal(t, 50*time.Millisecond, p.Wait(4))
	assert.Equal(t, 50*time.Millisecond, p.Wait(60))

	assert.Equal(t, defaultBase, Policy{}.Wait(1))
}
