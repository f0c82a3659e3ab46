package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), isTransient, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), isTransient, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnFatalError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), isTransient, func(ctx context.Context) error {
		calls++
		return errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls, "non-retryable failures must not be retried")
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), isTransient, func(ctx context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, Policy{MaxRetries: 5, InitialDelay: time.Hour, BackoffMultiplier: 2.0}, isTransient, func(ctx context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
