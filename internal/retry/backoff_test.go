package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	backoff := NewBackoff(fastConfig())

	calls := 0
	err := backoff.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	backoff := NewBackoff(fastConfig())

	calls := 0
	failure := errors.New("persistent")
	err := backoff.Retry(context.Background(), func() error {
		calls++
		return failure
	})

	assert.Equal(t, failure, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithPredicateStopsOnFatalError(t *testing.T) {
	backoff := NewBackoff(fastConfig())

	calls := 0
	fatal := errors.New("constraint failed")
	err := backoff.RetryWithPredicate(context.Background(), func() error {
		calls++
		return fatal
	}, func(error) bool { return false })

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContext(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := backoff.Retry(ctx, func() error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateDelayGrowsAndCaps(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
	})

	assert.Equal(t, 100*time.Millisecond, backoff.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, backoff.GetNextDelay(2))
	assert.Equal(t, 400*time.Millisecond, backoff.GetNextDelay(3))
	assert.Equal(t, time.Second, backoff.GetNextDelay(10))
}

func TestCalculateDelayJitterStaysInBounds(t *testing.T) {
	backoff := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	})

	for i := 0; i < 100; i++ {
		delay := backoff.GetNextDelay(2)
		assert.GreaterOrEqual(t, delay, 150*time.Millisecond)
		assert.LessOrEqual(t, delay, 250*time.Millisecond)
	}
}
