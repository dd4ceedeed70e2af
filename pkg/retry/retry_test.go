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

func fastRetrier(opts ...Option) *Retrier {
	base := []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
	return New(append(base, opts...)...)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastRetrier(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_OnRetryReportsEachRetry(t *testing.T) {
	var attempts []int
	var delays []time.Duration
	err := fastRetrier(
		WithMaxAttempts(3),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			assert.ErrorIs(t, err, errFlaky)
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
		}),
	).Do(context.Background(), func(context.Context) error { return errFlaky })

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, []int{1, 2}, attempts)
	for _, d := range delays {
		assert.Positive(t, d)
	}
}

func TestDo_StopsAtBudget(t *testing.T) {
	calls := 0
	err := fastRetrier(WithMaxAttempts(2)).Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
}

func TestDo_PermanentIsNotRetried(t *testing.T) {
	calls := 0
	err := fastRetrier().Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIfFiltersErrors(t *testing.T) {
	other := errors.New("other")
	calls := 0
	err := fastRetrier(WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) })).
		Do(context.Background(), func(context.Context) error {
			calls++
			return other
		})

	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestDoValue_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fastRetrier(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errFlaky
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastRetrier().Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
