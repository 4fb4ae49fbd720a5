package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond}
	calls := 0
	sentinel := errors.New("bad input")
	err := Do(context.Background(), cfg, func() error {
		calls++
		return NonRetryable(sentinel)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, sentinel))
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 10, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second}
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, cfg, func() error {
		calls++
		return errors.New("keep going")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDoWithResult(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	calls := 0
	got, err := DoWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestErrorBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		expected   time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // 16s capped at 10s
		{10, 10 * time.Second},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, ErrorBackoff(tc.retryCount), "retryCount=%d", tc.retryCount)
	}
}

func TestIsNonRetryable(t *testing.T) {
	assert.False(t, IsNonRetryable(nil))
	assert.False(t, IsNonRetryable(errors.New("plain")))
	assert.True(t, IsNonRetryable(NonRetryable(errors.New("wrapped"))))

	// Classification survives further wrapping.
	wrapped := NonRetryable(errors.New("inner"))
	assert.True(t, IsNonRetryable(errors.Join(errors.New("outer"), wrapped)))

	assert.Nil(t, NonRetryable(nil))
}
