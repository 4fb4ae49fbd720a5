package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ProcessesSubmittedWork(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	pool := NewPool(2, 10, func(_ context.Context, n int) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, n)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))

	assert.Len(t, seen, 5)
	stats := pool.Stats()
	assert.EqualValues(t, 5, stats.Submitted)
	assert.EqualValues(t, 5, stats.Processed)
	assert.EqualValues(t, 0, stats.Failed)
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)
}

func TestPool_FullQueueDrops(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// First item occupies the worker, second fills the queue; the
	// exact moment the worker picks up varies, so keep submitting
	// until the queue rejects.
	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := pool.Submit(i); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull)
	assert.Positive(t, pool.Stats().Dropped)

	close(block)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_CountsFailures(t *testing.T) {
	pool := NewPool(1, 10, func(_ context.Context, n int) error {
		if n%2 == 1 {
			return fmt.Errorf("odd work %d", n)
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.EqualValues(t, 2, stats.Processed)
	assert.EqualValues(t, 2, stats.Failed)
}

func TestPool_DoubleStartAndSubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 10, func(context.Context, int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}
