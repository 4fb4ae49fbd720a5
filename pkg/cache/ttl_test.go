package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTL_SetGetExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewTTLWithClock[string](time.Minute, func() time.Time { return now })

	c.Set("user-1", "recommendations")
	got, ok := c.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, "recommendations", got)

	// One second before expiry the entry is still live.
	now = now.Add(59 * time.Second)
	_, ok = c.Get("user-1")
	assert.True(t, ok)

	// Past the deadline it's gone.
	now = now.Add(2 * time.Second)
	_, ok = c.Get("user-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTL_SetResetsDeadline(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewTTLWithClock[int](time.Minute, func() time.Time { return now })

	c.Set("k", 1)
	now = now.Add(50 * time.Second)
	c.Set("k", 2)
	now = now.Add(50 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestTTL_DeleteAndClear(t *testing.T) {
	c := NewTTL[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_Stats(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewTTLWithClock[int](time.Second, func() time.Time { return now })

	c.Set("k", 1)
	c.Get("k")       // hit
	c.Get("missing") // miss
	now = now.Add(2 * time.Second)
	c.Get("k") // miss + eviction

	stats := c.StatsSnapshot()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(1), stats.Evictions)
}
