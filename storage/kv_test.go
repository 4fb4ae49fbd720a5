package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enginerrors "github.com/jrkphani/heybo-engine/errors"
)

func TestMemory_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, found, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "session", `{"id":"abc"}`))
	v, found, err := m.Get(ctx, "session")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"id":"abc"}`, v)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Remove(ctx, "session"))
	_, found, _ = m.Get(ctx, "session")
	assert.False(t, found)

	// Removing an absent key is fine.
	require.NoError(t, m.Remove(ctx, "session"))
}

func TestMemory_BrokenStoreFailsOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetBroken(true)

	_, _, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, m.Set(ctx, "k", "v"), ErrUnavailable)
	assert.ErrorIs(t, m.Remove(ctx, "k"), ErrUnavailable)

	m.SetBroken(false)
	assert.NoError(t, m.Set(ctx, "k", "v"))
}

type sessionPayload struct {
	ID     string `json:"id"`
	UserID string `json:"userId,omitempty"`
}

func TestRecord_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, PutRecord(ctx, m, "session", 1, sessionPayload{ID: "s-1", UserID: "u-9"}))

	var out sessionPayload
	found, err := GetRecord(ctx, m, "session", 1, &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "s-1", out.ID)
	assert.Equal(t, "u-9", out.UserID)
}

func TestGetRecord_AbsentAndReadFailureDegradeToAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var out sessionPayload
	found, err := GetRecord(ctx, m, "missing", 1, &out)
	require.NoError(t, err)
	assert.False(t, found)

	m.SetBroken(true)
	found, err = GetRecord(ctx, m, "missing", 1, &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetRecord_CorruptionDetection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	t.Run("garbage bytes", func(t *testing.T) {
		require.NoError(t, m.Set(ctx, "session", "not json at all"))
		var out sessionPayload
		found, err := GetRecord(ctx, m, "session", 1, &out)
		assert.False(t, found)
		assert.ErrorIs(t, err, enginerrors.ErrSessionCorrupted)
	})

	t.Run("schema version mismatch", func(t *testing.T) {
		require.NoError(t, PutRecord(ctx, m, "session", 2, sessionPayload{ID: "s-1"}))
		var out sessionPayload
		found, err := GetRecord(ctx, m, "session", 1, &out)
		assert.False(t, found)
		assert.ErrorIs(t, err, enginerrors.ErrSessionCorrupted)
	})

	t.Run("payload type mismatch", func(t *testing.T) {
		require.NoError(t, m.Set(ctx, "session", `{"schemaVersion":1,"savedAt":"2026-01-01T00:00:00Z","payload":"not-an-object"}`))
		var out sessionPayload
		found, err := GetRecord(ctx, m, "session", 1, &out)
		assert.False(t, found)
		assert.ErrorIs(t, err, enginerrors.ErrSessionCorrupted)
	})
}
