package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkphani/heybo-engine/storage"
)

func TestDeviceID_StableAcrossCalls(t *testing.T) {
	repo := NewRepository(storage.NewMemory())
	ctx := context.Background()

	first, err := repo.DeviceID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := repo.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeviceID_SurvivesBrokenStore(t *testing.T) {
	store := storage.NewMemory()
	repo := NewRepository(store)
	ctx := context.Background()

	store.SetBroken(true)
	id, err := repo.DeviceID(ctx)
	assert.Error(t, err)
	assert.NotEmpty(t, id, "an unpersisted id still identifies this run")
}

func TestCartBackup_RoundTripAndRemove(t *testing.T) {
	repo := NewRepository(storage.NewMemory())
	ctx := context.Background()

	backup := CartBackup{
		SessionID: "sess-1",
		SavedAt:   time.Unix(1_700_000_000, 0).UTC(),
		Items:     nil,
	}
	require.NoError(t, repo.SaveCartBackup(ctx, backup))

	got, err := repo.LoadCartBackup(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.SessionID)

	require.NoError(t, repo.RemoveCartBackup(ctx, "sess-1"))
	got, err = repo.LoadCartBackup(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadSession_AbsentIsNil(t *testing.T) {
	repo := NewRepository(storage.NewMemory())
	rec, err := repo.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}
