package repositories

import (
	"aaisaheb/database"
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOfflineRequestRepo(t *testing.T) *OfflineRequestRepository {
	t.Helper()
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewOfflineRequestRepository(db)
}

func TestOfflineRequestCreateFillsDefaults(t *testing.T) {
	ctx := context.Background()
	repo := newOfflineRequestRepo(t)

	req := &models.OfflineRequest{
		URL:         "http://localhost:5000/activate_sos",
		Method:      "POST",
		ContentType: "application/json",
		Payload:     []byte(`{"timestamp":1}`),
		Synced:      true,
	}
	require.NoError(t, repo.Create(ctx, req))

	assert.NotEmpty(t, req.ID)
	assert.False(t, req.Timestamp.IsZero())
	assert.False(t, req.Synced)

	unsynced, err := repo.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, req.ID, unsynced[0].ID)
	assert.Equal(t, `{"timestamp":1}`, string(unsynced[0].Payload))
}

func TestOfflineRequestOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newOfflineRequestRepo(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	entries := []struct {
		id     string
		offset time.Duration
	}{
		{"b", 2 * time.Minute},
		{"a", 1 * time.Minute},
		{"c", 3 * time.Minute},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, &models.OfflineRequest{
			ID:        e.id,
			URL:       "/activate_sos",
			Method:    "POST",
			Timestamp: base.Add(e.offset),
		}))
	}

	unsynced, err := repo.ListUnsynced(ctx, 0)
	require.NoError(t, err)
	require.Len(t, unsynced, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{unsynced[0].ID, unsynced[1].ID, unsynced[2].ID})

	all, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
}

func TestOfflineRequestMarkSyncedKeepsRecord(t *testing.T) {
	ctx := context.Background()
	repo := newOfflineRequestRepo(t)

	req := &models.OfflineRequest{URL: "/activate_sos", Method: "POST"}
	require.NoError(t, repo.Create(ctx, req))

	require.NoError(t, repo.RecordFailure(ctx, req.ID, "connection refused"))
	syncedAt := time.Now()
	require.NoError(t, repo.MarkSynced(ctx, req.ID, syncedAt))

	unsynced, err := repo.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	all, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Synced)
	assert.Equal(t, 2, all[0].Attempts)
	assert.Empty(t, all[0].LastError)
	require.NotNil(t, all[0].SyncedAt)
}

func TestOfflineRequestUnknownID(t *testing.T) {
	ctx := context.Background()
	repo := newOfflineRequestRepo(t)

	assert.True(t, utils.IsNotFound(repo.MarkSynced(ctx, "missing", time.Now())))
	assert.True(t, utils.IsNotFound(repo.RecordFailure(ctx, "missing", "boom")))
}
