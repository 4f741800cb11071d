package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thinkscotty/newsroom/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "newsroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessions(t *testing.T) {
	db := openTestDB(t)

	sess := &models.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, db.CreateSession(sess))
	require.NotZero(t, sess.ID)

	got, err := db.GetSession("tok")
	require.NoError(t, err)
	require.False(t, got.Visited)

	first, err := db.MarkSessionVisited("tok")
	require.NoError(t, err)
	require.True(t, first)
	again, err := db.MarkSessionVisited("tok")
	require.NoError(t, err)
	require.False(t, again)

	got, err = db.GetSession("tok")
	require.NoError(t, err)
	require.True(t, got.Visited)

	require.NoError(t, db.DeleteSession("tok"))
	_, err = db.GetSession("tok")
	require.Error(t, err)
}

func TestExpiredSessions(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateSession(&models.Session{Token: "old", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, db.CreateSession(&models.Session{Token: "new", ExpiresAt: time.Now().Add(time.Hour)}))

	_, err := db.GetSession("old")
	require.Error(t, err)

	n, err := db.DeleteExpiredSessions()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = db.GetSession("new")
	require.NoError(t, err)
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	key, err := db.GetSetting(SettingAPIKey)
	require.NoError(t, err)
	require.Empty(t, key)

	require.NoError(t, db.SetSetting(SettingAPIKey, "secret"))
	key, err = db.GetSetting(SettingAPIKey)
	require.NoError(t, err)
	require.Equal(t, "secret", key)

	_, err = db.GetSetting("missing")
	require.Error(t, err)
}

func TestRunLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ok, err := db.HasSuccessfulRun("2026-10-17")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.RecordRun(ctx, models.RunReport{ID: "a", Date: "2026-10-17", State: models.StateFailed, Error: "boom"}))
	ok, err = db.HasSuccessfulRun("2026-10-17")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.RecordRun(ctx, models.RunReport{
		ID: "b", Date: "2026-10-17", State: models.StateDone, Items: 4, Duration: 1500 * time.Millisecond,
		Stages: []models.StageReport{{Stage: models.StateFetching, Status: models.StageOK}},
	}))
	ok, err = db.HasSuccessfulRun("2026-10-17")
	require.NoError(t, err)
	require.True(t, ok)

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "b", runs[0].RunID)
	require.EqualValues(t, 1500, runs[0].DurationMS)
	require.Contains(t, runs[0].Stages, `"stage":"fetching"`)
	require.Equal(t, "boom", runs[1].Error)

	require.NoError(t, db.CleanOldRuns(30))
	runs, err = db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}
