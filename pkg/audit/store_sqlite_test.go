package audit

// Behavioral tests against a real in-memory SQLite database, exercising the
// actual SQL: append visibility, recency ordering, and filter conjunction.

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for testing
)

func setupSQLiteStore(t *testing.T) *DBStore {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// One connection so every query sees the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewDBStore(db, "sqlite3")
	require.NoError(t, err)
	return store
}

func TestDBStore_AppendThenFind(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	record := &Record{
		ProcessInstanceID: "pi-1",
		ProcessID:         "checker-maker",
		EventType:         EventProcessStarted,
		UserID:            "alice",
		Action:            "START",
	}
	require.NoError(t, store.Append(ctx, record))
	assert.NotZero(t, record.ID)

	found, err := store.FindByProcessInstanceID(ctx, "pi-1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, record.ID, found[0].ID)
	assert.Equal(t, EventProcessStarted, found[0].EventType)

	// Never returned for a different instance id.
	other, err := store.FindByProcessInstanceID(ctx, "pi-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDBStore_FindByUserAndTask(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, &Record{
		ProcessInstanceID: "pi-1", EventType: EventTaskCompleted,
		UserID: "alice", TaskID: "task-1", Action: "APPROVE",
	}))
	require.NoError(t, store.Append(ctx, &Record{
		ProcessInstanceID: "pi-1", EventType: EventQuery,
		UserID: "bob",
	}))

	byUser, err := store.FindByUserID(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "alice", byUser[0].UserID)

	byTask, err := store.FindByTaskID(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.Equal(t, "task-1", byTask[0].TaskID)
}

func TestDBStore_FindRecent(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, &Record{
			ProcessInstanceID: fmt.Sprintf("pi-%d", i),
			EventType:         EventQuery,
			UserID:            "alice",
			Timestamp:         base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := store.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "pi-4", recent[0].ProcessInstanceID)
	assert.Equal(t, "pi-3", recent[1].ProcessInstanceID)
	assert.True(t, recent[0].Timestamp.After(recent[1].Timestamp))
}

func TestDBStore_SearchConjunction(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seed := []*Record{
		{ProcessInstanceID: "pi-1", EventType: EventQuery, UserID: "alice", Timestamp: base},
		{ProcessInstanceID: "pi-1", EventType: EventProcessStarted, UserID: "alice", Timestamp: base.Add(time.Minute)},
		{ProcessInstanceID: "pi-2", EventType: EventQuery, UserID: "alice", Timestamp: base.Add(2 * time.Minute)},
		{ProcessInstanceID: "pi-2", EventType: EventQuery, UserID: "bob", Timestamp: base.Add(3 * time.Minute)},
	}
	for _, record := range seed {
		require.NoError(t, store.Append(ctx, record))
	}

	t.Run("no filters returns full set", func(t *testing.T) {
		results, err := store.Search(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, results, len(seed))
	})

	t.Run("multiple filters intersect", func(t *testing.T) {
		results, err := store.Search(ctx, Filter{
			ProcessInstanceID: "pi-1",
			UserID:            "alice",
			EventType:         "QUERY",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "pi-1", results[0].ProcessInstanceID)
		assert.Equal(t, EventQuery, results[0].EventType)
	})

	t.Run("date range bounds", func(t *testing.T) {
		start := base.Add(time.Minute)
		end := base.Add(2 * time.Minute)
		results, err := store.Search(ctx, Filter{Start: &start, End: &end})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("non-matching conjunction is empty", func(t *testing.T) {
		results, err := store.Search(ctx, Filter{ProcessInstanceID: "pi-1", UserID: "bob"})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestDBStore_ListAllAndSummary(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, &Record{
		ProcessInstanceID: "pi-1", EventType: EventQuery, UserID: "alice", Action: "QUERY",
	}))
	require.NoError(t, store.Append(ctx, &Record{
		ProcessInstanceID: "pi-1", EventType: EventQuery, UserID: "alice", Action: "QUERY",
	}))
	require.NoError(t, store.Append(ctx, &Record{
		ProcessInstanceID: "pi-1", EventType: EventProcessAborted, UserID: "bob", Action: "REJECT",
	}))

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalEvents)
	assert.Equal(t, int64(2), summary.EventTypeCounts["QUERY"])
	assert.Equal(t, int64(1), summary.EventTypeCounts["PROCESS_ABORTED"])
	assert.Equal(t, int64(2), summary.UserActivityCounts["alice"])
	assert.Equal(t, int64(1), summary.ActionCounts["REJECT"])
}
