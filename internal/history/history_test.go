package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, "export.csv", 42)
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, runID, 10, 30, 2, nil))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	r := runs[0]
	assert.Equal(t, runID, r.ID)
	assert.Equal(t, "export.csv", r.Source)
	assert.Equal(t, 42, r.RowsTotal)
	assert.Equal(t, 10, r.Imported)
	assert.Equal(t, 30, r.Skipped)
	assert.Equal(t, 2, r.Failed)
	assert.True(t, r.FinishedAt.Valid)
	assert.False(t, r.Error.Valid)
}

func TestFinishRunWithError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, "export.csv", 5)
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, runID, 0, 0, 0, errors.New("board unreachable")))

	runs, err := store.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.True(t, runs[0].Error.Valid)
	assert.Equal(t, "board unreachable", runs[0].Error.String)
}

func TestRecordItem(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, "export.csv", 1)
	require.NoError(t, err)

	require.NoError(t, store.RecordItem(ctx, runID, Outcome{
		Fingerprint: "abc",
		Title:       "Dark mode",
		Action:      ActionCommitted,
		BoardID:     "board-f",
		PostID:      "post-1",
		Votes:       3,
	}))
	require.NoError(t, store.RecordItem(ctx, runID, Outcome{
		Fingerprint: "def",
		Title:       "Broken",
		Action:      ActionFailed,
		Err:         errors.New("post creation refused"),
	}))

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_outcomes WHERE run_id = ?`, runID).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := store.BeginRun(ctx, "export.csv", i)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := store.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[4], runs[0].ID, "newest first")
	assert.Equal(t, ids[2], runs[2].ID)
}

func TestRecentRunsEmpty(t *testing.T) {
	store := openStore(t)

	runs, err := store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
