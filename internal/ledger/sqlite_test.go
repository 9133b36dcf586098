package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firwatch/notamwatch/internal/model"
)

func newTestSQLite(t *testing.T, cap int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.db"), cap)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteAppendAndList(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()

	stats := model.RunStats{
		ID:         "run-1",
		Timestamp:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Active:     12,
		New:        3,
		Expired:    1,
		Buffered:   2,
		Notified:   3,
		DurationMS: 4200,
	}
	require.NoError(t, s.Append(ctx, stats))

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stats, got[0])
}

func TestSQLiteAppend_GeneratesID(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, model.RunStats{Active: 1}))

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestSQLitePruneToCap(t *testing.T) {
	s := newTestSQLite(t, 3)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, model.RunStats{
			ID:        fmt.Sprintf("run-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3, "oldest rows pruned")
	assert.Equal(t, "run-4", got[0].ID, "newest first")
	assert.Equal(t, "run-2", got[2].ID)
}

func TestSQLiteList_Limit(t *testing.T) {
	s := newTestSQLite(t, 10)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Append(ctx, model.RunStats{
			ID:        fmt.Sprintf("run-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-3", got[0].ID)
}

func TestSQLiteList_Empty(t *testing.T) {
	s := newTestSQLite(t, 10)

	got, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
