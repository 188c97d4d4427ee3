package insight

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/evmotor/news"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test insight store
func createTestStore(t *testing.T) *SQLiteStore {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err, "should create insight store")
	t.Cleanup(func() { store.Close() })
	return store
}

// TestLatest_Empty verifies nil is returned when nothing was stored
func TestLatest_Empty(t *testing.T) {
	store := createTestStore(t)

	in, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, in)
}

// TestReplace_KeepsOnlyNewest verifies older insights are deleted
func TestReplace_KeepsOnlyNewest(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	first := Insight{ID: uuid.New(), Content: "첫 번째", GeneratedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), NewsAnalyzedCount: 10}
	second := Insight{ID: uuid.New(), Content: "두 번째", GeneratedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), NewsAnalyzedCount: 42}

	require.NoError(t, store.Replace(ctx, first))
	require.NoError(t, store.Replace(ctx, second))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM insights`).Scan(&count))
	assert.Equal(t, 1, count)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "두 번째", latest.Content)
	assert.Equal(t, 42, latest.NewsAnalyzedCount)
	assert.True(t, second.GeneratedAt.Equal(latest.GeneratedAt))
}

// TestReplace_FillsIDAndTime verifies zero values are populated
func TestReplace_FillsIDAndTime(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	require.NoError(t, store.Replace(ctx, Insight{Content: "x"}))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, latest.ID)
	assert.False(t, latest.GeneratedAt.IsZero())
}

// TestOpen_SharesDatabaseWithArticles verifies both stores can use one file
func TestOpen_SharesDatabaseWithArticles(t *testing.T) {
	ctx := context.Background()
	cfg := news.StorageConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "shared.db")}

	articles, err := news.Open(ctx, cfg)
	require.NoError(t, err)
	defer articles.Close()

	insights, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer insights.Close()

	require.NoError(t, insights.Replace(ctx, Insight{Content: "ok"}))
	n, err := articles.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestOpen_UnknownType verifies the storage type check
func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(context.Background(), news.StorageConfig{Type: "mongo"})
	assert.ErrorIs(t, err, news.ErrUnknownStorageType)
}
