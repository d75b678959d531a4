package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/embedding/mock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "store.json"), mock.New())
}

func TestAddDocument_AndSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.AddDocument(ctx, "The dome leaks when it rains.", map[string]any{"source": "manual"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	results, err := store.Search(ctx, "The dome leaks when it rains.", 5, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestAddDocument_EmptyContent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.AddDocument(ctx, "   \n\t ", nil)
	require.NoError(t, err)
	assert.Empty(t, id)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddDocument_DuplicatePrevention(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.AddDocument(ctx, "Iris was assembled from observatory parts.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// identical content scores 1.0 >= default threshold, insert is skipped
	second, err := store.AddDocument(ctx, "Iris was assembled from observatory parts.", nil)
	require.NoError(t, err)
	assert.Empty(t, second)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddDocument_DissimilarContentInserted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// below-threshold similarity must never count as a duplicate, even
	// though the dedup probe's search returns best-effort fallback results
	first, err := store.AddDocument(ctx, "The sky is blue.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := store.AddDocument(ctx, "Cats are mammals.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, second)

	third, err := store.AddDocument(ctx, "The dome leaks when it rains.", nil)
	require.NoError(t, err)
	require.NotEmpty(t, third)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAddDocument_DuplicatesAllowed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	opts := func(o *AddOptions) { o.PreventDuplicates = false }

	first, err := store.AddDocument(ctx, "same content", nil, opts)
	require.NoError(t, err)
	second, err := store.AddDocument(ctx, "same content", nil, opts)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSearch_LimitAndDefault(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 15; i++ {
		_, err := store.AddDocument(ctx, "memory entry "+string(rune('a'+i)), nil)
		require.NoError(t, err)
	}

	// nothing clears a 0.99 threshold, fallback returns best-effort results
	results, err := store.Search(ctx, "unrelated query", 0, 0.99)
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchLimit)

	results, err = store.Search(ctx, "unrelated query", 3, 0.99)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestSearch_ThresholdFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddDocument(ctx, "exact match target", nil)
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, "completely different entry", nil)
	require.NoError(t, err)

	results, err := store.Search(ctx, "exact match target", 10, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "exact match target", results[0].Document.Content)
}

func TestStore_PersistenceRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	engine := mock.New()

	store := NewStore(path, engine)
	id, err := store.AddDocument(ctx, "persists across restarts", map[string]any{"source": "test"})
	require.NoError(t, err)

	reloaded := NewStore(path, engine)
	require.NoError(t, reloaded.Initialize(ctx))

	docs, err := reloaded.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Equal(t, "persists across restarts", docs[0].Content)
	assert.Equal(t, "test", docs[0].Metadata["source"])

	results, err := reloaded.Search(ctx, "persists across restarts", 1, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestMetadataDefaults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.AddDocument(ctx, "a memory", map[string]any{"source": "manual"})
	require.NoError(t, err)

	docs, err := store.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Equal(t, "memory", docs[0].Metadata["type"])
	assert.NotEmpty(t, docs[0].Metadata["timestamp"])
	assert.False(t, docs[0].Timestamp().IsZero())
}

func TestCoreMemories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddDocument(ctx, "Core: built in a lab", map[string]any{"timestamp": "2024-01-01T00:00:00Z"})
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, "Core: prefers star metaphors", map[string]any{"timestamp": "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, "ordinary memory", nil)
	require.NoError(t, err)

	results, err := store.CoreMemories(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Core: prefers star metaphors", results[0].Document.Content)
	assert.Equal(t, "Core: built in a lab", results[1].Document.Content)
}

func TestWipe(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddDocument(ctx, "to be wiped", nil)
	require.NoError(t, err)
	require.NoError(t, store.Wipe(ctx))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
