package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/blob"
	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/internal/testutil"
	"github.com/hupe1980/agentmem/registry"
)

type testEnv struct {
	blob     *blob.InMemoryStore
	counting *testutil.CountingBlobStore
	registry *registry.InMemoryRegistry
	cache    *Cache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	blobStore := blob.NewInMemoryStore()
	counting := testutil.NewCountingBlobStore(blobStore)
	reg := registry.NewInMemoryRegistry()
	cache := NewCache(counting, reg, func(o *Options) {
		o.StorageDir = filepath.Join(t.TempDir(), "stores")
	})

	return &testEnv{blob: blobStore, counting: counting, registry: reg, cache: cache}
}

func (e *testEnv) writeIdentity(t *testing.T, identity Identity) string {
	t.Helper()

	data, err := json.Marshal(identity)
	require.NoError(t, err)

	ref, err := e.blob.Write(context.Background(), data, core.WriteOptions{})
	require.NoError(t, err)

	return ref
}

func TestLoad_BootstrapsFromIdentity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	identityRef := env.writeIdentity(t, Identity{
		Version: 1,
		Name:    "Iris",
		CuratedSummaries: []CuratedSummary{
			{Label: "Origins", Content: "Core: assembled from salvaged observatory parts"},
		},
	})

	state, err := env.cache.Load(ctx, "agent-1", identityRef)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "Iris", state.Identity.Name)

	n, err := state.Store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	memories, err := state.Store.CoreMemories(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 1)
}

func TestLoad_CachesByAgentID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	identityRef := env.writeIdentity(t, Identity{Version: 1, Name: "Iris"})

	first, err := env.cache.Load(ctx, "agent-1", identityRef)
	require.NoError(t, err)

	second, err := env.cache.Load(ctx, "agent-1", identityRef)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// a changed identity ref rebuilds the session
	otherRef := env.writeIdentity(t, Identity{Version: 2, Name: "Iris II"})
	third, err := env.cache.Load(ctx, "agent-1", otherRef)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "Iris II", third.Identity.Name)
}

func TestLoad_IdentityEnvelope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	wrapped, err := json.Marshal(map[string]any{
		"id":        "pub-1",
		"createdAt": "2025-06-01T00:00:00Z",
		"identity":  Identity{Version: 1, Name: "Iris"},
	})
	require.NoError(t, err)

	identityRef, err := env.blob.Write(ctx, wrapped, core.WriteOptions{})
	require.NoError(t, err)

	state, err := env.cache.Load(ctx, "agent-1", identityRef)
	require.NoError(t, err)
	assert.Equal(t, "Iris", state.Identity.Name)
}

func TestLoad_IdentityFromContainerPart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	data, err := json.Marshal(Identity{Version: 1, Name: "Iris"})
	require.NoError(t, err)

	containerRef, err := env.blob.WriteContainer(ctx, []core.Part{
		{Identifier: "identity.json", Contents: data},
	}, core.WriteOptions{})
	require.NoError(t, err)

	state, err := env.cache.Load(ctx, "agent-1", containerRef)
	require.NoError(t, err)
	assert.Equal(t, "Iris", state.Identity.Name)
}

func TestLoad_MissingIdentityFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.cache.Load(ctx, "agent-1", "blob-missing")
	require.ErrorIs(t, err, ErrIdentityRetrieval)
}

func TestLoad_IngestsMemorySources(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sourceRef, err := env.blob.Write(ctx, []byte("the telescope mirror needs recoating"), core.WriteOptions{})
	require.NoError(t, err)

	identityRef := env.writeIdentity(t, Identity{
		Version: 1,
		Name:    "Iris",
		MemorySources: []core.MemorySource{
			{Kind: core.SourceKindBlob, Ref: sourceRef, Description: "maintenance log"},
		},
	})

	state, err := env.cache.Load(ctx, "agent-1", identityRef)
	require.NoError(t, err)

	docs, err := state.Store.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "the telescope mirror needs recoating", docs[0].Content)
	assert.Equal(t, "maintenance log", docs[0].Metadata["label"])

	// a broken source degrades to a partial session instead of failing
	brokenRef := env.writeIdentity(t, Identity{
		Version: 1,
		Name:    "Iris",
		MemorySources: []core.MemorySource{
			{Kind: core.SourceKindBlob, Ref: "blob-missing"},
		},
	})

	state, err = env.cache.Load(ctx, "agent-2", brokenRef)
	require.NoError(t, err)
	require.NotNil(t, state)
}
