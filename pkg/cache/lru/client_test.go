package lru_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/agentmem-go/pkg/cache"
	lruCache "github.com/agentmem/agentmem-go/pkg/cache/lru"
	"github.com/agentmem/agentmem-go/pkg/types"
)

func setupLRUTest(t *testing.T, size int) *lruCache.Client {
	t.Helper()

	client, err := lruCache.NewClient(&lruCache.Config{Size: size, DefaultTTL: time.Minute})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func lruContext(id, tenantID string) *types.MemoryContext {
	now := time.Now()
	return &types.MemoryContext{
		ID:          id,
		TenantID:    tenantID,
		UserID:      "user-1",
		ContextType: types.ContextTypeConversation,
		Metadata:    types.ContextMetadata{Version: 1},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestClient_SetGet(t *testing.T) {
	client := setupLRUTest(t, 8)
	ctx := context.Background()

	key := cache.ContextKey("tenant-a", "ctx-1")
	require.True(t, client.Set(ctx, key, lruContext("ctx-1", "tenant-a"), time.Minute))
	assert.True(t, client.Exists(ctx, key))

	record := client.Get(ctx, key)
	require.NotNil(t, record)
	assert.Equal(t, "ctx-1", record.ID)
	assert.Equal(t, int64(1), record.Metadata.AccessCount)

	assert.Nil(t, client.Get(ctx, cache.ContextKey("tenant-a", "missing")))
}

func TestClient_CloneSemantics(t *testing.T) {
	client := setupLRUTest(t, 8)
	ctx := context.Background()

	key := cache.ContextKey("tenant-a", "ctx-1")
	original := lruContext("ctx-1", "tenant-a")
	require.True(t, client.Set(ctx, key, original, time.Minute))

	// Mutating the caller's record must not change the cached copy.
	original.UserID = "mutated"

	fetched := client.Get(ctx, key)
	require.NotNil(t, fetched)
	assert.Equal(t, "user-1", fetched.UserID)

	// Mutating a fetched record must not change the cached copy either.
	fetched.UserID = "also-mutated"
	again := client.Get(ctx, key)
	require.NotNil(t, again)
	assert.Equal(t, "user-1", again.UserID)
}

func TestClient_TTLExpiry(t *testing.T) {
	client, err := lruCache.NewClient(&lruCache.Config{Size: 8, DefaultTTL: time.Nanosecond})
	require.NoError(t, err)
	ctx := context.Background()

	key := cache.ContextKey("tenant-a", "ctx-1")
	require.True(t, client.Set(ctx, key, lruContext("ctx-1", "tenant-a"), time.Nanosecond))

	time.Sleep(time.Millisecond)

	assert.Nil(t, client.Get(ctx, key))
	assert.False(t, client.Exists(ctx, key))
}

func TestClient_Eviction(t *testing.T) {
	client := setupLRUTest(t, 2)
	ctx := context.Background()

	for _, id := range []string{"ctx-1", "ctx-2", "ctx-3"} {
		require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", id), lruContext(id, "tenant-a"), time.Minute))
	}

	// Oldest entry was evicted at capacity 2.
	assert.Nil(t, client.Get(ctx, cache.ContextKey("tenant-a", "ctx-1")))
	assert.NotNil(t, client.Get(ctx, cache.ContextKey("tenant-a", "ctx-3")))
	assert.Equal(t, int64(2), client.Stats(ctx).Keys)
}

func TestClient_Clear(t *testing.T) {
	client := setupLRUTest(t, 8)
	ctx := context.Background()

	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-1"), lruContext("ctx-1", "tenant-a"), time.Minute))
	require.True(t, client.Set(ctx, cache.ContextKey("tenant-b", "ctx-1"), lruContext("ctx-1", "tenant-b"), time.Minute))

	removed := client.Clear(ctx, cache.TenantPattern("tenant-a"))
	assert.Equal(t, 1, removed)

	assert.Nil(t, client.Get(ctx, cache.ContextKey("tenant-a", "ctx-1")))
	assert.NotNil(t, client.Get(ctx, cache.ContextKey("tenant-b", "ctx-1")))
}

func TestClient_GetByTenantAndUser(t *testing.T) {
	client := setupLRUTest(t, 8)
	ctx := context.Background()

	low := lruContext("ctx-low", "tenant-a")
	low.RelevanceScore = 0.2
	high := lruContext("ctx-high", "tenant-a")
	high.RelevanceScore = 0.9
	other := lruContext("ctx-other", "tenant-a")
	other.UserID = "user-2"
	other.RelevanceScore = 0.5

	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-low"), low, time.Minute))
	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-high"), high, time.Minute))
	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-other"), other, time.Minute))

	records := client.GetByTenant(ctx, "tenant-a", 0)
	require.Len(t, records, 3)
	assert.Equal(t, "ctx-high", records[0].ID)

	records = client.GetByTenant(ctx, "tenant-a", 2)
	assert.Len(t, records, 2)

	records = client.GetByUser(ctx, "tenant-a", "user-2", 0)
	require.Len(t, records, 1)
	assert.Equal(t, "ctx-other", records[0].ID)

	assert.Empty(t, client.GetByTenant(ctx, "tenant-b", 0))
}

func TestClient_Delete(t *testing.T) {
	client := setupLRUTest(t, 8)
	ctx := context.Background()

	key := cache.ContextKey("tenant-a", "ctx-1")
	require.True(t, client.Set(ctx, key, lruContext("ctx-1", "tenant-a"), time.Minute))

	assert.True(t, client.Delete(ctx, key))
	assert.False(t, client.Delete(ctx, key))
}
