package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/agentmem-go/pkg/cache"
	redisCache "github.com/agentmem/agentmem-go/pkg/cache/redis"
	"github.com/agentmem/agentmem-go/pkg/types"
)

func setupRedisTest(t *testing.T) (*redisCache.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)

	client, err := redisCache.NewClient(&redisCache.Config{
		Addr:       server.Addr(),
		DefaultTTL: time.Minute,
	}, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func cachedContext(id, tenantID string) *types.MemoryContext {
	now := time.Now()
	return &types.MemoryContext{
		ID:          id,
		TenantID:    tenantID,
		UserID:      "user-1",
		SessionID:   "session-1",
		ContextType: types.ContextTypeConversation,
		Metadata:    types.ContextMetadata{Version: 1},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestClient_SetWritesIndexes(t *testing.T) {
	client, server := setupRedisTest(t)
	ctx := context.Background()

	record := cachedContext("ctx-1", "tenant-a")
	key := cache.ContextKey("tenant-a", "ctx-1")

	require.True(t, client.Set(ctx, key, record, time.Minute))

	assert.True(t, server.Exists(key))
	assert.True(t, server.Exists(cache.TenantIndexKey("tenant-a", "ctx-1")))
	assert.True(t, server.Exists(cache.UserIndexKey("tenant-a", "user-1", "ctx-1")))
	assert.True(t, server.Exists(cache.SessionIndexKey("tenant-a", "session-1", "ctx-1")))
	assert.True(t, server.Exists(cache.TypeIndexKey("tenant-a", "conversation", "ctx-1")))

	// Indexes share the primary entry's TTL.
	assert.Equal(t, server.TTL(key), server.TTL(cache.TenantIndexKey("tenant-a", "ctx-1")))
}

func TestClient_Set_SkipsEmptyScopedIndexes(t *testing.T) {
	client, server := setupRedisTest(t)
	ctx := context.Background()

	record := cachedContext("ctx-1", "tenant-a")
	record.UserID = ""
	record.SessionID = ""

	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-1"), record, time.Minute))

	assert.True(t, server.Exists(cache.TenantIndexKey("tenant-a", "ctx-1")))
	assert.False(t, server.Exists(cache.UserIndexKey("tenant-a", "", "ctx-1")))
	assert.False(t, server.Exists(cache.SessionIndexKey("tenant-a", "", "ctx-1")))
}

func TestClient_Get(t *testing.T) {
	client, _ := setupRedisTest(t)
	ctx := context.Background()

	key := cache.ContextKey("tenant-a", "ctx-1")
	require.True(t, client.Set(ctx, key, cachedContext("ctx-1", "tenant-a"), time.Minute))

	record := client.Get(ctx, key)
	require.NotNil(t, record)
	assert.Equal(t, "ctx-1", record.ID)

	// Access bookkeeping is bumped on the returned copy.
	assert.Equal(t, int64(1), record.Metadata.AccessCount)
	assert.NotNil(t, record.Metadata.LastAccessed)
}

func TestClient_Get_Miss(t *testing.T) {
	client, _ := setupRedisTest(t)

	assert.Nil(t, client.Get(context.Background(), cache.ContextKey("tenant-a", "missing")))
}

func TestClient_Get_SkipsGarbage(t *testing.T) {
	client, server := setupRedisTest(t)

	key := cache.ContextKey("tenant-a", "ctx-1")
	require.NoError(t, server.Set(key, "not json"))

	assert.Nil(t, client.Get(context.Background(), key))
}

func TestClient_Delete_RemovesIndexes(t *testing.T) {
	client, server := setupRedisTest(t)
	ctx := context.Background()

	key := cache.ContextKey("tenant-a", "ctx-1")
	require.True(t, client.Set(ctx, key, cachedContext("ctx-1", "tenant-a"), time.Minute))

	assert.True(t, client.Delete(ctx, key))

	assert.False(t, server.Exists(key))
	assert.False(t, server.Exists(cache.TenantIndexKey("tenant-a", "ctx-1")))
	assert.False(t, server.Exists(cache.UserIndexKey("tenant-a", "user-1", "ctx-1")))

	assert.False(t, client.Delete(ctx, key))
}

func TestClient_Clear(t *testing.T) {
	client, _ := setupRedisTest(t)
	ctx := context.Background()

	for _, id := range []string{"ctx-1", "ctx-2"} {
		require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", id), cachedContext(id, "tenant-a"), time.Minute))
	}
	require.True(t, client.Set(ctx, cache.ContextKey("tenant-b", "ctx-1"), cachedContext("ctx-1", "tenant-b"), time.Minute))

	// Primary + tenant/user/session/type indexes per record.
	removed := client.Clear(ctx, cache.TenantPattern("tenant-a"))
	assert.Equal(t, 10, removed)

	assert.Empty(t, client.GetByTenant(ctx, "tenant-a", 0))
	assert.Len(t, client.GetByTenant(ctx, "tenant-b", 0), 1)
}

func TestClient_GetByTenant_OrderedByRelevance(t *testing.T) {
	client, _ := setupRedisTest(t)
	ctx := context.Background()

	low := cachedContext("ctx-low", "tenant-a")
	low.RelevanceScore = 0.2
	high := cachedContext("ctx-high", "tenant-a")
	high.RelevanceScore = 0.9

	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-low"), low, time.Minute))
	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-high"), high, time.Minute))

	records := client.GetByTenant(ctx, "tenant-a", 0)
	require.Len(t, records, 2)
	assert.Equal(t, "ctx-high", records[0].ID)
	assert.Equal(t, "ctx-low", records[1].ID)

	records = client.GetByTenant(ctx, "tenant-a", 1)
	require.Len(t, records, 1)
	assert.Equal(t, "ctx-high", records[0].ID)
}

func TestClient_GetByUser(t *testing.T) {
	client, _ := setupRedisTest(t)
	ctx := context.Background()

	mine := cachedContext("ctx-1", "tenant-a")
	theirs := cachedContext("ctx-2", "tenant-a")
	theirs.UserID = "user-2"

	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-1"), mine, time.Minute))
	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-2"), theirs, time.Minute))

	records := client.GetByUser(ctx, "tenant-a", "user-1", 0)
	require.Len(t, records, 1)
	assert.Equal(t, "ctx-1", records[0].ID)
}

func TestClient_FailuresDegradeToMisses(t *testing.T) {
	client, server := setupRedisTest(t)
	ctx := context.Background()

	key := cache.ContextKey("tenant-a", "ctx-1")
	require.True(t, client.Set(ctx, key, cachedContext("ctx-1", "tenant-a"), time.Minute))

	server.Close()

	assert.Nil(t, client.Get(ctx, key))
	assert.False(t, client.Set(ctx, key, cachedContext("ctx-1", "tenant-a"), time.Minute))
	assert.False(t, client.Delete(ctx, key))
	assert.False(t, client.Exists(ctx, key))
	assert.Zero(t, client.Clear(ctx, cache.TenantPattern("tenant-a")))
	assert.Empty(t, client.GetByTenant(ctx, "tenant-a", 0))
	assert.Equal(t, "unknown", client.Stats(ctx).Status)
}

func TestClient_Stats(t *testing.T) {
	client, _ := setupRedisTest(t)
	ctx := context.Background()

	require.True(t, client.Set(ctx, cache.ContextKey("tenant-a", "ctx-1"), cachedContext("ctx-1", "tenant-a"), time.Minute))

	stats := client.Stats(ctx)
	assert.Equal(t, "ok", stats.Status)
	assert.Equal(t, int64(5), stats.Keys)
}
