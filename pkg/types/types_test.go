package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/agentmem-go/pkg/types"
)

func TestContextType_Valid(t *testing.T) {
	for _, ct := range types.AllContextTypes {
		assert.True(t, ct.Valid(), "type %s", ct)
	}
	assert.False(t, types.ContextType("bogus").Valid())
	assert.False(t, types.ContextType("").Valid())
}

func TestMemoryContext_Expired(t *testing.T) {
	now := time.Now()

	record := &types.MemoryContext{}
	assert.False(t, record.Expired(now), "no expiry never expires")

	past := now.Add(-time.Minute)
	record.ExpiresAt = &past
	assert.True(t, record.Expired(now))

	future := now.Add(time.Minute)
	record.ExpiresAt = &future
	assert.False(t, record.Expired(now))
}

func TestMemoryContext_Clone(t *testing.T) {
	now := time.Now()
	record := &types.MemoryContext{
		ID:       "ctx-1",
		TenantID: "tenant-a",
		Content: types.ContextContent{
			ConversationHistory: []types.ConversationEntry{
				{ID: "e1", Timestamp: now, Role: "user", Content: "hello"},
			},
			CustomData: map[string]any{"k": "v"},
		},
		Metadata: types.ContextMetadata{Version: 3, Tags: []string{"a"}},
	}

	clone := record.Clone()
	clone.Content.ConversationHistory[0].Content = "changed"
	clone.Content.CustomData["k"] = "changed"
	clone.Metadata.Tags[0] = "changed"

	assert.Equal(t, "hello", record.Content.ConversationHistory[0].Content)
	assert.Equal(t, "v", record.Content.CustomData["k"])
	assert.Equal(t, "a", record.Metadata.Tags[0])
	assert.Equal(t, int64(3), clone.Metadata.Version)
}

func TestSortByRelevance(t *testing.T) {
	now := time.Now()
	records := []*types.MemoryContext{
		{ID: "old-high", RelevanceScore: 0.9, CreatedAt: now.Add(-time.Hour)},
		{ID: "low", RelevanceScore: 0.2, CreatedAt: now},
		{ID: "new-high", RelevanceScore: 0.9, CreatedAt: now},
	}

	types.SortByRelevance(records)

	require.Len(t, records, 3)
	assert.Equal(t, "new-high", records[0].ID, "ties break on recency")
	assert.Equal(t, "old-high", records[1].ID)
	assert.Equal(t, "low", records[2].ID)
}

func TestNewMemoryStats(t *testing.T) {
	stats := types.NewMemoryStats("tenant-a")

	assert.Equal(t, "tenant-a", stats.TenantID)
	assert.NotNil(t, stats.MemoryByTypeMB)
	assert.NotNil(t, stats.MemoryByUserMB)
	assert.Zero(t, stats.TotalContexts)
}
