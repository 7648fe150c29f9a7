package types

import (
	"sort"
	"time"
)

// ContextQuery selects contexts for retrieval. TenantID is required; every
// other field narrows the result set. Results are ordered by relevance
// score descending, ties broken by creation time descending.
type ContextQuery struct {
	// TenantID scopes the query. Required.
	TenantID string `json:"tenant_id"`

	// UserID narrows results to one user.
	UserID string `json:"user_id,omitempty"`

	// SessionID narrows results to one session. Together with UserID it
	// selects the storage layer's secondary index path.
	SessionID string `json:"session_id,omitempty"`

	// ContextTypes restricts results to the listed types. Empty means all.
	ContextTypes []ContextType `json:"context_types,omitempty"`

	// TimeRange bounds CreatedAt, inclusive on both ends.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	// RelevanceThreshold keeps only contexts with score >= threshold.
	RelevanceThreshold float64 `json:"relevance_threshold,omitempty"`

	// Tags keeps contexts carrying at least one of the listed tags.
	Tags []string `json:"tags,omitempty"`

	// Limit caps the number of results, applied once after all filters.
	Limit int `json:"limit,omitempty"`
}

// TimeRange is an inclusive [Start, End] interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ContextUpdate is a partial update applied to a stored context. Nil fields
// are left untouched; identity fields and the context type can never be
// changed. The durable tier always stamps UpdatedAt and increments Version.
type ContextUpdate struct {
	// Content replaces the whole content blob when non-nil.
	Content *ContextContent `json:"content,omitempty"`

	// Metadata replaces source/tags bookkeeping when non-nil. The stored
	// Version is never taken from here.
	Metadata *ContextMetadata `json:"metadata,omitempty"`

	// RelevanceScore replaces the context score when non-nil.
	RelevanceScore *float64 `json:"relevance_score,omitempty"`

	// ExpiresAt replaces the expiry when non-nil.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// ExpectedVersion, when > 0, makes the update conditional: the write
	// only succeeds if the stored version still matches, otherwise the
	// durable tier reports a version conflict.
	ExpectedVersion int64 `json:"-"`
}

// MemoryStats aggregates a tenant's memory usage. An empty tenant yields
// the zero value with non-nil empty maps, never nil.
type MemoryStats struct {
	TenantID              string                  `json:"tenant_id"`
	TotalContexts         int                     `json:"total_contexts"`
	TotalMemoryMB         float64                 `json:"total_memory_mb"`
	MemoryByTypeMB        map[ContextType]float64 `json:"memory_by_type_mb"`
	MemoryByUserMB        map[string]float64      `json:"memory_by_user_mb"`
	AverageRelevanceScore float64                 `json:"average_relevance_score"`
	OldestContext         *time.Time              `json:"oldest_context,omitempty"`
	NewestContext         *time.Time              `json:"newest_context,omitempty"`
}

// NewMemoryStats returns an all-zero stats object for a tenant.
func NewMemoryStats(tenantID string) *MemoryStats {
	return &MemoryStats{
		TenantID:       tenantID,
		MemoryByTypeMB: make(map[ContextType]float64),
		MemoryByUserMB: make(map[string]float64),
	}
}

// OptimizationConfig controls a cleanup pass over a tenant's contexts.
type OptimizationConfig struct {
	// RetentionPeriod: contexts created earlier than now-RetentionPeriod
	// are removed.
	RetentionPeriod time.Duration `json:"retention_period"`

	// RelevanceThreshold: contexts scoring below it are removed.
	RelevanceThreshold float64 `json:"relevance_threshold"`
}

// OptimizationResult reports the outcome of a memory optimization pass.
type OptimizationResult struct {
	DeletedContexts int `json:"deleted_contexts"`

	// CompressedContexts is always 0; compression is not implemented.
	CompressedContexts int `json:"compressed_contexts"`

	// MemoryFreedMB is a constant-multiplier estimate over the deleted
	// count, not a measured byte reclaim.
	MemoryFreedMB float64 `json:"memory_freed_mb"`
}

// SortByRelevance orders contexts by relevance score descending, breaking
// ties by creation time descending (newest first). The sort is stable.
func SortByRelevance(contexts []*MemoryContext) {
	sort.SliceStable(contexts, func(i, j int) bool {
		if contexts[i].RelevanceScore != contexts[j].RelevanceScore {
			return contexts[i].RelevanceScore > contexts[j].RelevanceScore
		}
		return contexts[i].CreatedAt.After(contexts[j].CreatedAt)
	})
}
