// Package storage defines the durable-tier contract of the memory layer.
//
// It declares the Provider interface that all storage backends (SQLite,
// PostgreSQL, MySQL) must satisfy, along with the size model used for
// quota enforcement and usage stats.
package storage

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/agentmem/agentmem-go/pkg/types"
)

const (
	// DefaultQuotaMB is the per-tenant storage budget enforced at write
	// time when the backend config does not override it.
	DefaultQuotaMB = 100.0

	// MaxFetch is the safety cap on rows fetched by Retrieve. The durable
	// tier over-fetches up to this cap and the caller applies its own
	// limit exactly once after filtering.
	MaxFetch = 1000

	// CleanupBatchSize is the number of records deleted per batch during
	// a cleanup pass.
	CleanupBatchSize = 25
)

// Provider is the authoritative durable tier. All methods are
// tenant-partitioned and every error is caller-visible; best-effort
// semantics live in the cache tier, never here.
type Provider interface {
	// Store persists a new context. It fails with memerr.ErrAlreadyExists
	// when (TenantID, ID) is already present — the insert is conditional
	// and the first writer wins — and with a *memerr.QuotaError when the
	// tenant's usage plus the new record would exceed the quota. The
	// quota check is check-then-act, not transactional: concurrent
	// writers can transiently exceed the budget.
	Store(ctx context.Context, record *types.MemoryContext) error

	// Retrieve fetches candidate contexts for a query, either through the
	// (user, session) secondary index or by tenant partition scan, capped
	// at MaxFetch and ordered by relevance score descending, creation
	// time descending. The caller applies the remaining filters and its
	// limit.
	Retrieve(ctx context.Context, query *types.ContextQuery) ([]*types.MemoryContext, error)

	// Update applies a partial update. Identity fields and the context
	// type are never touched; UpdatedAt is always stamped and Version
	// always incremented. It fails with memerr.ErrNotFound when the
	// record is absent and with memerr.ErrVersionConflict when
	// upd.ExpectedVersion is set and the stored version moved.
	Update(ctx context.Context, contextID, tenantID string, upd *types.ContextUpdate) (*types.MemoryContext, error)

	// Delete removes a context, failing with memerr.ErrNotFound when it
	// is absent for the tenant.
	Delete(ctx context.Context, contextID, tenantID string) error

	// Cleanup scans the tenant partition and deletes every record whose
	// age exceeds cfg.RetentionPeriod or whose relevance score is below
	// cfg.RelevanceThreshold, in batches of CleanupBatchSize. It returns
	// the number of records deleted.
	Cleanup(ctx context.Context, tenantID string, cfg *types.OptimizationConfig) (int, error)

	// GetStats aggregates the tenant's usage: total size, size by context
	// type and by user, average relevance score, oldest/newest creation
	// time. An empty tenant yields an all-zero stats object, never nil.
	GetStats(ctx context.Context, tenantID string) (*types.MemoryStats, error)

	// Close releases backend resources.
	Close() error
}

// EstimateSizeBytes returns the serialized-size estimate of a record under
// the layer's UTF-16-style size model: two bytes per rune of the JSON
// serialization. Backends persist the estimate so quota checks and stats
// are sums over a column rather than rescans.
func EstimateSizeBytes(record *types.MemoryContext) int64 {
	data, err := json.Marshal(record)
	if err != nil {
		return 0
	}
	return 2 * int64(utf8.RuneCount(data))
}

// BytesToMB converts a byte count to megabytes.
func BytesToMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
