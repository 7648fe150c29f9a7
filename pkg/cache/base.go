// Package cache defines the best-effort caching layer.
//
// Cache providers are an optimization, never a source of truth: operations
// do not return errors, they degrade to miss/no-op behavior on any failure.
// Durable state lives in the storage tier.
package cache

import (
	"context"
	"time"

	"github.com/agentmem/agentmem-go/pkg/types"
)

// DefaultTTL is the fallback entry lifetime when a provider is constructed
// without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// Provider is the interface all cache backends implement.
//
// Implementations must be safe for concurrent use. None of the data-path
// methods return errors: a backend failure behaves as a cache miss on
// reads and a no-op on writes.
type Provider interface {
	// Get returns the cached context for key, or nil on miss.
	Get(ctx context.Context, key string) *types.MemoryContext

	// Set stores record under key with the given TTL. A non-positive TTL
	// falls back to the provider default. Returns false if the write was
	// dropped.
	Set(ctx context.Context, key string, record *types.MemoryContext, ttl time.Duration) bool

	// Delete removes key and any associated index entries. Returns true
	// if something was removed.
	Delete(ctx context.Context, key string) bool

	// Clear removes all keys matching pattern ('*' wildcards) and returns
	// the number of keys removed.
	Clear(ctx context.Context, pattern string) int

	// Exists reports whether key is resident.
	Exists(ctx context.Context, key string) bool

	// GetByTenant returns up to limit cached contexts for a tenant,
	// ordered by relevance.
	GetByTenant(ctx context.Context, tenantID string, limit int) []*types.MemoryContext

	// GetByUser returns up to limit cached contexts for a tenant's user,
	// ordered by relevance.
	GetByUser(ctx context.Context, tenantID, userID string, limit int) []*types.MemoryContext

	// Stats returns a best-effort snapshot of the backend.
	Stats(ctx context.Context) *Stats

	// Close releases backend resources.
	Close() error
}

// Stats is a point-in-time view of a cache backend.
type Stats struct {
	// Status is "ok" when the backend answered, "unknown" otherwise.
	Status string `json:"status"`

	Keys            int64 `json:"keys"`
	UsedMemoryBytes int64 `json:"used_memory_bytes"`
}
