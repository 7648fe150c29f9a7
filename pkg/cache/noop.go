package cache

import (
	"context"
	"time"

	"github.com/agentmem/agentmem-go/pkg/types"
)

// Noop is a cache provider that caches nothing. It is used when caching is
// disabled so callers never need a nil check.
type Noop struct{}

// NewNoop creates a no-op cache provider.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Get(ctx context.Context, key string) *types.MemoryContext { return nil }

func (n *Noop) Set(ctx context.Context, key string, record *types.MemoryContext, ttl time.Duration) bool {
	return false
}

func (n *Noop) Delete(ctx context.Context, key string) bool { return false }

func (n *Noop) Clear(ctx context.Context, pattern string) int { return 0 }

func (n *Noop) Exists(ctx context.Context, key string) bool { return false }

func (n *Noop) GetByTenant(ctx context.Context, tenantID string, limit int) []*types.MemoryContext {
	return nil
}

func (n *Noop) GetByUser(ctx context.Context, tenantID, userID string, limit int) []*types.MemoryContext {
	return nil
}

func (n *Noop) Stats(ctx context.Context) *Stats {
	return &Stats{Status: "ok"}
}

func (n *Noop) Close() error { return nil }
