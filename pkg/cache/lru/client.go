// Package lru provides an in-process cache backend backed by a
// fixed-capacity LRU.
//
// Unlike the Redis backend it keeps no reverse indexes: pattern operations
// and tenant/user scans walk the resident keys, which is cheap at in-process
// sizes. Entries carry a per-entry deadline and expire lazily on read.
package lru

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentmem/agentmem-go/pkg/cache"
	"github.com/agentmem/agentmem-go/pkg/types"
)

// DefaultSize is the entry capacity when none is configured.
const DefaultSize = 1024

type entry struct {
	record    *types.MemoryContext
	expiresAt time.Time
}

// Client implements cache.Provider with an in-process LRU.
type Client struct {
	entries    *lru.Cache[string, entry]
	defaultTTL time.Duration
	now        func() time.Time
}

// Config contains configuration for creating an LRU provider.
type Config struct {
	// Size is the maximum number of resident entries.
	Size int

	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL time.Duration
}

// NewClient creates an LRU provider.
func NewClient(cfg *Config) (*Client, error) {
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}

	return &Client{
		entries:    entries,
		defaultTTL: ttl,
		now:        time.Now,
	}, nil
}

// Get returns a copy of the cached context for key, or nil on miss. Expired
// entries are evicted on the way out.
func (c *Client) Get(ctx context.Context, key string) *types.MemoryContext {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil
	}
	if c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		return nil
	}

	record := e.record.Clone()
	now := c.now()
	record.Metadata.AccessCount++
	record.Metadata.LastAccessed = &now
	return record
}

// Set stores a copy of record under key.
func (c *Client) Set(ctx context.Context, key string, record *types.MemoryContext, ttl time.Duration) bool {
	if record == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.entries.Add(key, entry{
		record:    record.Clone(),
		expiresAt: c.now().Add(ttl),
	})
	return true
}

// Delete removes key. Returns true if it was resident.
func (c *Client) Delete(ctx context.Context, key string) bool {
	return c.entries.Remove(key)
}

// Clear removes all keys matching pattern and returns how many were removed.
func (c *Client) Clear(ctx context.Context, pattern string) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		if matchPattern(pattern, key) && c.entries.Remove(key) {
			removed++
		}
	}
	return removed
}

// Exists reports whether key is resident and unexpired.
func (c *Client) Exists(ctx context.Context, key string) bool {
	e, ok := c.entries.Peek(key)
	if !ok {
		return false
	}
	if c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		return false
	}
	return true
}

// GetByTenant returns up to limit cached contexts for a tenant, ordered by
// relevance.
func (c *Client) GetByTenant(ctx context.Context, tenantID string, limit int) []*types.MemoryContext {
	return c.collect(func(r *types.MemoryContext) bool {
		return r.TenantID == tenantID
	}, limit)
}

// GetByUser returns up to limit cached contexts for a tenant's user,
// ordered by relevance.
func (c *Client) GetByUser(ctx context.Context, tenantID, userID string, limit int) []*types.MemoryContext {
	return c.collect(func(r *types.MemoryContext) bool {
		return r.TenantID == tenantID && r.UserID == userID
	}, limit)
}

func (c *Client) collect(match func(*types.MemoryContext) bool, limit int) []*types.MemoryContext {
	now := c.now()
	var records []*types.MemoryContext
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if now.After(e.expiresAt) {
			c.entries.Remove(key)
			continue
		}
		if match(e.record) {
			records = append(records, e.record.Clone())
		}
	}

	types.SortByRelevance(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Stats reports the resident entry count. Memory usage is not tracked for
// in-process entries.
func (c *Client) Stats(ctx context.Context) *cache.Stats {
	return &cache.Stats{
		Status: "ok",
		Keys:   int64(c.entries.Len()),
	}
}

// Close drops all entries.
func (c *Client) Close() error {
	c.entries.Purge()
	return nil
}

// matchPattern implements the '*' subset of glob matching used by cache key
// patterns.
func matchPattern(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := len(parts) - 1
	for _, part := range parts[1:last] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}

	return strings.HasSuffix(s, parts[last])
}
