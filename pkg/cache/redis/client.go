// Package redis provides the Redis cache backend.
package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agentmem/agentmem-go/pkg/cache"
	"github.com/agentmem/agentmem-go/pkg/types"
)

// scanBatch is the COUNT hint for SCAN and the DEL chunk size.
const scanBatch = 100

// Client implements cache.Provider on Redis. Backend failures are logged
// and surface as cache misses, never as errors.
type Client struct {
	rdb        *redis.Client
	defaultTTL time.Duration
	logger     *zap.Logger
}

// Config contains configuration for creating a Redis provider.
type Config struct {
	Addr     string
	Password string
	DB       int

	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL time.Duration

	PoolSize int
}

// DefaultConfig returns a config pointing at a local Redis.
func DefaultConfig() *Config {
	return &Config{
		Addr:       "localhost:6379",
		DefaultTTL: cache.DefaultTTL,
		PoolSize:   10,
	}
}

// NewClient creates a Redis provider and verifies connectivity. After
// construction, operations never return errors.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = cache.DefaultTTL
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Client{
		rdb:        rdb,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
	}, nil
}

// Get returns the cached context for key, bumping access bookkeeping on the
// returned copy.
func (c *Client) Get(ctx context.Context, key string) *types.MemoryContext {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		return nil
	}

	var record types.MemoryContext
	if err := json.Unmarshal(data, &record); err != nil {
		c.logger.Warn("cache entry unparsable", zap.String("key", key), zap.Error(err))
		return nil
	}

	now := time.Now()
	record.Metadata.AccessCount++
	record.Metadata.LastAccessed = &now

	return &record
}

// Set writes the primary entry and its index entries in one pipeline. All
// keys share the TTL so indexes never outlive their record.
func (c *Client) Set(ctx context.Context, key string, record *types.MemoryContext, ttl time.Duration) bool {
	if record == nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(record)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}

	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.Set(ctx, cache.TenantIndexKey(record.TenantID, record.ID), key, ttl)
	pipe.Set(ctx, cache.TypeIndexKey(record.TenantID, string(record.ContextType), record.ID), key, ttl)
	if record.UserID != "" {
		pipe.Set(ctx, cache.UserIndexKey(record.TenantID, record.UserID, record.ID), key, ttl)
	}
	if record.SessionID != "" {
		pipe.Set(ctx, cache.SessionIndexKey(record.TenantID, record.SessionID, record.ID), key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug("cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes the primary entry along with its index entries.
func (c *Client) Delete(ctx context.Context, key string) bool {
	keys := []string{key}

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var record types.MemoryContext
		if json.Unmarshal(data, &record) == nil {
			keys = append(keys,
				cache.TenantIndexKey(record.TenantID, record.ID),
				cache.TypeIndexKey(record.TenantID, string(record.ContextType), record.ID),
			)
			if record.UserID != "" {
				keys = append(keys, cache.UserIndexKey(record.TenantID, record.UserID, record.ID))
			}
			if record.SessionID != "" {
				keys = append(keys, cache.SessionIndexKey(record.TenantID, record.SessionID, record.ID))
			}
		}
	}

	deleted, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Debug("cache delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return deleted > 0
}

// Clear removes all keys matching pattern and returns how many were removed.
func (c *Client) Clear(ctx context.Context, pattern string) int {
	removed := 0
	var batch []string

	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatch {
			removed += c.del(ctx, batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
	}
	if len(batch) > 0 {
		removed += c.del(ctx, batch)
	}

	return removed
}

func (c *Client) del(ctx context.Context, keys []string) int {
	deleted, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Debug("cache batch delete failed", zap.Error(err))
		return 0
	}
	return int(deleted)
}

// Exists reports whether key is resident.
func (c *Client) Exists(ctx context.Context, key string) bool {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Debug("cache exists failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

// GetByTenant returns up to limit cached contexts for a tenant, ordered by
// relevance.
func (c *Client) GetByTenant(ctx context.Context, tenantID string, limit int) []*types.MemoryContext {
	return c.getByIndex(ctx, cache.TenantIndexPattern(tenantID), limit)
}

// GetByUser returns up to limit cached contexts for a tenant's user,
// ordered by relevance.
func (c *Client) GetByUser(ctx context.Context, tenantID, userID string, limit int) []*types.MemoryContext {
	return c.getByIndex(ctx, cache.UserIndexPattern(tenantID, userID), limit)
}

// getByIndex resolves an index pattern to primary keys, then bulk-fetches
// the records. Entries that expired between the two steps are skipped.
func (c *Client) getByIndex(ctx context.Context, pattern string, limit int) []*types.MemoryContext {
	var indexKeys []string
	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		indexKeys = append(indexKeys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug("cache index scan failed", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}
	if len(indexKeys) == 0 {
		return nil
	}

	indexVals, err := c.rdb.MGet(ctx, indexKeys...).Result()
	if err != nil {
		c.logger.Debug("cache index fetch failed", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}

	var primaryKeys []string
	for _, v := range indexVals {
		if s, ok := v.(string); ok && s != "" {
			primaryKeys = append(primaryKeys, s)
		}
	}
	if len(primaryKeys) == 0 {
		return nil
	}

	values, err := c.rdb.MGet(ctx, primaryKeys...).Result()
	if err != nil {
		c.logger.Debug("cache bulk get failed", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}

	var records []*types.MemoryContext
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var record types.MemoryContext
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			c.logger.Warn("cache entry unparsable", zap.String("key", primaryKeys[i]), zap.Error(err))
			continue
		}
		records = append(records, &record)
	}

	types.SortByRelevance(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Stats returns key count and memory usage. Status is "unknown" if the
// backend did not answer.
func (c *Client) Stats(ctx context.Context) *cache.Stats {
	stats := &cache.Stats{Status: "unknown"}

	keys, err := c.rdb.DBSize(ctx).Result()
	if err != nil {
		return stats
	}
	stats.Status = "ok"
	stats.Keys = keys

	info, err := c.rdb.Info(ctx, "memory").Result()
	if err != nil {
		return stats
	}
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				stats.UsedMemoryBytes = n
			}
			break
		}
	}

	return stats
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
