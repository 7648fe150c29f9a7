// Package core provides the memory manager that coordinates durable storage,
// best-effort caching and per-tenant policy for agent memory contexts.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentmem/agentmem-go/pkg/cache"
	"github.com/agentmem/agentmem-go/pkg/cache/lru"
	"github.com/agentmem/agentmem-go/pkg/cache/redis"
	"github.com/agentmem/agentmem-go/pkg/memerr"
	"github.com/agentmem/agentmem-go/pkg/storage"
	"github.com/agentmem/agentmem-go/pkg/storage/mysql"
	"github.com/agentmem/agentmem-go/pkg/storage/postgres"
	"github.com/agentmem/agentmem-go/pkg/storage/sqlite"
	"github.com/agentmem/agentmem-go/pkg/types"
)

// maxVersionRetries bounds optimistic-concurrency retries on sub-entry
// appends.
const maxVersionRetries = 3

// cachePageSize is how many cached candidates a query considers before
// falling through to storage.
const cachePageSize = 256

// defaultRetentionDays applies to cleanup when no optimization config is
// given.
const defaultRetentionDays = 30

// defaultRelevanceFloor is the cleanup score threshold when no optimization
// config is given.
const defaultRelevanceFloor = 0.3

// ttlByType maps context types to cache entry lifetimes. Volatile types
// expire quickly, stable types linger.
var ttlByType = map[types.ContextType]time.Duration{
	types.ContextTypeConversation:     30 * time.Minute,
	types.ContextTypeTaskExecution:    time.Hour,
	types.ContextTypeLearningInsights: 6 * time.Hour,
	types.ContextTypeBusinessAnalysis: 12 * time.Hour,
	types.ContextTypeUserProfile:      24 * time.Hour,
}

// Manager coordinates the storage and cache tiers and enforces tenant
// policy. Storage is authoritative; every cache interaction is best-effort
// and its failures never surface to callers.
//
// Example:
//
//	store, _ := sqlite.NewClient(&sqlite.Config{Path: "./agentmem.db"})
//	manager := core.NewManager(store, nil)
//	defer manager.Close()
//
//	record, err := manager.StoreContext(ctx, "tenant-a", "user-1",
//	    types.ContextTypeConversation,
//	    core.WithSessionID("session-1"))
type Manager struct {
	storage storage.Provider
	cache   cache.Provider
	tenants TenantConfigStore
	scorer  *RelevanceScorer
	node    *snowflake.Node
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a manager over the given storage and cache providers.
// A nil cache disables caching.
func NewManager(store storage.Provider, cacheProvider cache.Provider, opts ...ManagerOption) *Manager {
	if cacheProvider == nil {
		cacheProvider = cache.NewNoop()
	}

	node, _ := snowflake.NewNode(1)

	m := &Manager{
		storage: store,
		cache:   cacheProvider,
		tenants: NewInMemoryTenantConfigStore(),
		scorer:  NewRelevanceScorer(),
		node:    node,
		logger:  zap.NewNop(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// NewManagerFromConfig creates a manager with backends built from config.
func NewManagerFromConfig(cfg *Config, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, memerr.E("NewManagerFromConfig", fmt.Errorf("%w: %v", memerr.ErrInvalidRequest, err))
	}

	store, err := initStorage(cfg)
	if err != nil {
		return nil, memerr.E("NewManagerFromConfig", err)
	}

	cacheProvider, err := initCache(cfg)
	if err != nil {
		_ = store.Close()
		return nil, memerr.E("NewManagerFromConfig", err)
	}

	return NewManager(store, cacheProvider, opts...), nil
}

func initStorage(cfg *Config) (storage.Provider, error) {
	switch cfg.Storage.Provider {
	case "sqlite":
		return sqlite.NewClient(&cfg.Storage.SQLite)
	case "postgres":
		return postgres.NewClient(&cfg.Storage.Postgres)
	case "mysql":
		return mysql.NewClient(&cfg.Storage.MySQL)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

func initCache(cfg *Config) (cache.Provider, error) {
	switch cfg.Cache.Provider {
	case "", "none":
		return cache.NewNoop(), nil
	case "redis":
		return redis.NewClient(&cfg.Cache.Redis, nil)
	case "lru":
		return lru.NewClient(&lru.Config{Size: cfg.Cache.LRUSize, DefaultTTL: cfg.Cache.DefaultTTL})
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Cache.Provider)
	}
}

// StoreContext creates and persists a new memory context for a tenant's
// user. Sub-entries supplied through WithContent get IDs, timestamps and
// relevance scores filled in; the context expiry follows the tenant's
// retention policy for the type.
func (m *Manager) StoreContext(ctx context.Context, tenantID, userID string, contextType types.ContextType, opts ...StoreOption) (*types.MemoryContext, error) {
	const op = "StoreContext"

	if tenantID == "" {
		return nil, memerr.E(op, fmt.Errorf("%w: tenant ID is required", memerr.ErrInvalidRequest))
	}
	if userID == "" {
		return nil, memerr.E(op, fmt.Errorf("%w: user ID is required", memerr.ErrInvalidRequest))
	}
	if !contextType.Valid() {
		return nil, memerr.E(op, fmt.Errorf("%w: unknown context type %q", memerr.ErrInvalidRequest, contextType))
	}

	now := m.now()
	record := &types.MemoryContext{
		ID:          m.node.Generate().String(),
		TenantID:    tenantID,
		UserID:      userID,
		ContextType: contextType,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    types.ContextMetadata{Version: 1},
	}

	for _, opt := range opts {
		opt(record)
	}

	fillContentDefaults(&record.Content, contextType)
	m.prepareEntries(&record.Content)
	record.RelevanceScore = m.scorer.ScoreContext(record)
	record.ExpiresAt = m.expiryFor(tenantID, contextType, now)

	if err := m.storage.Store(ctx, record); err != nil {
		return nil, memerr.E(op, err)
	}

	m.primeCache(ctx, record)

	m.logger.Debug("context stored",
		zap.String("tenant_id", tenantID),
		zap.String("context_id", record.ID),
		zap.String("context_type", string(contextType)))

	return record, nil
}

// RetrieveContexts returns contexts matching the query, ordered by
// relevance. Point lookups (user and session set, limit 1) are served from
// cache when possible; everything else reads storage and back-fills the
// cache.
func (m *Manager) RetrieveContexts(ctx context.Context, query *types.ContextQuery) ([]*types.MemoryContext, error) {
	const op = "RetrieveContexts"

	if query == nil || query.TenantID == "" {
		return nil, memerr.E(op, fmt.Errorf("%w: tenant ID is required", memerr.ErrInvalidRequest))
	}

	if query.UserID != "" && query.SessionID != "" && query.Limit == 1 {
		candidates := m.cache.GetByUser(ctx, query.TenantID, query.UserID, cachePageSize)
		if results := applyQuery(candidates, query); len(results) > 0 {
			return results, nil
		}
	}

	records, err := m.storage.Retrieve(ctx, query)
	if err != nil {
		return nil, memerr.E(op, err)
	}

	for _, record := range records {
		m.primeCache(ctx, record)
	}

	return applyQuery(records, query), nil
}

// UpdateContext applies a partial update. When the update replaces content,
// the relevance score is recomputed under the stored context type before the
// write.
func (m *Manager) UpdateContext(ctx context.Context, contextID, tenantID string, upd *types.ContextUpdate) (*types.MemoryContext, error) {
	const op = "UpdateContext"

	if contextID == "" || tenantID == "" {
		return nil, memerr.E(op, fmt.Errorf("%w: context ID and tenant ID are required", memerr.ErrInvalidRequest))
	}
	if upd == nil {
		return nil, memerr.E(op, fmt.Errorf("%w: update is required", memerr.ErrInvalidRequest))
	}

	if upd.Content != nil && upd.RelevanceScore == nil {
		current, err := m.lookupContext(ctx, contextID, tenantID)
		if err != nil {
			return nil, memerr.E(op, err)
		}

		scored := current.Clone()
		scored.Content = *upd.Content
		m.prepareEntries(&scored.Content)
		upd.Content = &scored.Content

		score := m.scorer.ScoreContext(scored)
		upd.RelevanceScore = &score
	}

	record, err := m.storage.Update(ctx, contextID, tenantID, upd)
	if err != nil {
		return nil, memerr.E(op, err)
	}

	key := cache.ContextKey(tenantID, contextID)
	if m.cache.Exists(ctx, key) {
		m.cache.Set(ctx, key, record, m.ttlFor(record.ContextType))
	}

	return record, nil
}

// DeleteContext removes a context from storage and cache.
func (m *Manager) DeleteContext(ctx context.Context, contextID, tenantID string) error {
	const op = "DeleteContext"

	if contextID == "" || tenantID == "" {
		return memerr.E(op, fmt.Errorf("%w: context ID and tenant ID are required", memerr.ErrInvalidRequest))
	}

	if err := m.storage.Delete(ctx, contextID, tenantID); err != nil {
		return memerr.E(op, err)
	}

	m.cache.Delete(ctx, cache.ContextKey(tenantID, contextID))
	return nil
}

// AddConversationEntry appends a conversation turn to a context and
// recomputes its relevance score.
func (m *Manager) AddConversationEntry(ctx context.Context, contextID, tenantID string, entry types.ConversationEntry) (*types.MemoryContext, error) {
	const op = "AddConversationEntry"

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	entry.RelevanceScore = m.scorer.ScoreConversationEntry(&entry)

	record, err := m.appendEntry(ctx, contextID, tenantID, func(content *types.ContextContent) {
		content.ConversationHistory = append(content.ConversationHistory, entry)
	})
	if err != nil {
		return nil, memerr.E(op, err)
	}
	return record, nil
}

// AddTaskEntry appends a task record to a context and recomputes its
// relevance score.
func (m *Manager) AddTaskEntry(ctx context.Context, contextID, tenantID string, entry types.TaskEntry) (*types.MemoryContext, error) {
	const op = "AddTaskEntry"

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	entry.RelevanceScore = m.scorer.ScoreTaskEntry(&entry)

	record, err := m.appendEntry(ctx, contextID, tenantID, func(content *types.ContextContent) {
		content.TaskHistory = append(content.TaskHistory, entry)
	})
	if err != nil {
		return nil, memerr.E(op, err)
	}
	return record, nil
}

// AddInsightEntry appends an insight to a context and recomputes its
// relevance score.
func (m *Manager) AddInsightEntry(ctx context.Context, contextID, tenantID string, entry types.InsightEntry) (*types.MemoryContext, error) {
	const op = "AddInsightEntry"

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	entry.RelevanceScore = m.scorer.ScoreInsightEntry(&entry)

	record, err := m.appendEntry(ctx, contextID, tenantID, func(content *types.ContextContent) {
		content.Insights = append(content.Insights, entry)
	})
	if err != nil {
		return nil, memerr.E(op, err)
	}
	return record, nil
}

// appendEntry runs a read-mutate-write cycle under optimistic concurrency,
// retrying on version conflicts with a fresh read each time.
func (m *Manager) appendEntry(ctx context.Context, contextID, tenantID string, mutate func(*types.ContextContent)) (*types.MemoryContext, error) {
	key := cache.ContextKey(tenantID, contextID)

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		current, err := m.lookupContext(ctx, contextID, tenantID)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		mutate(&next.Content)
		score := m.scorer.ScoreContext(next)

		upd := &types.ContextUpdate{
			Content:         &next.Content,
			RelevanceScore:  &score,
			ExpectedVersion: current.Metadata.Version,
		}

		record, err := m.storage.Update(ctx, contextID, tenantID, upd)
		if errors.Is(err, memerr.ErrVersionConflict) {
			m.cache.Delete(ctx, key)
			continue
		}
		if err != nil {
			return nil, err
		}

		m.cache.Set(ctx, key, record, m.ttlFor(record.ContextType))
		return record, nil
	}

	return nil, memerr.ErrVersionConflict
}

// OptimizeMemory deletes a tenant's aged-out or low-relevance contexts and
// invalidates the tenant's cache entries. Without a config, retention
// defaults to 30 days and the relevance floor to 0.3.
func (m *Manager) OptimizeMemory(ctx context.Context, tenantID string, cfg *types.OptimizationConfig) (*types.OptimizationResult, error) {
	const op = "OptimizeMemory"

	if tenantID == "" {
		return nil, memerr.E(op, fmt.Errorf("%w: tenant ID is required", memerr.ErrInvalidRequest))
	}

	if cfg == nil {
		cfg = &types.OptimizationConfig{
			RetentionPeriod:    defaultRetentionDays * 24 * time.Hour,
			RelevanceThreshold: defaultRelevanceFloor,
		}
	}

	deleted, err := m.storage.Cleanup(ctx, tenantID, cfg)
	if err != nil {
		return nil, memerr.E(op, err)
	}

	m.cache.Clear(ctx, cache.TenantPattern(tenantID))

	m.logger.Info("memory optimized",
		zap.String("tenant_id", tenantID),
		zap.Int("deleted", deleted))

	// Freed memory is estimated at 0.1 MB per deleted context.
	return &types.OptimizationResult{
		DeletedContexts: deleted,
		MemoryFreedMB:   float64(deleted) * 0.1,
	}, nil
}

// GetMemoryStats returns aggregate usage for a tenant. A tenant with no
// contexts gets zero-valued stats, not an error.
func (m *Manager) GetMemoryStats(ctx context.Context, tenantID string) (*types.MemoryStats, error) {
	const op = "GetMemoryStats"

	if tenantID == "" {
		return nil, memerr.E(op, fmt.Errorf("%w: tenant ID is required", memerr.ErrInvalidRequest))
	}

	stats, err := m.storage.GetStats(ctx, tenantID)
	if err != nil {
		return nil, memerr.E(op, err)
	}
	return stats, nil
}

// SetTenantConfig registers or replaces a tenant's configuration.
func (m *Manager) SetTenantConfig(cfg *types.TenantConfig) error {
	if cfg == nil || cfg.TenantID == "" {
		return memerr.E("SetTenantConfig", fmt.Errorf("%w: tenant ID is required", memerr.ErrInvalidRequest))
	}
	m.tenants.Set(cfg)
	return nil
}

// GetTenantConfig returns a tenant's configuration, falling back to the
// defaults for unregistered tenants.
func (m *Manager) GetTenantConfig(tenantID string) *types.TenantConfig {
	if cfg, ok := m.tenants.Get(tenantID); ok {
		return cfg
	}
	return &types.TenantConfig{
		TenantID:      tenantID,
		MemoryQuotaMB: storage.DefaultQuotaMB,
	}
}

// CacheStats returns a snapshot of the cache backend.
func (m *Manager) CacheStats(ctx context.Context) *cache.Stats {
	return m.cache.Stats(ctx)
}

// Close releases the cache and storage backends.
func (m *Manager) Close() error {
	cacheErr := m.cache.Close()
	storageErr := m.storage.Close()
	if storageErr != nil {
		return storageErr
	}
	return cacheErr
}

// lookupContext finds a context by ID, preferring the cache and falling back
// to a tenant-scoped storage read.
func (m *Manager) lookupContext(ctx context.Context, contextID, tenantID string) (*types.MemoryContext, error) {
	if record := m.cache.Get(ctx, cache.ContextKey(tenantID, contextID)); record != nil {
		return record, nil
	}

	records, err := m.storage.Retrieve(ctx, &types.ContextQuery{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.ID == contextID {
			m.primeCache(ctx, record)
			return record, nil
		}
	}

	return nil, memerr.ErrNotFound
}

// fillContentDefaults initializes the sub-structures a context type is
// expected to carry, so serialized records hold empty collections instead
// of nulls.
func fillContentDefaults(content *types.ContextContent, contextType types.ContextType) {
	switch contextType {
	case types.ContextTypeConversation:
		if content.ConversationHistory == nil {
			content.ConversationHistory = []types.ConversationEntry{}
		}
	case types.ContextTypeTaskExecution:
		if content.TaskHistory == nil {
			content.TaskHistory = []types.TaskEntry{}
		}
	case types.ContextTypeLearningInsights:
		if content.Insights == nil {
			content.Insights = []types.InsightEntry{}
		}
	case types.ContextTypeUserProfile:
		if content.UserPreferences == nil {
			content.UserPreferences = map[string]any{}
		}
	case types.ContextTypeBusinessAnalysis:
		if content.BusinessContext == nil {
			content.BusinessContext = map[string]any{}
		}
	}
	if content.CustomData == nil {
		content.CustomData = map[string]any{}
	}
}

// prepareEntries fills IDs, timestamps and relevance scores on sub-entries
// supplied by callers.
func (m *Manager) prepareEntries(content *types.ContextContent) {
	now := m.now()

	for i := range content.ConversationHistory {
		e := &content.ConversationHistory[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		e.RelevanceScore = m.scorer.ScoreConversationEntry(e)
	}

	for i := range content.TaskHistory {
		e := &content.TaskHistory[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		e.RelevanceScore = m.scorer.ScoreTaskEntry(e)
	}

	for i := range content.Insights {
		e := &content.Insights[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		e.RelevanceScore = m.scorer.ScoreInsightEntry(e)
	}
}

func (m *Manager) primeCache(ctx context.Context, record *types.MemoryContext) {
	m.cache.Set(ctx, cache.ContextKey(record.TenantID, record.ID), record, m.ttlFor(record.ContextType))
}

func (m *Manager) ttlFor(contextType types.ContextType) time.Duration {
	if ttl, ok := ttlByType[contextType]; ok {
		return ttl
	}
	return cache.DefaultTTL
}

// expiryFor derives a context's expiry from the tenant's retention policy.
// Tenants without a policy for the type get no expiry.
func (m *Manager) expiryFor(tenantID string, contextType types.ContextType, now time.Time) *time.Time {
	cfg, ok := m.tenants.Get(tenantID)
	if !ok || cfg.RetentionPolicy == nil {
		return nil
	}

	days, ok := cfg.RetentionPolicy[contextType]
	if !ok || days <= 0 {
		return nil
	}

	expires := now.Add(time.Duration(days) * 24 * time.Hour)
	return &expires
}
