package core

import (
	"sync"

	"github.com/agentmem/agentmem-go/pkg/types"
)

// TenantConfigStore provides per-tenant configuration to the manager.
// Implementations must be safe for concurrent use.
type TenantConfigStore interface {
	// Get returns the config for a tenant, and whether one is registered.
	Get(tenantID string) (*types.TenantConfig, bool)

	// Set registers or replaces a tenant's config.
	Set(cfg *types.TenantConfig)
}

// InMemoryTenantConfigStore is a map-backed TenantConfigStore. It is the
// default store; deployments with a config service can inject their own.
type InMemoryTenantConfigStore struct {
	mu      sync.RWMutex
	configs map[string]*types.TenantConfig
}

// NewInMemoryTenantConfigStore creates an empty store.
func NewInMemoryTenantConfigStore() *InMemoryTenantConfigStore {
	return &InMemoryTenantConfigStore{
		configs: make(map[string]*types.TenantConfig),
	}
}

func (s *InMemoryTenantConfigStore) Get(tenantID string) (*types.TenantConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[tenantID]
	return cfg, ok
}

func (s *InMemoryTenantConfigStore) Set(cfg *types.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.TenantID] = cfg
}
