package core

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/agentmem/agentmem-go/pkg/types"
)

// StoreOption customizes a context at store time.
type StoreOption func(*types.MemoryContext)

// WithSessionID attaches a session ID to the context.
func WithSessionID(sessionID string) StoreOption {
	return func(record *types.MemoryContext) {
		record.SessionID = sessionID
	}
}

// WithAgentID attaches an agent ID to the context.
func WithAgentID(agentID string) StoreOption {
	return func(record *types.MemoryContext) {
		record.AgentID = agentID
	}
}

// WithContent sets the initial content of the context.
func WithContent(content types.ContextContent) StoreOption {
	return func(record *types.MemoryContext) {
		record.Content = content
	}
}

// WithMetadata sets the initial metadata of the context. The version field
// is managed by the manager and ignored here.
func WithMetadata(metadata types.ContextMetadata) StoreOption {
	return func(record *types.MemoryContext) {
		version := record.Metadata.Version
		record.Metadata = metadata
		record.Metadata.Version = version
	}
}

// WithTags sets the metadata tags of the context.
func WithTags(tags ...string) StoreOption {
	return func(record *types.MemoryContext) {
		record.Metadata.Tags = tags
	}
}

// WithSource sets the metadata source of the context.
func WithSource(source string) StoreOption {
	return func(record *types.MemoryContext) {
		record.Metadata.Source = source
	}
}

// ManagerOption customizes a Manager at construction time.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTenantConfigStore injects a tenant config store. Defaults to an
// in-memory store.
func WithTenantConfigStore(store TenantConfigStore) ManagerOption {
	return func(m *Manager) {
		if store != nil {
			m.tenants = store
		}
	}
}

// WithClock overrides the manager's time source. Intended for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
			m.scorer.now = now
		}
	}
}

// WithSnowflakeNode sets the node ID used for context ID generation, for
// deployments running multiple manager instances. Defaults to node 1.
func WithSnowflakeNode(nodeID int64) ManagerOption {
	return func(m *Manager) {
		if node, err := snowflake.NewNode(nodeID); err == nil {
			m.node = node
		}
	}
}
