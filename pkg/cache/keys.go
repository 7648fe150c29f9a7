package cache

import "fmt"

// Key layout. Primary entries hold the serialized context; index entries
// hold the primary key so tenant/user/session/type scans resolve to full
// records with two lookups. All keys for a tenant share the
// "mem:{tenant}:" prefix, so TenantPattern clears indexes along with
// primaries.

// ContextKey returns the primary key for a context.
func ContextKey(tenantID, contextID string) string {
	return fmt.Sprintf("mem:%s:ctx:%s", tenantID, contextID)
}

// TenantPattern matches every key belonging to a tenant.
func TenantPattern(tenantID string) string {
	return fmt.Sprintf("mem:%s:*", tenantID)
}

// TenantIndexKey returns the all-contexts index entry for a context.
func TenantIndexKey(tenantID, contextID string) string {
	return fmt.Sprintf("mem:%s:idx:all:%s", tenantID, contextID)
}

// TenantIndexPattern matches a tenant's all-contexts index.
func TenantIndexPattern(tenantID string) string {
	return fmt.Sprintf("mem:%s:idx:all:*", tenantID)
}

// UserIndexKey returns the per-user index entry for a context.
func UserIndexKey(tenantID, userID, contextID string) string {
	return fmt.Sprintf("mem:%s:idx:user:%s:%s", tenantID, userID, contextID)
}

// UserIndexPattern matches a user's index entries.
func UserIndexPattern(tenantID, userID string) string {
	return fmt.Sprintf("mem:%s:idx:user:%s:*", tenantID, userID)
}

// SessionIndexKey returns the per-session index entry for a context.
func SessionIndexKey(tenantID, sessionID, contextID string) string {
	return fmt.Sprintf("mem:%s:idx:session:%s:%s", tenantID, sessionID, contextID)
}

// TypeIndexKey returns the per-type index entry for a context.
func TypeIndexKey(tenantID, contextType, contextID string) string {
	return fmt.Sprintf("mem:%s:idx:type:%s:%s", tenantID, contextType, contextID)
}
