package types

// TenantConfig holds the per-tenant quota, retention, and sharing settings
// consumed by the memory manager. It is registered through the manager's
// tenant-config store and read at context creation time.
type TenantConfig struct {
	// TenantID identifies the tenant the settings apply to.
	TenantID string `json:"tenant_id"`

	// MemoryQuotaMB is the tenant's storage budget in megabytes.
	// Informational at the manager level; the durable tier enforces its
	// own configured quota at write time.
	MemoryQuotaMB float64 `json:"memory_quota_mb"`

	// RetentionPolicy maps a context type to its retention in days.
	// A missing or zero entry means contexts of that type never expire.
	RetentionPolicy map[ContextType]int `json:"retention_policy"`

	// SharingPolicy controls cross-tenant and cross-user visibility.
	SharingPolicy SharingPolicy `json:"sharing_policy"`

	// EncryptionEnabled marks the tenant's data for at-rest encryption.
	EncryptionEnabled bool `json:"encryption_enabled"`
}

// SharingPolicy controls how a tenant's contexts may be shared.
type SharingPolicy struct {
	// AllowCrossTenant permits other tenants to read shared context types.
	AllowCrossTenant bool `json:"allow_cross_tenant"`

	// AllowCrossUser permits other users of the same tenant to read
	// shared context types.
	AllowCrossUser bool `json:"allow_cross_user"`

	// SharedContextTypes lists the context types the flags above apply to.
	SharedContextTypes []ContextType `json:"shared_context_types,omitempty"`
}
