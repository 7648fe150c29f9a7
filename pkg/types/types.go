// Package types defines the data model shared by the storage, cache, and
// core packages: memory contexts, their sub-entries, tenant configuration,
// and the query/stats types exchanged with the memory manager.
package types

import "time"

// ContextType classifies a memory context and drives relevance scoring,
// retention policy lookup, and cache TTL selection.
//
// The type of a context is fixed at creation time and never changes.
type ContextType string

const (
	// ContextTypeConversation holds dialogue history between a user and an agent.
	ContextTypeConversation ContextType = "conversation"

	// ContextTypeUserProfile holds long-lived user preferences and traits.
	ContextTypeUserProfile ContextType = "user_profile"

	// ContextTypeBusinessAnalysis holds derived business context.
	ContextTypeBusinessAnalysis ContextType = "business_analysis"

	// ContextTypeTaskExecution holds the task history of an agent session.
	ContextTypeTaskExecution ContextType = "task_execution"

	// ContextTypeLearningInsights holds insights derived from past sessions.
	ContextTypeLearningInsights ContextType = "learning_insights"
)

// AllContextTypes lists every valid context type.
var AllContextTypes = []ContextType{
	ContextTypeConversation,
	ContextTypeUserProfile,
	ContextTypeBusinessAnalysis,
	ContextTypeTaskExecution,
	ContextTypeLearningInsights,
}

// Valid reports whether t is one of the known context types.
func (t ContextType) Valid() bool {
	switch t {
	case ContextTypeConversation, ContextTypeUserProfile, ContextTypeBusinessAnalysis,
		ContextTypeTaskExecution, ContextTypeLearningInsights:
		return true
	}
	return false
}

// Task status values used by relevance scoring.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// RoleAssistant is the conversation role that earns a relevance boost.
const RoleAssistant = "assistant"

// MemoryContext is the unit of storage, caching, and ranking.
//
// Identity is the pair (TenantID, ID): IDs are opaque strings generated on
// creation and unique among a tenant's live records. A context's cache copy
// may lag its storage copy; storage is always authoritative.
type MemoryContext struct {
	// ID is the opaque identifier generated on creation.
	ID string `json:"id"`

	// TenantID is the isolation boundary; every key is tenant-partitioned.
	TenantID string `json:"tenant_id"`

	// UserID identifies the user the context belongs to.
	UserID string `json:"user_id"`

	// SessionID identifies the agent session that produced the context.
	SessionID string `json:"session_id,omitempty"`

	// AgentID identifies the agent that produced the context.
	AgentID string `json:"agent_id,omitempty"`

	// ContextType classifies the context. Immutable after creation.
	ContextType ContextType `json:"context_type"`

	// Content holds the typed sub-structures of the context.
	Content ContextContent `json:"content"`

	// Metadata holds versioning, provenance, and access bookkeeping.
	Metadata ContextMetadata `json:"metadata"`

	// RelevanceScore is a [0,1] measure of usefulness, recomputed on every
	// mutation. It drives both ranking and eviction.
	RelevanceScore float64 `json:"relevance_score"`

	// CreatedAt is when the context was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the context was last mutated.
	UpdatedAt time.Time `json:"updated_at"`

	// ExpiresAt is derived from the tenant retention policy at creation
	// time and never recomputed afterward. Nil means no expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Clone returns a deep copy of the context. Cache backends hand out clones
// so callers cannot mutate shared state.
func (c *MemoryContext) Clone() *MemoryContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Content = *c.Content.Clone()
	out.Metadata = *c.Metadata.clone()
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

// Expired reports whether the context has an expiry in the past.
func (c *MemoryContext) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// ContextContent holds the typed sub-structures of a context. The fixed
// histories are strongly typed; CustomData is the only free-form bag and
// should carry primitive JSON values only.
type ContextContent struct {
	ConversationHistory []ConversationEntry `json:"conversation_history"`
	TaskHistory         []TaskEntry         `json:"task_history"`
	Insights            []InsightEntry      `json:"insights"`
	UserPreferences     map[string]any      `json:"user_preferences"`
	BusinessContext     map[string]any      `json:"business_context"`
	CustomData          map[string]any      `json:"custom_data"`
}

// Clone returns a deep copy of the content.
func (c *ContextContent) Clone() *ContextContent {
	if c == nil {
		return nil
	}
	out := ContextContent{
		ConversationHistory: append([]ConversationEntry(nil), c.ConversationHistory...),
		TaskHistory:         make([]TaskEntry, len(c.TaskHistory)),
		Insights:            append([]InsightEntry(nil), c.Insights...),
		UserPreferences:     cloneMap(c.UserPreferences),
		BusinessContext:     cloneMap(c.BusinessContext),
		CustomData:          cloneMap(c.CustomData),
	}
	for i, t := range c.TaskHistory {
		out.TaskHistory[i] = t
		out.TaskHistory[i].Result = cloneMap(t.Result)
	}
	return &out
}

// ConversationEntry is a single exchange in a conversation history.
type ConversationEntry struct {
	// ID is generated when the entry is appended.
	ID string `json:"id"`

	// Timestamp is when the exchange happened.
	Timestamp time.Time `json:"timestamp"`

	// Role is the speaker ("user", "assistant", ...).
	Role string `json:"role"`

	// Content is the text of the exchange.
	Content string `json:"content"`

	// RelevanceScore is the entry's own [0,1] score, rolled up into the
	// parent context's score.
	RelevanceScore float64 `json:"relevance_score"`
}

// TaskEntry is a single task execution record.
type TaskEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	TaskType  string         `json:"task_type"`
	Status    string         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`

	// RelevanceScore is the entry's own [0,1] score.
	RelevanceScore float64 `json:"relevance_score"`
}

// InsightEntry is a single derived insight.
type InsightEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`

	// Confidence is the [0,1] confidence the insight was derived with.
	// The parent learning_insights score is the average confidence.
	Confidence float64 `json:"confidence"`

	// RelevanceScore is the entry's own [0,1] score (confidence * 0.8).
	RelevanceScore float64 `json:"relevance_score"`
}

// ContextMetadata carries versioning, provenance, and access bookkeeping.
type ContextMetadata struct {
	// Version starts at 1 and is incremented by every durable update. It
	// is the optimistic-concurrency token used by conditional updates.
	Version int64 `json:"version"`

	// Source records where the context came from.
	Source string `json:"source,omitempty"`

	// Tags is a set of free-form labels used for query filtering.
	Tags []string `json:"tags,omitempty"`

	// AccessCount counts cache hits on this record. Cache-local
	// bookkeeping; not guaranteed to propagate to storage.
	AccessCount int64 `json:"access_count"`

	// LastAccessed is when the record was last served from cache.
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

func (m *ContextMetadata) clone() *ContextMetadata {
	out := *m
	out.Tags = append([]string(nil), m.Tags...)
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		out.LastAccessed = &t
	}
	return &out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
