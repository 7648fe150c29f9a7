// Package sqlite provides the SQLite storage backend.
//
// SQLite is a lightweight, file-based database suitable for local
// development and single-node deployments. Content and metadata are stored
// as JSON in TEXT columns; the (tenant_id, id) primary key gives the
// conditional-insert uniqueness the layer relies on.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/agentmem/agentmem-go/pkg/memerr"
	"github.com/agentmem/agentmem-go/pkg/storage"
	"github.com/agentmem/agentmem-go/pkg/types"
)

// Client implements storage.Provider on SQLite.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// table is the name of the table storing contexts.
	table string

	// quotaMB is the per-tenant storage budget enforced on Store.
	quotaMB float64
}

// Config contains configuration for creating a SQLite provider.
type Config struct {
	// Path is the path to the SQLite database file.
	Path string

	// Table is the name of the table to use. Defaults to "memory_contexts".
	Table string

	// QuotaMB is the per-tenant quota in megabytes.
	// Defaults to storage.DefaultQuotaMB.
	QuotaMB float64
}

// NewClient creates a new SQLite provider and initializes the schema.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Table == "" {
		cfg.Table = "memory_contexts"
	}
	if cfg.QuotaMB == 0 {
		cfg.QuotaMB = storage.DefaultQuotaMB
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:      db,
		table:   cfg.Table,
		quotaMB: cfg.QuotaMB,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT,
			agent_id TEXT,
			context_type TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL,
			relevance_score REAL NOT NULL DEFAULT 0.5,
			version INTEGER NOT NULL DEFAULT 1,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			expires_at DATETIME,
			PRIMARY KEY (tenant_id, id)
		)
	`, c.table)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	// Secondary access path for point lookups
	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user_session ON %s(tenant_id, user_id, session_id)
	`, c.table, c.table)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Store persists a new context. The insert is conditional on the
// (tenant_id, id) primary key; the quota is checked before writing.
func (c *Client) Store(ctx context.Context, record *types.MemoryContext) error {
	sizeBytes := storage.EstimateSizeBytes(record)
	if err := c.checkQuota(ctx, record.TenantID, sizeBytes); err != nil {
		return err
	}

	contentJSON, metadataJSON, err := marshalRecord(record)
	if err != nil {
		return fmt.Errorf("Store: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, tenant_id, user_id, session_id, agent_id, context_type, content, metadata,
		 relevance_score, version, size_bytes, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.table)

	_, err = c.db.ExecContext(ctx, query,
		record.ID,
		record.TenantID,
		record.UserID,
		record.SessionID,
		record.AgentID,
		string(record.ContextType),
		contentJSON,
		metadataJSON,
		record.RelevanceScore,
		record.Metadata.Version,
		sizeBytes,
		record.CreatedAt,
		record.UpdatedAt,
		nullableTime(record.ExpiresAt),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return memerr.ErrAlreadyExists
		}
		return fmt.Errorf("Store: %w", err)
	}

	return nil
}

// checkQuota compares the tenant's current usage plus the new record's size
// against the configured quota. Check-then-act: concurrent writers can
// transiently exceed the budget.
func (c *Client) checkQuota(ctx context.Context, tenantID string, newSizeBytes int64) error {
	query := fmt.Sprintf(`SELECT COALESCE(SUM(size_bytes), 0) FROM %s WHERE tenant_id = ?`, c.table)

	var usedBytes int64
	if err := c.db.QueryRowContext(ctx, query, tenantID).Scan(&usedBytes); err != nil {
		return fmt.Errorf("checkQuota: %w", err)
	}

	currentMB := storage.BytesToMB(usedBytes)
	if storage.BytesToMB(usedBytes+newSizeBytes) > c.quotaMB {
		return &memerr.QuotaError{TenantID: tenantID, CurrentMB: currentMB, QuotaMB: c.quotaMB}
	}
	return nil
}

// Retrieve fetches candidate contexts, via the (user, session) index when
// both are present, otherwise by tenant partition scan. Expired records
// are filtered at read time; rows are capped at storage.MaxFetch.
func (c *Client) Retrieve(ctx context.Context, query *types.ContextQuery) ([]*types.MemoryContext, error) {
	where := "WHERE tenant_id = ?"
	args := []any{query.TenantID}

	if query.UserID != "" && query.SessionID != "" {
		where += " AND user_id = ? AND session_id = ?"
		args = append(args, query.UserID, query.SessionID)
	}
	where += " AND (expires_at IS NULL OR expires_at > ?)"
	args = append(args, time.Now())

	stmt := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, session_id, agent_id, context_type, content, metadata,
		       relevance_score, version, created_at, updated_at, expires_at
		FROM %s
		%s
		ORDER BY relevance_score DESC, created_at DESC
		LIMIT %d
	`, c.table, where, storage.MaxFetch)

	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("Retrieve: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.MemoryContext
	for rows.Next() {
		record, err := scanContext(rows)
		if err != nil {
			return nil, fmt.Errorf("Retrieve: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Retrieve: %w", err)
	}

	return records, nil
}

// get fetches a single record by (tenant, id).
func (c *Client) get(ctx context.Context, contextID, tenantID string) (*types.MemoryContext, error) {
	stmt := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, session_id, agent_id, context_type, content, metadata,
		       relevance_score, version, created_at, updated_at, expires_at
		FROM %s
		WHERE tenant_id = ? AND id = ?
	`, c.table)

	record, err := scanContext(c.db.QueryRowContext(ctx, stmt, tenantID, contextID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return record, nil
}

// Update applies a partial update as a read-modify-write conditioned on the
// stored version, so a concurrent writer cannot be silently overwritten
// when the caller supplies ExpectedVersion.
func (c *Client) Update(ctx context.Context, contextID, tenantID string, upd *types.ContextUpdate) (*types.MemoryContext, error) {
	record, err := c.get(ctx, contextID, tenantID)
	if err != nil {
		return nil, err
	}

	currentVersion := record.Metadata.Version
	if upd.ExpectedVersion > 0 && currentVersion != upd.ExpectedVersion {
		return nil, memerr.ErrVersionConflict
	}

	applyUpdate(record, upd)
	record.Metadata.Version = currentVersion + 1
	record.UpdatedAt = time.Now()
	sizeBytes := storage.EstimateSizeBytes(record)

	contentJSON, metadataJSON, err := marshalRecord(record)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	stmt := fmt.Sprintf(`
		UPDATE %s
		SET content = ?, metadata = ?, relevance_score = ?, version = ?, size_bytes = ?,
		    updated_at = ?, expires_at = ?
		WHERE tenant_id = ? AND id = ? AND version = ?
	`, c.table)

	result, err := c.db.ExecContext(ctx, stmt,
		contentJSON,
		metadataJSON,
		record.RelevanceScore,
		record.Metadata.Version,
		sizeBytes,
		record.UpdatedAt,
		nullableTime(record.ExpiresAt),
		tenantID,
		contextID,
		currentVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	if rowsAffected == 0 {
		// The row moved (or vanished) between the read and the write.
		if _, err := c.get(ctx, contextID, tenantID); errors.Is(err, memerr.ErrNotFound) {
			return nil, memerr.ErrNotFound
		}
		return nil, memerr.ErrVersionConflict
	}

	return record, nil
}

// Delete removes a context by (tenant, id).
func (c *Client) Delete(ctx context.Context, contextID, tenantID string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = ? AND id = ?", c.table)

	result, err := c.db.ExecContext(ctx, stmt, tenantID, contextID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return memerr.ErrNotFound
	}

	return nil
}

// Cleanup deletes every record of the tenant older than the retention
// period or scoring below the relevance threshold, in batches of
// storage.CleanupBatchSize.
func (c *Client) Cleanup(ctx context.Context, tenantID string, cfg *types.OptimizationConfig) (int, error) {
	cutoff := time.Now().Add(-cfg.RetentionPeriod)

	stmt := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE tenant_id = ? AND (created_at < ? OR relevance_score < ?)
	`, c.table)

	rows, err := c.db.QueryContext(ctx, stmt, tenantID, cutoff, cfg.RelevanceThreshold)
	if err != nil {
		return 0, fmt.Errorf("Cleanup: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("Cleanup: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("Cleanup: %w", err)
	}

	deleted := 0
	for start := 0; start < len(ids); start += storage.CleanupBatchSize {
		end := start + storage.CleanupBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := ""
		args := []any{tenantID}
		for i, id := range batch {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, id)
		}

		del := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = ? AND id IN (%s)", c.table, placeholders)
		result, err := c.db.ExecContext(ctx, del, args...)
		if err != nil {
			return deleted, fmt.Errorf("Cleanup: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("Cleanup: %w", err)
		}
		deleted += int(n)
	}

	return deleted, nil
}

// GetStats aggregates the tenant's usage with a partition scan.
func (c *Client) GetStats(ctx context.Context, tenantID string) (*types.MemoryStats, error) {
	stmt := fmt.Sprintf(`
		SELECT context_type, user_id, size_bytes, relevance_score, created_at
		FROM %s
		WHERE tenant_id = ?
	`, c.table)

	rows, err := c.db.QueryContext(ctx, stmt, tenantID)
	if err != nil {
		return nil, fmt.Errorf("GetStats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := types.NewMemoryStats(tenantID)
	var scoreSum float64

	for rows.Next() {
		var (
			contextType string
			userID      string
			sizeBytes   int64
			score       float64
			createdAt   time.Time
		)
		if err := rows.Scan(&contextType, &userID, &sizeBytes, &score, &createdAt); err != nil {
			return nil, fmt.Errorf("GetStats: %w", err)
		}

		sizeMB := storage.BytesToMB(sizeBytes)
		stats.TotalContexts++
		stats.TotalMemoryMB += sizeMB
		stats.MemoryByTypeMB[types.ContextType(contextType)] += sizeMB
		stats.MemoryByUserMB[userID] += sizeMB
		scoreSum += score

		created := createdAt
		if stats.OldestContext == nil || created.Before(*stats.OldestContext) {
			stats.OldestContext = &created
		}
		if stats.NewestContext == nil || created.After(*stats.NewestContext) {
			stats.NewestContext = &created
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStats: %w", err)
	}

	if stats.TotalContexts > 0 {
		stats.AverageRelevanceScore = scoreSum / float64(stats.TotalContexts)
	}

	return stats, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// applyUpdate merges the partial update into the record, leaving identity
// fields and the context type untouched.
func applyUpdate(record *types.MemoryContext, upd *types.ContextUpdate) {
	if upd.Content != nil {
		record.Content = *upd.Content
	}
	if upd.Metadata != nil {
		version := record.Metadata.Version
		record.Metadata = *upd.Metadata
		record.Metadata.Version = version
	}
	if upd.RelevanceScore != nil {
		record.RelevanceScore = *upd.RelevanceScore
	}
	if upd.ExpiresAt != nil {
		t := *upd.ExpiresAt
		record.ExpiresAt = &t
	}
}

// marshalRecord serializes the content and metadata columns.
func marshalRecord(record *types.MemoryContext) (string, string, error) {
	contentJSON, err := json.Marshal(record.Content)
	if err != nil {
		return "", "", err
	}
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", "", err
	}
	return string(contentJSON), string(metadataJSON), nil
}

// scanContext scans a context from a database row or rows.
func scanContext(scanner interface{ Scan(dest ...any) error }) (*types.MemoryContext, error) {
	var (
		record      types.MemoryContext
		sessionID   sql.NullString
		agentID     sql.NullString
		contextType string
		contentStr  string
		metadataStr string
		version     int64
		expiresAt   sql.NullTime
	)

	err := scanner.Scan(
		&record.ID,
		&record.TenantID,
		&record.UserID,
		&sessionID,
		&agentID,
		&contextType,
		&contentStr,
		&metadataStr,
		&record.RelevanceScore,
		&version,
		&record.CreatedAt,
		&record.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	record.SessionID = sessionID.String
	record.AgentID = agentID.String
	record.ContextType = types.ContextType(contextType)

	if err := json.Unmarshal([]byte(contentStr), &record.Content); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataStr), &record.Metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	// The version column is authoritative over the serialized copy.
	record.Metadata.Version = version

	if expiresAt.Valid {
		record.ExpiresAt = &expiresAt.Time
	}

	return &record, nil
}

// nullableTime converts an optional expiry into a driver value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
