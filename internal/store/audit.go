// ABOUTME: Audit log entity and SQLite methods for tracking admin actions
// ABOUTME: Records which user logged in, edited, added or deleted which topic

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditLoginSucceeded AuditAction = "login_succeeded"
	AuditLoginFailed    AuditAction = "login_failed"
	AuditLoginLocked    AuditAction = "login_locked"
	AuditLoginRejected  AuditAction = "login_rejected"
	AuditLogout         AuditAction = "logout"
	AuditAdminExpired   AuditAction = "admin_expired"
	AuditCreateNode     AuditAction = "create_node"
	AuditUpdateNode     AuditAction = "update_node"
	AuditDeleteNode     AuditAction = "delete_node"
	AuditStorageFailed  AuditAction = "storage_failed"
)

// ValidAuditActions lists all valid audit actions.
var ValidAuditActions = []AuditAction{
	AuditLoginSucceeded,
	AuditLoginFailed,
	AuditLoginLocked,
	AuditLoginRejected,
	AuditLogout,
	AuditAdminExpired,
	AuditCreateNode,
	AuditUpdateNode,
	AuditDeleteNode,
	AuditStorageFailed,
}

// Valid reports whether a is one of ValidAuditActions.
func (a AuditAction) Valid() bool {
	for _, v := range ValidAuditActions {
		if a == v {
			return true
		}
	}
	return false
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string         // UUID v4
	Actor     string         // chat user id that performed the action
	Action    AuditAction    // what action was performed
	Target    string         // node id, empty for session actions
	Timestamp time.Time      // when it happened
	Detail    map[string]any // additional context
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since  *time.Time   // entries at or after this time
	Actor  *string      // filter by actor
	Action *AuditAction // filter by action type
	Target *string      // filter by node id
	Limit  int          // max results (default 100, max 1000)
}

// timestamps are stored fixed-width so lexical order matches time order
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// prepareAuditEntry validates e and fills in ID and Timestamp when unset.
func prepareAuditEntry(e *AuditEntry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("invalid audit action %q", e.Action)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return nil
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if err := prepareAuditEntry(e); err != nil {
		return err
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO audit_log (audit_id, actor, action, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Actor,
		e.Action,
		e.Target,
		e.Timestamp.UTC().Format(tsLayout),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.Actor,
		"action", e.Action,
		"target", e.Target,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var actionStr, tsStr string
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.Actor,
		&actionStr,
		&e.Target,
		&tsStr,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	var err error
	e.Timestamp, err = time.Parse(tsLayout, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}

const auditLogQuery = `
	SELECT audit_id, actor, action, target_id, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR actor = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR target_id = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)

	var sinceStr, actionStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(tsLayout)
		sinceStr = &v
	}
	if f.Action != nil {
		v := string(*f.Action)
		actionStr = &v
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		sinceStr, sinceStr,
		f.Actor, f.Actor,
		actionStr, actionStr,
		f.Target, f.Target,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
