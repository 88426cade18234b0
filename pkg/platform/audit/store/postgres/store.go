package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	audit "voyage/pkg/platform/audit"
)

// Store implements audit.Store on the audit_logs table. Rows are only ever
// inserted; the seq column breaks timestamp ties so reads stay newest first.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a PostgreSQL audit store. The schema must already be migrated.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const selectColumns = `
	SELECT id, timestamp, user_id, user_name, user_email, employee_id,
	       action, resource_type, resource_id, details, ip_address, user_agent
	FROM audit_logs`

const newestFirst = ` ORDER BY timestamp DESC, seq DESC`

// AppendBatch inserts the batch in one transaction. Either every entry is
// stored or none is.
func (s *Store) AppendBatch(ctx context.Context, batch []audit.PendingEntry, meta audit.NetworkMetadata) ([]audit.LogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin audit batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_logs (
			id, timestamp, user_id, user_name, user_email, employee_id,
			action, resource_type, resource_id, details, ip_address, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	// timestamptz keeps microseconds
	ts := s.now().UTC().Truncate(time.Microsecond)
	stored := make([]audit.LogEntry, 0, len(batch))
	for _, e := range batch {
		details, err := marshalDetails(e.Details)
		if err != nil {
			return nil, err
		}
		entry := audit.LogEntry{
			ID:           uuid.NewString(),
			Timestamp:    ts,
			PendingEntry: e,
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
		}
		_, err = stmt.ExecContext(ctx,
			entry.ID,
			entry.Timestamp,
			e.UserID,
			e.UserName,
			e.UserEmail,
			e.EmployeeID,
			string(e.Action),
			string(e.ResourceType),
			e.ResourceID,
			details,
			meta.IPAddress,
			meta.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("insert audit log: %w", err)
		}
		stored = append(stored, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit audit batch: %w", err)
	}
	return stored, nil
}

func (s *Store) ListByResource(ctx context.Context, resourceType audit.ResourceType, resourceID string) ([]audit.LogEntry, error) {
	return s.ListRange(ctx, audit.Filters{ResourceType: resourceType, ResourceID: resourceID})
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]audit.LogEntry, error) {
	return s.ListRange(ctx, audit.Filters{UserID: userID})
}

// ListRange returns every entry matching f, newest first.
func (s *Store) ListRange(ctx context.Context, f audit.Filters) ([]audit.LogEntry, error) {
	where, args := whereClause(f)
	rows, err := s.db.QueryContext(ctx, selectColumns+where+newestFirst, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search returns one page of matching entries and the total match count.
func (s *Store) Search(ctx context.Context, q audit.SearchQuery) (audit.Page, error) {
	q = q.Normalize()
	where, args := whereClause(q.Filters)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return audit.Page{}, fmt.Errorf("count audit logs: %w", err)
	}

	n := len(args)
	query := selectColumns + where + newestFirst +
		" LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return audit.Page{}, fmt.Errorf("search audit logs: %w", err)
	}
	defer rows.Close()

	logs, err := scanEntries(rows)
	if err != nil {
		return audit.Page{}, err
	}
	return audit.NewPage(logs, total, q), nil
}

// Count aggregates matching entries by action and resource type.
func (s *Store) Count(ctx context.Context, f audit.Filters) (audit.Counts, error) {
	where, args := whereClause(f)
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, resource_type, COUNT(*) FROM audit_logs`+where+` GROUP BY action, resource_type`,
		args...)
	if err != nil {
		return audit.Counts{}, fmt.Errorf("count audit logs: %w", err)
	}
	defer rows.Close()

	counts := audit.NewCounts()
	for rows.Next() {
		var (
			action       string
			resourceType string
			n            int
		)
		if err := rows.Scan(&action, &resourceType, &n); err != nil {
			return audit.Counts{}, fmt.Errorf("scan audit count: %w", err)
		}
		counts.Total += n
		counts.ByAction[audit.Action(action)] += n
		counts.ByResourceType[audit.ResourceType(resourceType)] += n
	}
	if err := rows.Err(); err != nil {
		return audit.Counts{}, fmt.Errorf("iterate audit counts: %w", err)
	}
	return counts, nil
}

// whereClause renders the set filter fields as positional predicates.
func whereClause(f audit.Filters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		add("user_id =", f.UserID)
	}
	if f.Action != "" {
		add("action =", string(f.Action))
	}
	if f.ResourceType != "" {
		add("resource_type =", string(f.ResourceType))
	}
	if f.ResourceID != "" {
		add("resource_id =", f.ResourceID)
	}
	if !f.StartDate.IsZero() {
		add("timestamp >=", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		add("timestamp <=", f.EndDate)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}
	return b, nil
}

func scanEntries(rows *sql.Rows) ([]audit.LogEntry, error) {
	entries := []audit.LogEntry{}
	for rows.Next() {
		var (
			e            audit.LogEntry
			action       string
			resourceType string
			details      []byte
		)
		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.UserID,
			&e.UserName,
			&e.UserEmail,
			&e.EmployeeID,
			&action,
			&resourceType,
			&e.ResourceID,
			&details,
			&e.IPAddress,
			&e.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Action = audit.Action(action)
		e.ResourceType = audit.ResourceType(resourceType)
		e.Timestamp = e.Timestamp.UTC()
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}
