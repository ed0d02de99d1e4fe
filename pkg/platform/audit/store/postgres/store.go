package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	audit "eventreg/pkg/platform/audit"
)

// Schema creates the audit table. Applied by EnsureSchema on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id              TEXT PRIMARY KEY,
	category        TEXT NOT NULL,
	action          TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	event_tag       TEXT NOT NULL DEFAULT '',
	subject_id_hash TEXT NOT NULL DEFAULT '',
	student_id      TEXT NOT NULL DEFAULT '',
	payment_method  TEXT NOT NULL DEFAULT '',
	installments    INTEGER NOT NULL DEFAULT 0,
	tickets         INTEGER NOT NULL DEFAULT 0,
	amount          TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	request_id      TEXT NOT NULL DEFAULT '',
	client_ip       TEXT NOT NULL DEFAULT '',
	device          TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_session_idx ON audit_events (session_id, created_at);
`

// Store implements audit.Store and audit.Reader over database/sql with the
// lib/pq driver.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the lib/pq driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the audit table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Append inserts event. Re-appending the same ID is ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	const query = `
		INSERT INTO audit_events (
			id, category, action, session_id, event_tag, subject_id_hash, student_id,
			payment_method, installments, tickets, amount, reason, request_id,
			client_ip, device, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, string(event.Category), string(event.Action), event.SessionID,
		event.EventTag, event.SubjectIDHash, event.StudentID, event.PaymentMethod,
		event.Installments, event.Tickets, event.Amount, event.Reason,
		event.RequestID, event.ClientIP, event.Device, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns matching events oldest first. With a limit, the most recent
// matches are kept.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		where = append(where, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		args = append(args, pq.Array(actions))
		where = append(where, fmt.Sprintf("action = ANY($%d)", len(args)))
	}

	query := `SELECT id, category, action, session_id, event_tag, subject_id_hash, student_id,
		payment_method, installments, tickets, amount, reason, request_id, client_ip, device, created_at
		FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                audit.Event
			category, action string
		)
		if err := rows.Scan(&e.ID, &category, &action, &e.SessionID, &e.EventTag,
			&e.SubjectIDHash, &e.StudentID, &e.PaymentMethod, &e.Installments, &e.Tickets,
			&e.Amount, &e.Reason, &e.RequestID, &e.ClientIP, &e.Device, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Action = audit.Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	// newest-first from the query; callers expect oldest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
