package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditStore = (*EventRepo)(nil)

// EventRepo is the SQLite implementation of the AuditStore port.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Record appends an event to the audit log. Recording the same event ID twice
// is a no-op.
func (r *EventRepo) Record(ctx context.Context, event model.Event) error {
	const query = `INSERT OR IGNORE INTO access_events (id, kind, method, key, name, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	occurredAt := event.At
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.Method,
		event.Key,
		event.Name,
		occurredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record %s event %s: %w", event.Kind, event.ID, err)
	}
	return nil
}

// Recent returns up to limit events ordered newest first.
func (r *EventRepo) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	const query = `SELECT id, kind, method, key, name, occurred_at FROM access_events
		ORDER BY seq DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var kind, occurredAt string
		if err := rows.Scan(&e.ID, &kind, &e.Method, &e.Key, &e.Name, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = model.EventKind(kind)
		e.At, err = parseTime(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at for event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
