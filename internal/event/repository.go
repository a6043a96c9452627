package event

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the interface for switch event persistence.
type Repository interface {
	// Record appends an event and trims the device's history to the cap.
	Record(ctx context.Context, e *Event) error

	// ListSince retrieves a device's events at or after the cutoff,
	// oldest first.
	ListSince(ctx context.Context, deviceID string, cutoff time.Time) ([]Event, error)

	// Count returns the number of stored events for a device.
	Count(ctx context.Context, deviceID string) (int, error)

	// DeleteForDevice drops a device's entire history.
	DeleteForDevice(ctx context.Context, deviceID string) error
}

// SQLiteRepository implements Repository using SQLite.
//
// The FIFO bound is enforced on every insert: after appending, rows beyond
// the cap are deleted oldest-first. Insert and trim run in one transaction
// so readers never observe an over-cap history.
type SQLiteRepository struct {
	db  *sql.DB
	cap int
}

// NewSQLiteRepository creates a new SQLite-backed event log.
// cap is the per-device history bound; values below 1 fall back to 200.
func NewSQLiteRepository(db *sql.DB, cap int) *SQLiteRepository {
	if cap < 1 {
		cap = 200
	}
	return &SQLiteRepository{db: db, cap: cap}
}

// Record appends an event and trims the device's history to the cap.
func (r *SQLiteRepository) Record(ctx context.Context, e *Event) error {
	if !ValidAction(e.Action) {
		return fmt.Errorf("%w: %q", ErrInvalidAction, e.Action)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning event transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	result, err := tx.ExecContext(ctx,
		`INSERT INTO device_events (device_id, action, source, occurred_at) VALUES (?, ?, ?, ?)`,
		e.DeviceID, e.Action, e.Source, e.OccurredAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		e.ID = id
	}

	// Trim oldest entries past the cap.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM device_events
		WHERE device_id = ?
		  AND id NOT IN (
			SELECT id FROM device_events
			WHERE device_id = ?
			ORDER BY occurred_at DESC, id DESC
			LIMIT ?
		  )`,
		e.DeviceID, e.DeviceID, r.cap)
	if err != nil {
		return fmt.Errorf("trimming event history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event: %w", err)
	}
	return nil
}

// ListSince retrieves a device's events at or after the cutoff, oldest first.
func (r *SQLiteRepository) ListSince(ctx context.Context, deviceID string, cutoff time.Time) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, action, source, occurred_at
		FROM device_events
		WHERE device_id = ? AND occurred_at >= ?
		ORDER BY occurred_at ASC, id ASC`,
		deviceID, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var events []Event
	for rows.Next() {
		var e Event
		var occurredAt int64
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Action, &e.Source, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.OccurredAt = time.Unix(occurredAt, 0).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of stored events for a device.
func (r *SQLiteRepository) Count(ctx context.Context, deviceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_events WHERE device_id = ?`, deviceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// DeleteForDevice drops a device's entire history.
func (r *SQLiteRepository) DeleteForDevice(ctx context.Context, deviceID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM device_events WHERE device_id = ?`, deviceID); err != nil {
		return fmt.Errorf("deleting events: %w", err)
	}
	return nil
}
