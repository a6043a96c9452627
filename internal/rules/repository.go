package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists automation rules, one per device.
type Repository interface {
	// Upsert stores the rule, replacing any existing rule for the device.
	Upsert(ctx context.Context, rule *Rule) error

	// Get retrieves a device's rule. Returns ErrRuleNotFound when the
	// device has none.
	Get(ctx context.Context, deviceID string) (*Rule, error)

	// List retrieves every stored rule.
	List(ctx context.Context) ([]*Rule, error)

	// SetEnabled flips a rule's enabled flag.
	SetEnabled(ctx context.Context, deviceID string, enabled bool) error

	// Delete removes a device's rule. Deleting a missing rule is a no-op.
	Delete(ctx context.Context, deviceID string) error
}

// SQLiteRepository implements Repository backed by SQLite. Schedules are
// stored as a JSON document column alongside the kind discriminant.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a rules repository using the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert stores the rule, replacing any existing rule for the device.
// CreatedAt is preserved on replacement; LastModified always advances.
func (r *SQLiteRepository) Upsert(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	doc, err := rule.encodeDocument()
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	created := now
	if !rule.CreatedAt.IsZero() {
		created = rule.CreatedAt.Unix()
	}

	query := `
		INSERT INTO automation_rules (
			device_id, kind, enabled, source, document,
			based_on_events, created_at, last_modified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			kind = excluded.kind,
			enabled = excluded.enabled,
			source = excluded.source,
			document = excluded.document,
			based_on_events = excluded.based_on_events,
			last_modified = excluded.last_modified
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.DeviceID, string(rule.Kind), boolToInt(rule.Enabled),
		rule.Source, string(doc), rule.BasedOnEvents, created, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	return nil
}

// Get retrieves a device's rule.
func (r *SQLiteRepository) Get(ctx context.Context, deviceID string) (*Rule, error) {
	query := `
		SELECT device_id, kind, enabled, source, document,
		       based_on_events, created_at, last_modified
		FROM automation_rules
		WHERE device_id = ?
	`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List retrieves every stored rule, ordered by device id.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Rule, error) {
	query := `
		SELECT device_id, kind, enabled, source, document,
		       based_on_events, created_at, last_modified
		FROM automation_rules
		ORDER BY device_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var rules []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

// SetEnabled flips a rule's enabled flag.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, deviceID string, enabled bool) error {
	query := `UPDATE automation_rules SET enabled = ?, last_modified = ? WHERE device_id = ?`
	result, err := r.db.ExecContext(ctx, query, boolToInt(enabled), time.Now().Unix(), deviceID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a device's rule.
func (r *SQLiteRepository) Delete(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var (
		rule              Rule
		kind, doc         string
		enabled           int
		created, modified int64
	)
	err := row.Scan(&rule.DeviceID, &kind, &enabled, &rule.Source,
		&doc, &rule.BasedOnEvents, &created, &modified)
	if err != nil {
		return nil, err
	}
	rule.Kind = RuleKind(kind)
	rule.Enabled = enabled != 0
	rule.CreatedAt = time.Unix(created, 0)
	rule.LastModified = time.Unix(modified, 0)
	if err := rule.decodeDocument([]byte(doc)); err != nil {
		return nil, err
	}
	return &rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
