package energy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// DayFormat is the calendar-day key used in the daily_usage table.
const DayFormat = "2006-01-02"

// ErrNoUsage is returned when a device has no recorded usage for a day.
var ErrNoUsage = errors.New("energy: no usage recorded")

// DailyUsage is one device's accumulated consumption for one calendar day.
// Watt is the rated wattage the totals were computed from, so a later
// wattage correction leaves past rows auditable.
type DailyUsage struct {
	DeviceID  string    `json:"device_id"`
	Day       string    `json:"day"`
	KWh       float64   `json:"kwh"`
	Watt      float64   `json:"wattage"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KWh converts a rated wattage and an ON duration into kilowatt-hours,
// rounded to six decimal places.
func KWh(watt float64, d time.Duration) float64 {
	kwh := watt / 1000 * d.Minutes() / 60
	return math.Round(kwh*1e6) / 1e6
}

// UsageRepository defines the interface for daily usage persistence.
type UsageRepository interface {
	// AddUsage adds a kWh slice to a device's total for the given day,
	// recording the rated wattage it was computed from.
	AddUsage(ctx context.Context, deviceID, day string, kwh, watt float64) error

	// GetDay retrieves a device's total for one day.
	// Returns ErrNoUsage if nothing was recorded.
	GetDay(ctx context.Context, deviceID, day string) (float64, error)

	// ListDays retrieves a device's most recent daily totals, newest first.
	ListDays(ctx context.Context, deviceID string, limit int) ([]DailyUsage, error)
}

// SQLiteUsageRepository implements UsageRepository using SQLite.
type SQLiteUsageRepository struct {
	db *sql.DB
}

// NewSQLiteUsageRepository creates a new SQLite-backed usage repository.
func NewSQLiteUsageRepository(db *sql.DB) *SQLiteUsageRepository {
	return &SQLiteUsageRepository{db: db}
}

// AddUsage adds a kWh slice to a device's total for the given day.
func (r *SQLiteUsageRepository) AddUsage(ctx context.Context, deviceID, day string, kwh, watt float64) error {
	query := `
		INSERT INTO daily_usage (device_id, day, kwh, wattage, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id, day) DO UPDATE SET
			kwh = kwh + excluded.kwh,
			wattage = excluded.wattage,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, deviceID, day, kwh, watt, time.Now().UTC().Unix()); err != nil {
		return fmt.Errorf("adding usage: %w", err)
	}
	return nil
}

// GetDay retrieves a device's total for one day.
func (r *SQLiteUsageRepository) GetDay(ctx context.Context, deviceID, day string) (float64, error) {
	var kwh float64
	err := r.db.QueryRowContext(ctx,
		`SELECT kwh FROM daily_usage WHERE device_id = ? AND day = ?`,
		deviceID, day).Scan(&kwh)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoUsage
	}
	if err != nil {
		return 0, fmt.Errorf("querying usage: %w", err)
	}
	return kwh, nil
}

// ListDays retrieves a device's most recent daily totals, newest first.
func (r *SQLiteUsageRepository) ListDays(ctx context.Context, deviceID string, limit int) ([]DailyUsage, error) {
	if limit < 1 {
		limit = 30
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, day, kwh, wattage, updated_at
		FROM daily_usage
		WHERE device_id = ?
		ORDER BY day DESC
		LIMIT ?`,
		deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying usage days: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var usages []DailyUsage
	for rows.Next() {
		var u DailyUsage
		var updatedAt int64
		if err := rows.Scan(&u.DeviceID, &u.Day, &u.KWh, &u.Watt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		usages = append(usages, u)
	}
	return usages, rows.Err()
}
