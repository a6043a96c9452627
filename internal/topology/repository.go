package topology

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for topology persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetBuilding retrieves a building by ID.
	// Returns ErrBuildingNotFound if the building does not exist.
	GetBuilding(ctx context.Context, id string) (*Building, error)

	// ListBuildings retrieves all buildings.
	ListBuildings(ctx context.Context) ([]Building, error)

	// CreateBuilding inserts a new building.
	// Returns ErrBuildingExists if the ID is already taken.
	CreateBuilding(ctx context.Context, b *Building) error

	// UpdateBuildingMode persists the building's automation mode.
	UpdateBuildingMode(ctx context.Context, id, mode string) error

	// GetLocation retrieves a location by ID.
	// Returns ErrLocationNotFound if the location does not exist.
	GetLocation(ctx context.Context, id string) (*Location, error)

	// ListLocations retrieves all locations.
	ListLocations(ctx context.Context) ([]Location, error)

	// CreateLocation inserts a new location.
	// Returns ErrLocationExists if the ID is already taken.
	CreateLocation(ctx context.Context, l *Location) error

	// GetDevice retrieves a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetDevice(ctx context.Context, id string) (*Device, error)

	// ListDevices retrieves all devices.
	ListDevices(ctx context.Context) ([]Device, error)

	// CreateDevice inserts a new device.
	// Returns ErrDeviceExists if the ID is already taken.
	CreateDevice(ctx context.Context, d *Device) error

	// UpdateDeviceLocation moves a device to a different location.
	UpdateDeviceLocation(ctx context.Context, id, locationID string) error

	// DeleteDevice removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	DeleteDevice(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetBuilding retrieves a building by ID.
func (r *SQLiteRepository) GetBuilding(ctx context.Context, id string) (*Building, error) {
	query := `SELECT id, name, mode, created_at, updated_at FROM buildings WHERE id = ?`

	b, err := scanBuilding(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBuildingNotFound
		}
		return nil, fmt.Errorf("querying building by id: %w", err)
	}
	return b, nil
}

// ListBuildings retrieves all buildings ordered by name.
func (r *SQLiteRepository) ListBuildings(ctx context.Context) ([]Building, error) {
	query := `SELECT id, name, mode, created_at, updated_at FROM buildings ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying buildings: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var buildings []Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning building: %w", err)
		}
		buildings = append(buildings, *b)
	}
	return buildings, rows.Err()
}

// CreateBuilding inserts a new building.
func (r *SQLiteRepository) CreateBuilding(ctx context.Context, b *Building) error {
	query := `
		INSERT INTO buildings (id, name, mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if b.Mode == "" {
		b.Mode = "none"
	}

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Mode, b.CreatedAt.Unix(), b.UpdatedAt.Unix())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrBuildingExists
		}
		return fmt.Errorf("inserting building: %w", err)
	}
	return nil
}

// UpdateBuildingMode persists the building's automation mode.
func (r *SQLiteRepository) UpdateBuildingMode(ctx context.Context, id, mode string) error {
	query := `UPDATE buildings SET mode = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, mode, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("updating building mode: %w", err)
	}
	return checkAffected(result, ErrBuildingNotFound)
}

// GetLocation retrieves a location by ID.
func (r *SQLiteRepository) GetLocation(ctx context.Context, id string) (*Location, error) {
	query := `SELECT id, building_id, name, created_at, updated_at FROM locations WHERE id = ?`

	l, err := scanLocation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("querying location by id: %w", err)
	}
	return l, nil
}

// ListLocations retrieves all locations ordered by name.
func (r *SQLiteRepository) ListLocations(ctx context.Context) ([]Location, error) {
	query := `SELECT id, building_id, name, created_at, updated_at FROM locations ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var locations []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}

// CreateLocation inserts a new location.
func (r *SQLiteRepository) CreateLocation(ctx context.Context, l *Location) error {
	query := `
		INSERT INTO locations (id, building_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.BuildingID, l.Name, l.CreatedAt.Unix(), l.UpdatedAt.Unix())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrLocationExists
		}
		return fmt.Errorf("inserting location: %w", err)
	}
	return nil
}

// GetDevice retrieves a device by ID.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, location_id, name, type, watt, created_at, updated_at
		FROM devices WHERE id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// ListDevices retrieves all devices ordered by name.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	query := `
		SELECT id, location_id, name, type, watt, created_at, updated_at
		FROM devices ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// CreateDevice inserts a new device.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, d *Device) error {
	query := `
		INSERT INTO devices (id, location_id, name, type, watt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.LocationID, d.Name, d.Type, d.Watt, d.CreatedAt.Unix(), d.UpdatedAt.Unix())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// UpdateDeviceLocation moves a device to a different location.
func (r *SQLiteRepository) UpdateDeviceLocation(ctx context.Context, id, locationID string) error {
	query := `UPDATE devices SET location_id = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, locationID, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("updating device location: %w", err)
	}
	return checkAffected(result, ErrDeviceNotFound)
}

// DeleteDevice removes a device by ID.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, id string) error {
	query := `DELETE FROM devices WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return checkAffected(result, ErrDeviceNotFound)
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuilding(row rowScanner) (*Building, error) {
	var b Building
	var createdAt, updatedAt int64

	if err := row.Scan(&b.ID, &b.Name, &b.Mode, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &b, nil
}

func scanLocation(row rowScanner) (*Location, error) {
	var l Location
	var createdAt, updatedAt int64

	if err := row.Scan(&l.ID, &l.BuildingID, &l.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	l.CreatedAt = time.Unix(createdAt, 0).UTC()
	l.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &l, nil
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var createdAt, updatedAt int64

	if err := row.Scan(&d.ID, &d.LocationID, &d.Name, &d.Type, &d.Watt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &d, nil
}

func checkAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
