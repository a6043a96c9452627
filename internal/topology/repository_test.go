package topology

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the topology tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE buildings (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT 'none',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE locations (
			id TEXT PRIMARY KEY,
			building_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			watt REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSQLiteRepository_BuildingRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	b := &Building{ID: "bld-1", Name: "Home"}
	if err := repo.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("CreateBuilding() error = %v", err)
	}

	got, err := repo.GetBuilding(ctx, "bld-1")
	if err != nil {
		t.Fatalf("GetBuilding() error = %v", err)
	}
	if got.Name != "Home" {
		t.Errorf("Name = %q, want %q", got.Name, "Home")
	}
	if got.Mode != "none" {
		t.Errorf("Mode = %q, want default %q", got.Mode, "none")
	}
}

func TestSQLiteRepository_BuildingDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	b := &Building{ID: "bld-1", Name: "Home"}
	if err := repo.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("CreateBuilding() error = %v", err)
	}
	if err := repo.CreateBuilding(ctx, b); !errors.Is(err, ErrBuildingExists) {
		t.Errorf("CreateBuilding() duplicate error = %v, want ErrBuildingExists", err)
	}
}

func TestSQLiteRepository_UpdateBuildingMode(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.CreateBuilding(ctx, &Building{ID: "bld-1", Name: "Home"}); err != nil {
		t.Fatalf("CreateBuilding() error = %v", err)
	}

	if err := repo.UpdateBuildingMode(ctx, "bld-1", "eco"); err != nil {
		t.Fatalf("UpdateBuildingMode() error = %v", err)
	}

	got, _ := repo.GetBuilding(ctx, "bld-1")
	if got.Mode != "eco" {
		t.Errorf("Mode = %q, want %q", got.Mode, "eco")
	}

	if err := repo.UpdateBuildingMode(ctx, "missing", "eco"); !errors.Is(err, ErrBuildingNotFound) {
		t.Errorf("UpdateBuildingMode() missing error = %v, want ErrBuildingNotFound", err)
	}
}

func TestSQLiteRepository_DeviceLifecycle(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := &Device{ID: "dev-1", LocationID: "loc-1", Name: "Lamp", Type: "Light", Watt: 40}
	if err := repo.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	got, err := repo.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Watt != 40 {
		t.Errorf("Watt = %g, want 40", got.Watt)
	}

	if err := repo.UpdateDeviceLocation(ctx, "dev-1", "loc-2"); err != nil {
		t.Fatalf("UpdateDeviceLocation() error = %v", err)
	}
	got, _ = repo.GetDevice(ctx, "dev-1")
	if got.LocationID != "loc-2" {
		t.Errorf("LocationID = %q, want %q", got.LocationID, "loc-2")
	}

	if err := repo.DeleteDevice(ctx, "dev-1"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if _, err := repo.GetDevice(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() after delete error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.DeleteDevice(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("DeleteDevice() twice error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_ListOrdering(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	repo.CreateDevice(ctx, &Device{ID: "b", LocationID: "loc-1", Name: "Zeta", Type: "Fan"})
	repo.CreateDevice(ctx, &Device{ID: "a", LocationID: "loc-1", Name: "Alpha", Type: "Light"})

	devices, err := repo.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("ListDevices() returned %d devices, want 2", len(devices))
	}
	if devices[0].Name != "Alpha" {
		t.Errorf("first device = %q, want name ordering", devices[0].Name)
	}
}
