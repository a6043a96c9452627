package energy

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

func TestKWh(t *testing.T) {
	tests := []struct {
		name string
		watt float64
		d    time.Duration
		want float64
	}{
		{"60W for an hour", 60, time.Hour, 0.06},
		{"900W for 3 minutes", 900, 3 * time.Minute, 0.045},
		{"40W for 10 seconds", 40, 10 * time.Second, 0.000111},
		{"zero duration", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KWh(tt.watt, tt.d); got != tt.want {
				t.Errorf("KWh(%g, %v) = %g, want %g", tt.watt, tt.d, got, tt.want)
			}
		})
	}
}

// mockLookup resolves one device.
type mockLookup struct {
	device *topology.Device
}

func (m *mockLookup) GetDevice(id string) (*topology.Device, error) {
	if m.device != nil && m.device.ID == id {
		cpy := *m.device
		return &cpy, nil
	}
	return nil, topology.ErrDeviceNotFound
}

func (m *mockLookup) ResolveBuilding(string) (string, error) {
	return "bld-1", nil
}

// mockUsage accumulates slices in memory.
type mockUsage struct {
	mu     sync.Mutex
	totals map[string]float64 // "deviceID/day" -> kwh
	watts  map[string]float64 // "deviceID/day" -> rated wattage
	writes int
}

func newMockUsage() *mockUsage {
	return &mockUsage{
		totals: make(map[string]float64),
		watts:  make(map[string]float64),
	}
}

func (m *mockUsage) AddUsage(_ context.Context, deviceID, day string, kwh, watt float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[deviceID+"/"+day] += kwh
	m.watts[deviceID+"/"+day] = watt
	m.writes++
	return nil
}

func (m *mockUsage) GetDay(_ context.Context, deviceID, day string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kwh, ok := m.totals[deviceID+"/"+day]; ok {
		return kwh, nil
	}
	return 0, ErrNoUsage
}

func (m *mockUsage) ListDays(context.Context, string, int) ([]DailyUsage, error) {
	return nil, nil
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupAccruer(t *testing.T, watt float64) (*Accruer, *mockUsage, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)}
	usage := newMockUsage()
	lookup := &mockLookup{device: &topology.Device{ID: "dev-1", Watt: watt, Type: "AC"}}

	a := NewAccruer(lookup, usage, nil, 10*time.Second, 3*time.Minute)
	a.now = clock.Now
	return a, usage, clock
}

func TestAccruer_OnOffWritesSlice(t *testing.T) {
	a, usage, clock := setupAccruer(t, 900)

	a.DeviceOn("dev-1")
	clock.Advance(3 * time.Minute)
	a.DeviceOff("dev-1")

	got, err := usage.GetDay(context.Background(), "dev-1", "2026-08-20")
	if err != nil {
		t.Fatalf("GetDay() error = %v", err)
	}
	// 900W for 3 minutes = 0.045 kWh.
	if got != 0.045 {
		t.Errorf("daily total = %g, want 0.045", got)
	}
	if w := usage.watts["dev-1/2026-08-20"]; w != 900 {
		t.Errorf("recorded wattage = %g, want 900", w)
	}
	if len(a.Running()) != 0 {
		t.Errorf("Running() = %v, want empty after off", a.Running())
	}
}

func TestAccruer_PeriodicFlush(t *testing.T) {
	a, usage, clock := setupAccruer(t, 1000)
	ctx := context.Background()

	a.DeviceOn("dev-1")

	// First poll before the flush interval: nothing written.
	clock.Advance(time.Minute)
	a.flushDue(ctx)
	if usage.writes != 0 {
		t.Errorf("writes = %d before flush interval, want 0", usage.writes)
	}

	// Reach the flush interval.
	clock.Advance(2 * time.Minute)
	a.flushDue(ctx)
	if usage.writes != 1 {
		t.Fatalf("writes = %d after flush interval, want 1", usage.writes)
	}

	// Another interval, then off: total covers the full six minutes.
	clock.Advance(3 * time.Minute)
	a.DeviceOff("dev-1")

	got, _ := usage.GetDay(ctx, "dev-1", "2026-08-20")
	if got != 0.1 {
		t.Errorf("daily total = %g, want 0.1 for 1000W over 6 minutes", got)
	}
}

func TestAccruer_ZeroWattSkipped(t *testing.T) {
	a, usage, clock := setupAccruer(t, 0)

	a.DeviceOn("dev-1")
	if len(a.Running()) != 0 {
		t.Error("zero-watt device started a run")
	}

	clock.Advance(time.Hour)
	a.DeviceOff("dev-1")
	if usage.writes != 0 {
		t.Errorf("writes = %d for zero-watt device, want 0", usage.writes)
	}
}

func TestAccruer_DuplicateOnIgnored(t *testing.T) {
	a, usage, clock := setupAccruer(t, 600)

	a.DeviceOn("dev-1")
	clock.Advance(time.Minute)
	// Second ON must not reset the slice start.
	a.DeviceOn("dev-1")
	clock.Advance(time.Minute)
	a.DeviceOff("dev-1")

	got, _ := usage.GetDay(context.Background(), "dev-1", "2026-08-20")
	// 600W over the full 2 minutes = 0.02 kWh.
	if got != 0.02 {
		t.Errorf("daily total = %g, want 0.02", got)
	}
}

func TestAccruer_OffWithoutOn(t *testing.T) {
	a, usage, _ := setupAccruer(t, 600)

	a.DeviceOff("dev-1")
	if usage.writes != 0 {
		t.Errorf("writes = %d for off-without-on, want 0", usage.writes)
	}
}

func TestAccruer_FlushAllKeepsRuns(t *testing.T) {
	a, usage, clock := setupAccruer(t, 1200)
	ctx := context.Background()

	a.DeviceOn("dev-1")
	clock.Advance(5 * time.Minute)
	a.FlushAll(ctx)

	if usage.writes != 1 {
		t.Fatalf("writes = %d after FlushAll, want 1", usage.writes)
	}
	if len(a.Running()) != 1 {
		t.Error("FlushAll ended the run")
	}

	got, _ := usage.GetDay(ctx, "dev-1", "2026-08-20")
	if got != 0.1 {
		t.Errorf("daily total = %g, want 0.1 for 1200W over 5 minutes", got)
	}
}

// setupUsageDB creates an in-memory SQLite database with the usage table.
func setupUsageDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	schema := `
		CREATE TABLE daily_usage (
			device_id TEXT NOT NULL,
			day TEXT NOT NULL,
			kwh REAL NOT NULL DEFAULT 0,
			wattage REAL NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (device_id, day)
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

func TestSQLiteUsageRepository_Accumulates(t *testing.T) {
	repo := NewSQLiteUsageRepository(setupUsageDB(t))
	ctx := context.Background()

	if err := repo.AddUsage(ctx, "dev-1", "2026-08-20", 0.05, 900); err != nil {
		t.Fatalf("AddUsage() error = %v", err)
	}
	if err := repo.AddUsage(ctx, "dev-1", "2026-08-20", 0.03, 900); err != nil {
		t.Fatalf("AddUsage() error = %v", err)
	}

	got, err := repo.GetDay(ctx, "dev-1", "2026-08-20")
	if err != nil {
		t.Fatalf("GetDay() error = %v", err)
	}
	if got != 0.08 {
		t.Errorf("GetDay() = %g, want 0.08", got)
	}
}

func TestSQLiteUsageRepository_NoUsage(t *testing.T) {
	repo := NewSQLiteUsageRepository(setupUsageDB(t))

	_, err := repo.GetDay(context.Background(), "dev-1", "2026-08-20")
	if !errors.Is(err, ErrNoUsage) {
		t.Errorf("GetDay() error = %v, want ErrNoUsage", err)
	}
}

func TestSQLiteUsageRepository_ListDays(t *testing.T) {
	repo := NewSQLiteUsageRepository(setupUsageDB(t))
	ctx := context.Background()

	repo.AddUsage(ctx, "dev-1", "2026-08-19", 0.5, 600)
	repo.AddUsage(ctx, "dev-1", "2026-08-20", 0.7, 600)
	repo.AddUsage(ctx, "dev-2", "2026-08-20", 0.1, 40)

	days, err := repo.ListDays(ctx, "dev-1", 10)
	if err != nil {
		t.Fatalf("ListDays() error = %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("ListDays() returned %d rows, want 2", len(days))
	}
	if days[0].Day != "2026-08-20" {
		t.Errorf("first day = %q, want newest first", days[0].Day)
	}
	if days[0].Watt != 600 {
		t.Errorf("wattage = %g, want 600", days[0].Watt)
	}
}
