package topology

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Directory.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MembershipSink receives notifications when a device enters or leaves a
// building's membership. The automation engine registers here so the active
// building mode is applied to hot-plugged and relocated devices.
type MembershipSink interface {
	// DeviceJoined is called after a device becomes part of a building,
	// either by integration or relocation.
	DeviceJoined(buildingID string, device Device)

	// DeviceLeft is called after a device stops being part of a building.
	DeviceLeft(buildingID, deviceID string)
}

// Directory provides hierarchy management with caching and thread safety.
// It wraps a Repository and adds an in-memory index for fast resolution.
//
// The cache is populated on startup via Load() and kept in sync by
// cache-updating operations.
//
// All public methods are thread-safe.
type Directory struct {
	repo Repository

	mu        sync.RWMutex
	buildings map[string]*Building
	locations map[string]*Location
	devices   map[string]*Device

	sink   MembershipSink
	logger Logger
}

// NewDirectory creates a new topology directory.
// The repository is used for persistence; the directory adds caching.
func NewDirectory(repo Repository) *Directory {
	return &Directory{
		repo:      repo,
		buildings: make(map[string]*Building),
		locations: make(map[string]*Location),
		devices:   make(map[string]*Device),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the directory.
func (d *Directory) SetLogger(logger Logger) {
	d.logger = logger
}

// SetMembershipSink registers the sink notified on membership changes.
// Must be called before Integrate/Relocate/Remove operations begin.
func (d *Directory) SetMembershipSink(sink MembershipSink) {
	d.sink = sink
}

// Load reloads the full hierarchy from the repository into the cache.
// This should be called on application startup.
func (d *Directory) Load(ctx context.Context) error {
	buildings, err := d.repo.ListBuildings(ctx)
	if err != nil {
		return fmt.Errorf("loading buildings: %w", err)
	}
	locations, err := d.repo.ListLocations(ctx)
	if err != nil {
		return fmt.Errorf("loading locations: %w", err)
	}
	devices, err := d.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.buildings = make(map[string]*Building, len(buildings))
	for i := range buildings {
		b := buildings[i]
		d.buildings[b.ID] = b.DeepCopy()
	}
	d.locations = make(map[string]*Location, len(locations))
	for i := range locations {
		l := locations[i]
		d.locations[l.ID] = l.DeepCopy()
	}
	d.devices = make(map[string]*Device, len(devices))
	for i := range devices {
		dev := devices[i]
		d.devices[dev.ID] = dev.DeepCopy()
	}

	d.logger.Info("topology loaded",
		"buildings", len(buildings),
		"locations", len(locations),
		"devices", len(devices))
	return nil
}

// ResolveBuilding traces a device to its owning building.
// Returns ErrUnresolved if the device is unknown or any link in the chain
// is dangling; callers must refuse automation decisions in that case.
func (d *Directory) ResolveBuilding(deviceID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.resolveLocked(deviceID)
}

// resolveLocked walks device → location → building. Caller holds d.mu.
func (d *Directory) resolveLocked(deviceID string) (string, error) {
	dev, ok := d.devices[deviceID]
	if !ok {
		return "", fmt.Errorf("%w: unknown device %q", ErrUnresolved, deviceID)
	}
	loc, ok := d.locations[dev.LocationID]
	if !ok {
		return "", fmt.Errorf("%w: device %q references missing location %q",
			ErrUnresolved, deviceID, dev.LocationID)
	}
	if _, ok := d.buildings[loc.BuildingID]; !ok {
		return "", fmt.Errorf("%w: location %q references missing building %q",
			ErrUnresolved, loc.ID, loc.BuildingID)
	}
	return loc.BuildingID, nil
}

// GetDevice retrieves a device by ID.
// The returned device is a deep copy; callers can safely modify it.
func (d *Directory) GetDevice(id string) (*Device, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dev, ok := d.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev.DeepCopy(), nil
}

// GetBuilding retrieves a building by ID.
// The returned building is a deep copy; callers can safely modify it.
func (d *Directory) GetBuilding(id string) (*Building, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.buildings[id]
	if !ok {
		return nil, ErrBuildingNotFound
	}
	return b.DeepCopy(), nil
}

// GetLocation retrieves a location by ID.
// The returned location is a deep copy; callers can safely modify it.
func (d *Directory) GetLocation(id string) (*Location, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	l, ok := d.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return l.DeepCopy(), nil
}

// ListDevices retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (d *Directory) ListDevices() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	devices := make([]Device, 0, len(d.devices))
	for _, dev := range d.devices {
		devices = append(devices, *dev.DeepCopy())
	}
	return devices
}

// ListBuildings retrieves all buildings.
// The returned buildings are deep copies; callers can safely modify them.
func (d *Directory) ListBuildings() []Building {
	d.mu.RLock()
	defer d.mu.RUnlock()

	buildings := make([]Building, 0, len(d.buildings))
	for _, b := range d.buildings {
		buildings = append(buildings, *b.DeepCopy())
	}
	return buildings
}

// ListLocations retrieves all locations.
// The returned locations are deep copies; callers can safely modify them.
func (d *Directory) ListLocations() []Location {
	d.mu.RLock()
	defer d.mu.RUnlock()

	locations := make([]Location, 0, len(d.locations))
	for _, l := range d.locations {
		locations = append(locations, *l.DeepCopy())
	}
	return locations
}

// DevicesInBuilding retrieves all resolvable devices in a building.
// Dangling devices are skipped, not reported.
func (d *Directory) DevicesInBuilding(buildingID string) []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var devices []Device
	for id, dev := range d.devices {
		if owner, err := d.resolveLocked(id); err == nil && owner == buildingID {
			devices = append(devices, *dev.DeepCopy())
		}
	}
	return devices
}

// IntegrateBuilding registers a new building at runtime.
// It validates, generates an ID if needed, persists, and caches.
func (d *Directory) IntegrateBuilding(ctx context.Context, b *Building) error {
	if b.ID == "" {
		b.ID = GenerateID()
	}
	if b.Mode == "" {
		b.Mode = "none"
	}
	if err := ValidateBuilding(b); err != nil {
		return err
	}

	if err := d.repo.CreateBuilding(ctx, b); err != nil {
		return err
	}

	d.mu.Lock()
	d.buildings[b.ID] = b.DeepCopy()
	d.mu.Unlock()

	d.logger.Info("building integrated", "id", b.ID, "name", b.Name)
	return nil
}

// IntegrateLocation registers a new location at runtime.
// The parent building must already be known.
func (d *Directory) IntegrateLocation(ctx context.Context, l *Location) error {
	if l.ID == "" {
		l.ID = GenerateID()
	}
	if err := ValidateLocation(l); err != nil {
		return err
	}

	d.mu.RLock()
	_, ok := d.buildings[l.BuildingID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrBuildingNotFound, l.BuildingID)
	}

	if err := d.repo.CreateLocation(ctx, l); err != nil {
		return err
	}

	d.mu.Lock()
	d.locations[l.ID] = l.DeepCopy()
	d.mu.Unlock()

	d.logger.Info("location integrated", "id", l.ID, "name", l.Name, "building", l.BuildingID)
	return nil
}

// IntegrateDevice registers a new device at runtime (hot-plug).
// The parent location must already be known. The membership sink is
// notified after the device is cached, so the active building mode is
// applied to the newcomer.
func (d *Directory) IntegrateDevice(ctx context.Context, dev *Device) error {
	if dev.ID == "" {
		dev.ID = GenerateID()
	}
	if err := ValidateDevice(dev); err != nil {
		return err
	}

	d.mu.RLock()
	loc, ok := d.locations[dev.LocationID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrLocationNotFound, dev.LocationID)
	}

	if err := d.repo.CreateDevice(ctx, dev); err != nil {
		return err
	}

	d.mu.Lock()
	d.devices[dev.ID] = dev.DeepCopy()
	d.mu.Unlock()

	d.logger.Info("device integrated", "id", dev.ID, "name", dev.Name, "location", dev.LocationID)

	if d.sink != nil {
		d.sink.DeviceJoined(loc.BuildingID, *dev.DeepCopy())
	}
	return nil
}

// RelocateDevice moves a device to a different location at runtime.
// If the owning building changes, the sink sees a leave from the old
// building followed by a join into the new one.
func (d *Directory) RelocateDevice(ctx context.Context, deviceID, locationID string) error {
	d.mu.RLock()
	if _, ok := d.devices[deviceID]; !ok {
		d.mu.RUnlock()
		return ErrDeviceNotFound
	}
	newLoc, ok := d.locations[locationID]
	if !ok {
		d.mu.RUnlock()
		return fmt.Errorf("%w: %q", ErrLocationNotFound, locationID)
	}
	oldBuilding, _ := d.resolveLocked(deviceID)
	d.mu.RUnlock()

	if err := d.repo.UpdateDeviceLocation(ctx, deviceID, locationID); err != nil {
		return err
	}

	d.mu.Lock()
	updated := d.devices[deviceID].DeepCopy()
	updated.LocationID = locationID
	d.devices[deviceID] = updated
	d.mu.Unlock()

	d.logger.Info("device relocated", "id", deviceID, "location", locationID)

	if d.sink != nil && oldBuilding != newLoc.BuildingID {
		if oldBuilding != "" {
			d.sink.DeviceLeft(oldBuilding, deviceID)
		}
		d.sink.DeviceJoined(newLoc.BuildingID, *updated.DeepCopy())
	}
	return nil
}

// RemoveDevice unregisters a device at runtime.
func (d *Directory) RemoveDevice(ctx context.Context, deviceID string) error {
	d.mu.RLock()
	_, ok := d.devices[deviceID]
	oldBuilding, _ := d.resolveLocked(deviceID)
	d.mu.RUnlock()
	if !ok {
		return ErrDeviceNotFound
	}

	if err := d.repo.DeleteDevice(ctx, deviceID); err != nil {
		return err
	}

	d.mu.Lock()
	delete(d.devices, deviceID)
	d.mu.Unlock()

	d.logger.Info("device removed", "id", deviceID)

	if d.sink != nil && oldBuilding != "" {
		d.sink.DeviceLeft(oldBuilding, deviceID)
	}
	return nil
}

// SetBuildingMode persists and caches the building's automation mode.
// Called by the automation engine after a successful transition so
// restarts recover the active mode.
func (d *Directory) SetBuildingMode(ctx context.Context, buildingID, mode string) error {
	if err := d.repo.UpdateBuildingMode(ctx, buildingID, mode); err != nil {
		return err
	}

	d.mu.Lock()
	if b, ok := d.buildings[buildingID]; ok {
		updated := b.DeepCopy()
		updated.Mode = mode
		d.buildings[buildingID] = updated
	}
	d.mu.Unlock()

	d.logger.Debug("building mode persisted", "building", buildingID, "mode", mode)
	return nil
}

// DeviceCount returns the number of cached devices.
func (d *Directory) DeviceCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.devices)
}
