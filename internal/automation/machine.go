package automation

import (
	"context"
	"sync"

	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// Logger defines the logging interface used by the StateMachine.
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

// Switcher drives devices OFF on behalf of mode transitions.
// The actuator implements this; forced switches bypass Authorize because
// the state machine already holds the building lock when it calls them.
type Switcher interface {
	// ForceOff drives a device OFF. Best effort: an offline device is an
	// error to log, not a reason to abort the transition.
	ForceOff(ctx context.Context, deviceID string) error
}

// LockPublisher mirrors lock flags to the shared real-time store so
// controllers and remote clients see which devices a mode holds OFF.
type LockPublisher interface {
	PublishLocked(deviceID string, locked bool) error
}

// Directory is the slice of the topology directory the state machine needs.
type Directory interface {
	ResolveBuilding(deviceID string) (string, error)
	DevicesInBuilding(buildingID string) []topology.Device
	ListBuildings() []topology.Building
	SetBuildingMode(ctx context.Context, buildingID, mode string) error
}

// buildingState is the serialization point for one building.
// Every automation decision for the building runs under mu.
type buildingState struct {
	mu     sync.Mutex
	mode   Mode
	locked map[string]bool
}

// StateMachine owns the per-building mode and lock sets.
//
// Thread Safety: all public methods are safe for concurrent use. Decisions
// for distinct buildings proceed in parallel; decisions for one building are
// serialized through its mutex.
type StateMachine struct {
	dir      Directory
	switcher Switcher
	locks    LockPublisher
	policy   Policy

	mu        sync.Mutex
	buildings map[string]*buildingState

	logger Logger
}

// NewStateMachine creates a state machine over the given directory.
// The switcher must be set via SetSwitcher before the first transition;
// it is injected late to break the actuator/automation construction cycle.
func NewStateMachine(dir Directory, locks LockPublisher, policy Policy) *StateMachine {
	return &StateMachine{
		dir:       dir,
		locks:     locks,
		policy:    policy,
		buildings: make(map[string]*buildingState),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the state machine.
func (m *StateMachine) SetLogger(logger Logger) {
	m.logger = logger
}

// SetSwitcher injects the device switcher.
func (m *StateMachine) SetSwitcher(s Switcher) {
	m.switcher = s
}

// state returns the building's state entry, creating it lazily in ModeNone.
func (m *StateMachine) state(buildingID string) *buildingState {
	m.mu.Lock()
	defer m.mu.Unlock()

	bs, ok := m.buildings[buildingID]
	if !ok {
		bs = &buildingState{mode: ModeNone, locked: make(map[string]bool)}
		m.buildings[buildingID] = bs
	}
	return bs
}

// Apply transitions a building to the given mode.
//
// The new lock set replaces the old one atomically. Lockdown forces every
// member OFF, flags it, and keeps it in the lock set. Eco and night force
// their affected types OFF without locking, so the lock set ends up empty;
// previously locked devices are unflagged. The resulting mode is persisted
// so restarts recover it.
//
// Forced switches and flag publishes are best effort; failures are logged
// and the transition completes regardless.
func (m *StateMachine) Apply(ctx context.Context, buildingID string, mode Mode) error {
	bs := m.state(buildingID)
	bs.mu.Lock()
	defer bs.mu.Unlock()

	locks := m.policy.Locks(mode)
	newLocked := make(map[string]bool)
	forced := 0
	for _, dev := range m.dir.DevicesInBuilding(buildingID) {
		if !m.policy.ForcesOff(mode, dev.Type) {
			continue
		}
		forced++
		if m.switcher != nil {
			if err := m.switcher.ForceOff(ctx, dev.ID); err != nil {
				m.logger.Warn("forced off failed", "device", dev.ID, "error", err)
			}
		}
		if locks {
			newLocked[dev.ID] = true
			if err := m.locks.PublishLocked(dev.ID, true); err != nil {
				m.logger.Warn("lock flag publish failed", "device", dev.ID, "error", err)
			}
		}
	}
	for id := range bs.locked {
		if !newLocked[id] {
			if err := m.locks.PublishLocked(id, false); err != nil {
				m.logger.Warn("unlock flag publish failed", "device", id, "error", err)
			}
		}
	}

	prev := bs.mode
	bs.mode = mode
	bs.locked = newLocked

	if err := m.dir.SetBuildingMode(ctx, buildingID, mode.String()); err != nil {
		m.logger.Error("persisting building mode failed",
			"building", buildingID, "mode", mode, "error", err)
	}

	m.logger.Info("building mode applied", "building", buildingID,
		"from", prev, "to", mode, "forced", forced, "locked", len(newLocked))
	return nil
}

// Authorize checks whether a device may be switched ON right now.
//
// On success it returns a release function and holds the building lock until
// release is called, so the caller's switch cannot interleave with a mode
// transition. Callers must release promptly.
//
// Returns topology.ErrUnresolved (wrapped) for dangling devices and
// ErrBlocked when the active mode holds the device OFF.
func (m *StateMachine) Authorize(deviceID string) (release func(), err error) {
	buildingID, err := m.dir.ResolveBuilding(deviceID)
	if err != nil {
		return nil, err
	}

	bs := m.state(buildingID)
	bs.mu.Lock()
	if bs.locked[deviceID] {
		bs.mu.Unlock()
		return nil, ErrBlocked
	}

	var once sync.Once
	return func() {
		once.Do(bs.mu.Unlock)
	}, nil
}

// ModeOf returns the building's current mode.
func (m *StateMachine) ModeOf(buildingID string) Mode {
	bs := m.state(buildingID)
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.mode
}

// IsLocked reports whether the active mode holds the device OFF.
func (m *StateMachine) IsLocked(deviceID string) bool {
	buildingID, err := m.dir.ResolveBuilding(deviceID)
	if err != nil {
		return false
	}
	bs := m.state(buildingID)
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.locked[deviceID]
}

// LockedDevices returns the IDs currently locked in a building.
func (m *StateMachine) LockedDevices(buildingID string) []string {
	bs := m.state(buildingID)
	bs.mu.Lock()
	defer bs.mu.Unlock()

	ids := make([]string, 0, len(bs.locked))
	for id := range bs.locked {
		ids = append(ids, id)
	}
	return ids
}

// DeviceJoined implements topology.MembershipSink. A device joining a
// building under an active mode is immediately subjected to its policy.
func (m *StateMachine) DeviceJoined(buildingID string, device topology.Device) {
	bs := m.state(buildingID)
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !m.policy.ForcesOff(bs.mode, device.Type) {
		return
	}

	if m.switcher != nil {
		if err := m.switcher.ForceOff(context.Background(), device.ID); err != nil {
			m.logger.Warn("forced off failed on join", "device", device.ID, "error", err)
		}
	}
	if m.policy.Locks(bs.mode) {
		bs.locked[device.ID] = true
		if err := m.locks.PublishLocked(device.ID, true); err != nil {
			m.logger.Warn("lock flag publish failed on join", "device", device.ID, "error", err)
		}
	}
	m.logger.Info("joined device subjected to mode",
		"building", buildingID, "device", device.ID, "mode", bs.mode)
}

// DeviceLeft implements topology.MembershipSink. A device leaving a building
// sheds that building's lock.
func (m *StateMachine) DeviceLeft(buildingID, deviceID string) {
	bs := m.state(buildingID)
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.locked[deviceID] {
		return
	}
	delete(bs.locked, deviceID)
	if err := m.locks.PublishLocked(deviceID, false); err != nil {
		m.logger.Warn("unlock flag publish failed on leave", "device", deviceID, "error", err)
	}
}

// Freeze clears every building's in-memory mode and lock set. The stored
// automation documents are left untouched: recovery recomputes state from
// them, so the mode in force before the outage survives it.
// Called by the connectivity guard when the shared store goes unreachable;
// flag publishes are best effort since the store may be the failed party.
func (m *StateMachine) Freeze(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.buildings))
	for id := range m.buildings {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, buildingID := range ids {
		bs := m.state(buildingID)
		bs.mu.Lock()
		for id := range bs.locked {
			if err := m.locks.PublishLocked(id, false); err != nil {
				m.logger.Debug("unlock flag publish failed during freeze", "device", id, "error", err)
			}
		}
		bs.mode = ModeNone
		bs.locked = make(map[string]bool)
		bs.mu.Unlock()
	}
	m.logger.Info("automation frozen", "buildings", len(ids))
}

// Resync re-applies every building's persisted mode, republishing the full
// lock state. Called at startup and after connectivity recovery.
func (m *StateMachine) Resync(ctx context.Context) {
	for _, b := range m.dir.ListBuildings() {
		mode, err := ParseMode(b.Mode)
		if err != nil {
			m.logger.Warn("persisted mode unknown, treating as none", "building", b.ID, "mode", b.Mode)
			mode = ModeNone
		}
		if err := m.Apply(ctx, b.ID, mode); err != nil {
			m.logger.Error("resync apply failed", "building", b.ID, "error", err)
		}
	}
}
