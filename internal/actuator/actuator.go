package actuator

import (
	"context"
	"fmt"
	"sync"

	"github.com/yasrizalhakim/SISEOA/internal/event"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// Logger defines the logging interface used by the Actuator.
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

// Authorizer gates ON switches with the building's automation policy.
// The returned release function holds the building lock; the actuator calls
// it once the switch has completed, so mode transitions cannot interleave.
type Authorizer interface {
	Authorize(deviceID string) (release func(), err error)
}

// Devices is the slice of the topology directory the actuator needs.
type Devices interface {
	GetDevice(id string) (*topology.Device, error)
}

// Channel drives the physical layer: the command topic controllers
// subscribe to and the retained status topic everyone reads.
type Channel interface {
	PublishChannel(deviceID, action string) error
	PublishStatus(deviceID, status string) error
}

// Accruer is notified of confirmed ON/OFF transitions so running devices
// accumulate energy.
type Accruer interface {
	DeviceOn(deviceID string)
	DeviceOff(deviceID string)
}

// Recorder appends to the bounded switch event log.
// event.Repository satisfies this.
type Recorder interface {
	Record(ctx context.Context, e *event.Event) error
}

// Telemetry receives switch events for the time-series sink. May be nil.
type Telemetry interface {
	WriteSwitchEvent(deviceID, action, source string)
}

// Actuator is the single owner of device ON/OFF state.
//
// Thread Safety: all public methods are safe for concurrent use. Per-device
// state lives behind one mutex; the heavier per-building serialization is
// the Authorizer's job.
type Actuator struct {
	devices   Devices
	auth      Authorizer
	channel   Channel
	accruer   Accruer
	recorder  Recorder
	telemetry Telemetry

	mu     sync.RWMutex
	status map[string]string // deviceID -> ON/OFF, last confirmed state
	online map[string]bool   // deviceID -> controller reachability

	logger Logger
}

// New creates an actuator. telemetry may be nil when InfluxDB is disabled.
func New(devices Devices, auth Authorizer, channel Channel, accruer Accruer, recorder Recorder, telemetry Telemetry) *Actuator {
	return &Actuator{
		devices:   devices,
		auth:      auth,
		channel:   channel,
		accruer:   accruer,
		recorder:  recorder,
		telemetry: telemetry,
		status:    make(map[string]string),
		online:    make(map[string]bool),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the actuator.
func (a *Actuator) SetLogger(logger Logger) {
	a.logger = logger
}

// Switch drives a device to the requested state on behalf of source.
//
// ON requests are authorized against the building mode first; a blocked or
// unresolvable device returns the authorization error untouched, so callers
// can distinguish automation.ErrBlocked from topology.ErrUnresolved.
// Requests for the state the device is already in are no-ops: no command,
// no event.
//
// Returns:
//   - ErrUnknownAction for actions other than ON and OFF
//   - topology.ErrDeviceNotFound for unknown devices
//   - ErrDeviceOffline when the controller is unreachable
func (a *Actuator) Switch(ctx context.Context, deviceID, action, source string) error {
	if !event.ValidAction(action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if _, err := a.devices.GetDevice(deviceID); err != nil {
		return err
	}

	if action == event.ActionOn {
		release, err := a.auth.Authorize(deviceID)
		if err != nil {
			return err
		}
		defer release()
	}

	return a.drive(ctx, deviceID, action, source)
}

// ForceOff drives a device OFF on behalf of a mode transition.
// No authorization: the caller (the state machine) already holds the
// building lock. Implements automation.Switcher.
func (a *Actuator) ForceOff(ctx context.Context, deviceID string) error {
	if _, err := a.devices.GetDevice(deviceID); err != nil {
		return err
	}
	return a.drive(ctx, deviceID, event.ActionOff, event.SourceMode)
}

// drive performs the actual transition once all gates have passed.
func (a *Actuator) drive(ctx context.Context, deviceID, action, source string) error {
	a.mu.Lock()
	if !a.online[deviceID] {
		a.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceOffline, deviceID)
	}
	if a.status[deviceID] == action {
		a.mu.Unlock()
		return nil
	}
	prev, hadPrev := a.status[deviceID]
	a.status[deviceID] = action
	a.mu.Unlock()

	if err := a.channel.PublishChannel(deviceID, action); err != nil {
		// The device never got the command; restore the cached status so a
		// retry is not swallowed by the no-op check above.
		a.mu.Lock()
		if a.status[deviceID] == action {
			if hadPrev {
				a.status[deviceID] = prev
			} else {
				delete(a.status, deviceID)
			}
		}
		a.mu.Unlock()
		return fmt.Errorf("publishing channel command: %w", err)
	}
	if err := a.channel.PublishStatus(deviceID, action); err != nil {
		a.logger.Warn("status publish failed", "device", deviceID, "error", err)
	}

	a.finishTransition(ctx, deviceID, action, source)
	return nil
}

// ObserveLocal records a switch the controller performed on its own
// (physical button, local schedule). The channel is not driven; the
// retained status is already correct because the controller published it.
func (a *Actuator) ObserveLocal(ctx context.Context, deviceID, action string) error {
	if !event.ValidAction(action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	a.mu.Lock()
	a.online[deviceID] = true
	if a.status[deviceID] == action {
		a.mu.Unlock()
		return nil
	}
	a.status[deviceID] = action
	a.mu.Unlock()

	a.finishTransition(ctx, deviceID, action, event.SourceLocal)
	return nil
}

// finishTransition records the event and updates accrual and telemetry.
func (a *Actuator) finishTransition(ctx context.Context, deviceID, action, source string) {
	e := &event.Event{DeviceID: deviceID, Action: action, Source: source}
	if err := a.recorder.Record(ctx, e); err != nil {
		a.logger.Error("event record failed", "device", deviceID, "action", action, "error", err)
	}

	if a.accruer != nil {
		if action == event.ActionOn {
			a.accruer.DeviceOn(deviceID)
		} else {
			a.accruer.DeviceOff(deviceID)
		}
	}
	if a.telemetry != nil {
		a.telemetry.WriteSwitchEvent(deviceID, action, source)
	}

	a.logger.Info("device switched", "device", deviceID, "action", action, "source", source)
}

// SetOnline updates a controller's reachability. A device going offline
// while ON stops accruing energy.
func (a *Actuator) SetOnline(deviceID string, online bool) {
	a.mu.Lock()
	wasOn := a.status[deviceID] == event.ActionOn
	a.online[deviceID] = online
	if !online {
		delete(a.status, deviceID)
	}
	a.mu.Unlock()

	if !online && wasOn && a.accruer != nil {
		a.accruer.DeviceOff(deviceID)
	}
	a.logger.Debug("device reachability changed", "device", deviceID, "online", online)
}

// IsOnline reports controller reachability.
func (a *Actuator) IsOnline(deviceID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.online[deviceID]
}

// Status returns the last confirmed state for a device, or "" if unknown.
func (a *Actuator) Status(deviceID string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status[deviceID]
}

// Statuses returns a snapshot of all confirmed device states.
func (a *Actuator) Statuses() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]string, len(a.status))
	for id, s := range a.status {
		out[id] = s
	}
	return out
}

// RepublishStatus re-publishes the retained status for a device.
// Used to overwrite a stale remote write after a blocked intent, and during
// the full resync after connectivity recovery.
func (a *Actuator) RepublishStatus(deviceID string) {
	a.mu.RLock()
	status := a.status[deviceID]
	a.mu.RUnlock()

	if status == "" {
		status = event.ActionOff
	}
	if err := a.channel.PublishStatus(deviceID, status); err != nil {
		a.logger.Warn("status republish failed", "device", deviceID, "error", err)
	}
}

// ResyncAll re-publishes every known device status.
func (a *Actuator) ResyncAll() {
	a.mu.RLock()
	ids := make([]string, 0, len(a.status))
	for id := range a.status {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	for _, id := range ids {
		a.RepublishStatus(id)
	}
}
