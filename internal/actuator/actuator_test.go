package actuator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yasrizalhakim/SISEOA/internal/event"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// mockDevices knows a fixed set of devices.
type mockDevices struct {
	devices map[string]*topology.Device
}

func (m *mockDevices) GetDevice(id string) (*topology.Device, error) {
	if d, ok := m.devices[id]; ok {
		cpy := *d
		return &cpy, nil
	}
	return nil, topology.ErrDeviceNotFound
}

// mockAuth allows or blocks ON switches.
type mockAuth struct {
	mu       sync.Mutex
	err      error
	calls    int
	released int
}

func (m *mockAuth) Authorize(string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return func() {
		m.mu.Lock()
		m.released++
		m.mu.Unlock()
	}, nil
}

// mockChannel records published commands and statuses.
type mockChannel struct {
	mu       sync.Mutex
	commands []string // "deviceID:action"
	statuses []string
	err      error
}

func (m *mockChannel) PublishChannel(deviceID, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.commands = append(m.commands, deviceID+":"+action)
	return nil
}

func (m *mockChannel) PublishStatus(deviceID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, deviceID+":"+status)
	return nil
}

// mockAccruer records accrual notifications.
type mockAccruer struct {
	mu   sync.Mutex
	ons  []string
	offs []string
}

func (m *mockAccruer) DeviceOn(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ons = append(m.ons, id)
}

func (m *mockAccruer) DeviceOff(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offs = append(m.offs, id)
}

// mockRecorder captures recorded events.
type mockRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (m *mockRecorder) Record(_ context.Context, e *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func setupActuator(t *testing.T) (*Actuator, *mockAuth, *mockChannel, *mockAccruer, *mockRecorder) {
	t.Helper()
	devices := &mockDevices{devices: map[string]*topology.Device{
		"lamp": {ID: "lamp", LocationID: "loc-1", Name: "Lamp", Type: "Light", Watt: 40},
	}}
	auth := &mockAuth{}
	ch := &mockChannel{}
	acc := &mockAccruer{}
	rec := &mockRecorder{}

	a := New(devices, auth, ch, acc, rec, nil)
	a.SetOnline("lamp", true)
	return a, auth, ch, acc, rec
}

func TestSwitch_On(t *testing.T) {
	a, auth, ch, acc, rec := setupActuator(t)

	if err := a.Switch(context.Background(), "lamp", "ON", event.SourceRemote); err != nil {
		t.Fatalf("Switch() error = %v", err)
	}

	if len(ch.commands) != 1 || ch.commands[0] != "lamp:ON" {
		t.Errorf("commands = %v, want [lamp:ON]", ch.commands)
	}
	if len(ch.statuses) != 1 || ch.statuses[0] != "lamp:ON" {
		t.Errorf("statuses = %v, want [lamp:ON]", ch.statuses)
	}
	if len(acc.ons) != 1 || acc.ons[0] != "lamp" {
		t.Errorf("accruer ons = %v, want [lamp]", acc.ons)
	}
	if len(rec.events) != 1 || rec.events[0].Action != "ON" || rec.events[0].Source != event.SourceRemote {
		t.Errorf("events = %v, want one ON/remote", rec.events)
	}
	if auth.calls != 1 || auth.released != 1 {
		t.Errorf("auth calls/released = %d/%d, want 1/1", auth.calls, auth.released)
	}
	if a.Status("lamp") != "ON" {
		t.Errorf("Status() = %q, want ON", a.Status("lamp"))
	}
}

func TestSwitch_OffSkipsAuthorization(t *testing.T) {
	a, auth, _, acc, _ := setupActuator(t)
	ctx := context.Background()

	a.Switch(ctx, "lamp", "ON", event.SourceRemote)
	authCallsAfterOn := auth.calls

	if err := a.Switch(ctx, "lamp", "OFF", event.SourceRemote); err != nil {
		t.Fatalf("Switch(OFF) error = %v", err)
	}
	if auth.calls != authCallsAfterOn {
		t.Error("OFF switch consulted the authorizer")
	}
	if len(acc.offs) != 1 {
		t.Errorf("accruer offs = %v, want [lamp]", acc.offs)
	}
}

func TestSwitch_Blocked(t *testing.T) {
	a, auth, ch, _, rec := setupActuator(t)
	auth.err = errors.New("automation: switch blocked by building mode")

	err := a.Switch(context.Background(), "lamp", "ON", event.SourceRemote)
	if err == nil || err.Error() != auth.err.Error() {
		t.Errorf("Switch() error = %v, want authorizer error passthrough", err)
	}
	if len(ch.commands) != 0 {
		t.Errorf("commands = %v, want none for blocked switch", ch.commands)
	}
	if len(rec.events) != 0 {
		t.Errorf("events = %v, want none for blocked switch", rec.events)
	}
}

func TestSwitch_Offline(t *testing.T) {
	a, _, ch, _, _ := setupActuator(t)
	a.SetOnline("lamp", false)

	err := a.Switch(context.Background(), "lamp", "ON", event.SourceRemote)
	if !errors.Is(err, ErrDeviceOffline) {
		t.Errorf("Switch() error = %v, want ErrDeviceOffline", err)
	}
	if len(ch.commands) != 0 {
		t.Errorf("commands = %v, want none for offline device", ch.commands)
	}
}

func TestSwitch_UnknownDevice(t *testing.T) {
	a, _, _, _, _ := setupActuator(t)

	err := a.Switch(context.Background(), "ghost", "ON", event.SourceRemote)
	if !errors.Is(err, topology.ErrDeviceNotFound) {
		t.Errorf("Switch() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSwitch_UnknownAction(t *testing.T) {
	a, _, _, _, _ := setupActuator(t)

	err := a.Switch(context.Background(), "lamp", "DIM", event.SourceRemote)
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Switch() error = %v, want ErrUnknownAction", err)
	}
}

func TestSwitch_IdempotentNoOp(t *testing.T) {
	a, _, ch, _, rec := setupActuator(t)
	ctx := context.Background()

	a.Switch(ctx, "lamp", "ON", event.SourceRemote)
	if err := a.Switch(ctx, "lamp", "ON", event.SourceRemote); err != nil {
		t.Fatalf("Switch() repeat error = %v", err)
	}

	if len(ch.commands) != 1 {
		t.Errorf("commands = %v, want exactly one for repeated ON", ch.commands)
	}
	if len(rec.events) != 1 {
		t.Errorf("events = %v, want exactly one for repeated ON", rec.events)
	}
}

func TestSwitch_RetryAfterPublishFailure(t *testing.T) {
	a, _, ch, _, rec := setupActuator(t)
	ctx := context.Background()

	ch.err = errors.New("mqtt: not connected")
	if err := a.Switch(ctx, "lamp", "ON", event.SourceRemote); err == nil {
		t.Fatal("Switch() with failing publish returned nil")
	}
	if len(rec.events) != 0 {
		t.Errorf("events = %v, want none for a failed publish", rec.events)
	}
	if a.Status("lamp") == "ON" {
		t.Error("Status() = ON after failed publish; cache not rolled back")
	}

	// The broker comes back; the retry must drive the device rather than
	// no-op against a stale cached status.
	ch.err = nil
	if err := a.Switch(ctx, "lamp", "ON", event.SourceRemote); err != nil {
		t.Fatalf("Switch() retry error = %v", err)
	}
	if len(ch.commands) != 1 || ch.commands[0] != "lamp:ON" {
		t.Errorf("commands after retry = %v, want [lamp:ON]", ch.commands)
	}
	if a.Status("lamp") != "ON" {
		t.Errorf("Status() after retry = %q, want ON", a.Status("lamp"))
	}
}

func TestForceOff_SkipsAuthorization(t *testing.T) {
	a, auth, ch, _, rec := setupActuator(t)
	ctx := context.Background()

	a.Switch(ctx, "lamp", "ON", event.SourceRemote)
	if err := a.ForceOff(ctx, "lamp"); err != nil {
		t.Fatalf("ForceOff() error = %v", err)
	}

	if auth.calls != 1 {
		t.Errorf("auth.calls = %d, want 1 (only the ON)", auth.calls)
	}
	if ch.commands[len(ch.commands)-1] != "lamp:OFF" {
		t.Errorf("last command = %q, want lamp:OFF", ch.commands[len(ch.commands)-1])
	}
	last := rec.events[len(rec.events)-1]
	if last.Source != event.SourceMode {
		t.Errorf("forced off source = %q, want mode", last.Source)
	}
}

func TestObserveLocal(t *testing.T) {
	a, _, ch, acc, rec := setupActuator(t)

	if err := a.ObserveLocal(context.Background(), "lamp", "ON"); err != nil {
		t.Fatalf("ObserveLocal() error = %v", err)
	}

	// The controller already changed the channel; nothing to drive.
	if len(ch.commands) != 0 {
		t.Errorf("commands = %v, want none for observed switch", ch.commands)
	}
	if len(acc.ons) != 1 {
		t.Errorf("accruer ons = %v, want [lamp]", acc.ons)
	}
	if rec.events[0].Source != event.SourceLocal {
		t.Errorf("source = %q, want local", rec.events[0].Source)
	}
	if a.Status("lamp") != "ON" {
		t.Errorf("Status() = %q, want ON", a.Status("lamp"))
	}
}

func TestSetOnline_DropStopsAccrual(t *testing.T) {
	a, _, _, acc, _ := setupActuator(t)

	a.Switch(context.Background(), "lamp", "ON", event.SourceRemote)
	a.SetOnline("lamp", false)

	if len(acc.offs) != 1 || acc.offs[0] != "lamp" {
		t.Errorf("accruer offs = %v, want [lamp] after going offline while ON", acc.offs)
	}
	if a.IsOnline("lamp") {
		t.Error("IsOnline() = true after SetOnline(false)")
	}
}

func TestRepublishStatus_AfterBlockedIntent(t *testing.T) {
	a, _, ch, _, _ := setupActuator(t)

	// Device is OFF and unknown in the status map; republish must assert OFF.
	a.RepublishStatus("lamp")

	if len(ch.statuses) != 1 || ch.statuses[0] != "lamp:OFF" {
		t.Errorf("statuses = %v, want [lamp:OFF]", ch.statuses)
	}
}
