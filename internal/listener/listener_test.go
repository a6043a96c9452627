package listener

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yasrizalhakim/SISEOA/internal/automation"
	"github.com/yasrizalhakim/SISEOA/internal/event"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/mqtt"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// mockSubscriber captures handlers so tests can inject messages.
type mockSubscriber struct {
	handlers map[string]mqtt.MessageHandler
}

func (m *mockSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.handlers[topic] = handler
	return nil
}

// deliver routes a message through the handler registered for a pattern.
func (m *mockSubscriber) deliver(t *testing.T, pattern, topic string, payload []byte) {
	t.Helper()
	handler, ok := m.handlers[pattern]
	if !ok {
		t.Fatalf("no handler registered for %s", pattern)
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler for %s returned %v", pattern, err)
	}
}

type mockSwitcher struct {
	switchErr   error
	switches    []string
	observed    []string
	offline     []string
	republished []string
}

func (m *mockSwitcher) Switch(_ context.Context, deviceID, action, source string) error {
	m.switches = append(m.switches, deviceID+" "+action+" "+source)
	return m.switchErr
}

func (m *mockSwitcher) ObserveLocal(_ context.Context, deviceID, action string) error {
	m.observed = append(m.observed, deviceID+" "+action)
	return nil
}

func (m *mockSwitcher) SetOnline(deviceID string, online bool) {
	if !online {
		m.offline = append(m.offline, deviceID)
	}
}

func (m *mockSwitcher) Status(string) string { return "" }

func (m *mockSwitcher) RepublishStatus(deviceID string) {
	m.republished = append(m.republished, deviceID)
}

type mockModes struct {
	applied []string
}

func (m *mockModes) Apply(_ context.Context, buildingID string, mode automation.Mode) error {
	m.applied = append(m.applied, buildingID+" "+string(mode))
	return nil
}

type mockDirectory struct {
	known      map[string]*topology.Device
	integrated []string
	relocated  []string
	removed    []string
	loads      int
}

func (m *mockDirectory) GetDevice(id string) (*topology.Device, error) {
	if dev, ok := m.known[id]; ok {
		cpy := *dev
		return &cpy, nil
	}
	return nil, topology.ErrDeviceNotFound
}

func (m *mockDirectory) IntegrateDevice(_ context.Context, dev *topology.Device) error {
	m.integrated = append(m.integrated, dev.ID)
	return nil
}

func (m *mockDirectory) RelocateDevice(_ context.Context, deviceID, locationID string) error {
	m.relocated = append(m.relocated, deviceID+" "+locationID)
	return nil
}

func (m *mockDirectory) RemoveDevice(_ context.Context, deviceID string) error {
	m.removed = append(m.removed, deviceID)
	return nil
}

func (m *mockDirectory) Load(context.Context) error {
	m.loads++
	return nil
}

type mockHealth struct {
	online bool
}

func (m *mockHealth) Online() bool { return m.online }

type mockMiner struct {
	triggers int
}

func (m *mockMiner) Trigger() { m.triggers++ }

type mockHistory struct {
	cleared []string
}

func (m *mockHistory) DeleteForDevice(_ context.Context, deviceID string) error {
	m.cleared = append(m.cleared, deviceID)
	return nil
}

type fixture struct {
	listener   *Listener
	subscriber *mockSubscriber
	switcher   *mockSwitcher
	modes      *mockModes
	directory  *mockDirectory
	health     *mockHealth
	miner      *mockMiner
	history    *mockHistory
	topics     mqtt.Topics
}

func setupListener(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		subscriber: &mockSubscriber{handlers: make(map[string]mqtt.MessageHandler)},
		switcher:   &mockSwitcher{},
		modes:      &mockModes{},
		directory:  &mockDirectory{known: make(map[string]*topology.Device)},
		health:     &mockHealth{online: true},
		miner:      &mockMiner{},
		history:    &mockHistory{},
	}
	f.listener = New(f.subscriber, f.switcher, f.modes, f.directory,
		f.health, f.miner, f.history)
	if err := f.listener.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return f
}

func TestListener_RegistersAllStreams(t *testing.T) {
	f := setupListener(t)
	if len(f.subscriber.handlers) != 5 {
		t.Errorf("registered %d subscriptions, want 5", len(f.subscriber.handlers))
	}
}

func TestListener_DeviceIntent(t *testing.T) {
	f := setupListener(t)

	f.subscriber.deliver(t, f.topics.AllDeviceIntents(),
		f.topics.DeviceIntent("lamp-01"), []byte("ON"))

	want := "lamp-01 ON " + event.SourceRemote
	if len(f.switcher.switches) != 1 || f.switcher.switches[0] != want {
		t.Errorf("switches = %v, want [%s]", f.switcher.switches, want)
	}
}

func TestListener_BlockedRemoteOnReverted(t *testing.T) {
	f := setupListener(t)
	f.switcher.switchErr = automation.ErrBlocked

	f.subscriber.deliver(t, f.topics.AllDeviceIntents(),
		f.topics.DeviceIntent("lamp-01"), []byte("ON"))

	if len(f.switcher.republished) != 1 || f.switcher.republished[0] != "lamp-01" {
		t.Errorf("republished = %v, want the rejected device", f.switcher.republished)
	}
}

func TestListener_RejectedOffNotReverted(t *testing.T) {
	f := setupListener(t)
	f.switcher.switchErr = errors.New("channel publish failed")

	f.subscriber.deliver(t, f.topics.AllDeviceIntents(),
		f.topics.DeviceIntent("lamp-01"), []byte("OFF"))

	if len(f.switcher.republished) != 0 {
		t.Errorf("republished = %v, want none for a failed OFF", f.switcher.republished)
	}
}

func TestListener_IntentSuppressedOffline(t *testing.T) {
	f := setupListener(t)
	f.health.online = false

	f.subscriber.deliver(t, f.topics.AllDeviceIntents(),
		f.topics.DeviceIntent("lamp-01"), []byte("ON"))
	f.subscriber.deliver(t, f.topics.AllBuildingIntents(),
		f.topics.BuildingIntent("home-01"), []byte("lockdown"))

	if len(f.switcher.switches) != 0 {
		t.Errorf("switches = %v, want none while offline", f.switcher.switches)
	}
	if len(f.modes.applied) != 0 {
		t.Errorf("modes applied = %v, want none while offline", f.modes.applied)
	}
}

func TestListener_BuildingIntent(t *testing.T) {
	f := setupListener(t)

	// Bare mode name.
	f.subscriber.deliver(t, f.topics.AllBuildingIntents(),
		f.topics.BuildingIntent("home-01"), []byte("lockdown"))
	// JSON document form.
	f.subscriber.deliver(t, f.topics.AllBuildingIntents(),
		f.topics.BuildingIntent("home-02"), []byte(`{"mode":"eco"}`))
	// Garbage is dropped.
	f.subscriber.deliver(t, f.topics.AllBuildingIntents(),
		f.topics.BuildingIntent("home-03"), []byte("party"))

	want := []string{"home-01 lockdown", "home-02 eco"}
	if len(f.modes.applied) != len(want) {
		t.Fatalf("applied = %v, want %v", f.modes.applied, want)
	}
	for i := range want {
		if f.modes.applied[i] != want[i] {
			t.Errorf("applied[%d] = %q, want %q", i, f.modes.applied[i], want[i])
		}
	}
}

func TestListener_StatusStream(t *testing.T) {
	f := setupListener(t)

	f.subscriber.deliver(t, f.topics.AllDeviceStatuses(),
		f.topics.DeviceStatus("lamp-01"), []byte("ON"))
	f.subscriber.deliver(t, f.topics.AllDeviceStatuses(),
		f.topics.DeviceStatus("lamp-02"), []byte("OFFLINE"))

	if len(f.switcher.observed) != 1 || f.switcher.observed[0] != "lamp-01 ON" {
		t.Errorf("observed = %v, want [lamp-01 ON]", f.switcher.observed)
	}
	if len(f.switcher.offline) != 1 || f.switcher.offline[0] != "lamp-02" {
		t.Errorf("offline = %v, want [lamp-02]", f.switcher.offline)
	}
}

func TestListener_TopologyAdd(t *testing.T) {
	f := setupListener(t)

	payload, _ := json.Marshal(map[string]any{
		"action": "add",
		"device": map[string]any{
			"id": "fan-07", "location_id": "loc-1",
			"name": "Ceiling Fan", "type": "Fan", "watt": 60,
		},
	})
	f.subscriber.deliver(t, f.topics.Topology(), f.topics.Topology(), payload)

	if len(f.directory.integrated) != 1 || f.directory.integrated[0] != "fan-07" {
		t.Errorf("integrated = %v, want [fan-07]", f.directory.integrated)
	}
}

func TestListener_TopologyModifyRelocates(t *testing.T) {
	f := setupListener(t)
	f.directory.known["fan-07"] = &topology.Device{ID: "fan-07", LocationID: "loc-1"}

	payload, _ := json.Marshal(map[string]any{
		"action": "modify",
		"device": map[string]any{"id": "fan-07", "location_id": "loc-2"},
	})
	f.subscriber.deliver(t, f.topics.Topology(), f.topics.Topology(), payload)

	if len(f.directory.relocated) != 1 || f.directory.relocated[0] != "fan-07 loc-2" {
		t.Errorf("relocated = %v, want [fan-07 loc-2]", f.directory.relocated)
	}
}

func TestListener_TopologyModifyUnknownIntegrates(t *testing.T) {
	f := setupListener(t)

	payload, _ := json.Marshal(map[string]any{
		"action": "modify",
		"device": map[string]any{"id": "fan-09", "location_id": "loc-2"},
	})
	f.subscriber.deliver(t, f.topics.Topology(), f.topics.Topology(), payload)

	if len(f.directory.integrated) != 1 || f.directory.integrated[0] != "fan-09" {
		t.Errorf("integrated = %v, want [fan-09]", f.directory.integrated)
	}
}

func TestListener_TopologyRemove(t *testing.T) {
	f := setupListener(t)

	payload, _ := json.Marshal(map[string]any{
		"action": "remove",
		"device": map[string]any{"id": "fan-07"},
	})
	f.subscriber.deliver(t, f.topics.Topology(), f.topics.Topology(), payload)

	if len(f.directory.removed) != 1 || f.directory.removed[0] != "fan-07" {
		t.Errorf("removed = %v, want [fan-07]", f.directory.removed)
	}
}

func TestListener_Triggers(t *testing.T) {
	f := setupListener(t)

	f.subscriber.deliver(t, f.topics.AllTriggers(),
		f.topics.Trigger(TriggerRegenerateRules), nil)
	f.subscriber.deliver(t, f.topics.AllTriggers(),
		f.topics.Trigger(TriggerClearHistory), []byte("lamp-01"))
	f.subscriber.deliver(t, f.topics.AllTriggers(),
		f.topics.Trigger(TriggerRefreshTopology), nil)

	if f.miner.triggers != 1 {
		t.Errorf("mining triggers = %d, want 1", f.miner.triggers)
	}
	if len(f.history.cleared) != 1 || f.history.cleared[0] != "lamp-01" {
		t.Errorf("cleared = %v, want [lamp-01]", f.history.cleared)
	}
	if f.directory.loads != 1 {
		t.Errorf("topology loads = %d, want 1", f.directory.loads)
	}
}
