package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yasrizalhakim/SISEOA/internal/automation"
	"github.com/yasrizalhakim/SISEOA/internal/event"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/mqtt"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// Logger is the minimal logging interface the listener needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscriber registers MQTT message handlers. The infrastructure client
// implements this.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Switcher is the actuator surface the listener drives.
type Switcher interface {
	Switch(ctx context.Context, deviceID, action, source string) error
	ObserveLocal(ctx context.Context, deviceID, action string) error
	SetOnline(deviceID string, online bool)
	Status(deviceID string) string
	RepublishStatus(deviceID string)
}

// Modes applies building mode intents. The state machine implements this.
type Modes interface {
	Apply(ctx context.Context, buildingID string, mode automation.Mode) error
}

// Directory is the topology surface for hot-plug announcements.
type Directory interface {
	GetDevice(id string) (*topology.Device, error)
	IntegrateDevice(ctx context.Context, dev *topology.Device) error
	RelocateDevice(ctx context.Context, deviceID, locationID string) error
	RemoveDevice(ctx context.Context, deviceID string) error
	Load(ctx context.Context) error
}

// Health gates remote actuation on store connectivity. The guard
// implements this.
type Health interface {
	Online() bool
}

// MiningTrigger requests an on-demand pattern mining run. The mining
// scheduler implements this.
type MiningTrigger interface {
	Trigger()
}

// History clears a device's event log. The event repository implements
// this.
type History interface {
	DeleteForDevice(ctx context.Context, deviceID string) error
}

// Trigger action names accepted on siseoa/trigger/+.
const (
	TriggerRegenerateRules = "regenerate-rules"
	TriggerClearHistory    = "clear-history"
	TriggerRefreshTopology = "refresh-topology"
)

// Controller status payload marking an unreachable device.
const payloadOffline = "OFFLINE"

// topologyChange is the announcement payload on the topology topic.
type topologyChange struct {
	Action string `json:"action"` // add, modify, remove
	Device struct {
		ID         string  `json:"id"`
		LocationID string  `json:"location_id"`
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Watt       float64 `json:"watt"`
	} `json:"device"`
}

// buildingIntent is the building mode request payload.
type buildingIntent struct {
	Mode string `json:"mode"`
}

// Listener wires the inbound MQTT streams to their owning components.
type Listener struct {
	subscriber Subscriber
	switcher   Switcher
	modes      Modes
	directory  Directory
	health     Health
	miner      MiningTrigger
	history    History
	topics     mqtt.Topics
	logger     Logger
}

// New creates a listener. Start must be called once the MQTT client is
// connected.
func New(subscriber Subscriber, switcher Switcher, modes Modes, directory Directory,
	health Health, miner MiningTrigger, history History) *Listener {
	return &Listener{
		subscriber: subscriber,
		switcher:   switcher,
		modes:      modes,
		directory:  directory,
		health:     health,
		miner:      miner,
		history:    history,
		logger:     noopLogger{},
	}
}

// SetLogger replaces the listener's logger.
func (l *Listener) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Start registers every subscription. Returns the first subscribe
// failure; a partially started listener is not usable.
func (l *Listener) Start(ctx context.Context) error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{l.topics.AllDeviceStatuses(), l.handleStatus(ctx)},
		{l.topics.AllDeviceIntents(), l.handleDeviceIntent(ctx)},
		{l.topics.AllBuildingIntents(), l.handleBuildingIntent(ctx)},
		{l.topics.Topology(), l.handleTopology(ctx)},
		{l.topics.AllTriggers(), l.handleTrigger(ctx)},
	}
	for _, s := range subs {
		if err := l.subscriber.Subscribe(s.topic, 1, s.handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
		}
	}
	l.logger.Info("listener started", "subscriptions", len(subs))
	return nil
}

// handleStatus consumes controller-published status reports. A payload
// the actuator already agrees with is a no-op, so the core's own
// retained writes loop back harmlessly.
func (l *Listener) handleStatus(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		deviceID := lastSegment(topic)
		if deviceID == "" {
			return nil
		}
		report := strings.TrimSpace(string(payload))

		if report == payloadOffline {
			l.switcher.SetOnline(deviceID, false)
			return nil
		}
		if !event.ValidAction(report) {
			l.logger.Warn("unrecognized status payload", "device", deviceID, "payload", report)
			return nil
		}
		return l.switcher.ObserveLocal(ctx, deviceID, report)
	}
}

// handleDeviceIntent consumes remote ON/OFF requests. A rejected ON is
// reconciled by republishing the authoritative status.
func (l *Listener) handleDeviceIntent(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		deviceID := lastSegment(topic)
		if deviceID == "" {
			return nil
		}
		if !l.health.Online() {
			l.logger.Warn("remote intent suppressed, stores offline", "device", deviceID)
			return nil
		}
		action := strings.TrimSpace(string(payload))
		if !event.ValidAction(action) {
			l.logger.Warn("invalid device intent", "device", deviceID, "payload", action)
			return nil
		}

		err := l.switcher.Switch(ctx, deviceID, action, event.SourceRemote)
		if err == nil {
			return nil
		}
		if action == event.ActionOn {
			// The remote client may have optimistically written status ON.
			l.logger.Info("remote switch rejected, reverting status",
				"device", deviceID, "error", err)
			l.switcher.RepublishStatus(deviceID)
			return nil
		}
		l.logger.Warn("remote switch failed", "device", deviceID, "action", action, "error", err)
		return nil
	}
}

// handleBuildingIntent consumes remote mode requests. The payload is
// either a JSON document with a mode field or the bare mode name.
func (l *Listener) handleBuildingIntent(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		buildingID := lastSegment(topic)
		if buildingID == "" {
			return nil
		}
		if !l.health.Online() {
			l.logger.Warn("building intent suppressed, stores offline", "building", buildingID)
			return nil
		}

		raw := strings.TrimSpace(string(payload))
		var intent buildingIntent
		if err := json.Unmarshal(payload, &intent); err == nil && intent.Mode != "" {
			raw = intent.Mode
		}
		mode, err := automation.ParseMode(raw)
		if err != nil {
			l.logger.Warn("invalid building intent", "building", buildingID, "payload", raw)
			return nil
		}
		if err := l.modes.Apply(ctx, buildingID, mode); err != nil {
			l.logger.Error("mode apply failed", "building", buildingID, "mode", mode, "error", err)
		}
		return nil
	}
}

// handleTopology consumes device add/modify/remove announcements.
func (l *Listener) handleTopology(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		var change topologyChange
		if err := json.Unmarshal(payload, &change); err != nil {
			l.logger.Warn("malformed topology announcement", "error", err)
			return nil
		}
		if change.Device.ID == "" {
			l.logger.Warn("topology announcement without device id", "action", change.Action)
			return nil
		}

		var err error
		switch change.Action {
		case "add":
			err = l.directory.IntegrateDevice(ctx, &topology.Device{
				ID:         change.Device.ID,
				LocationID: change.Device.LocationID,
				Name:       change.Device.Name,
				Type:       change.Device.Type,
				Watt:       change.Device.Watt,
			})
		case "modify":
			err = l.modify(ctx, &change)
		case "remove":
			err = l.directory.RemoveDevice(ctx, change.Device.ID)
		default:
			l.logger.Warn("unknown topology action", "action", change.Action)
			return nil
		}
		if err != nil {
			l.logger.Error("topology change failed",
				"action", change.Action, "device", change.Device.ID, "error", err)
			return nil
		}
		l.logger.Info("topology changed", "action", change.Action, "device", change.Device.ID)
		return nil
	}
}

// modify relocates a device when its location changed. Announcements for
// devices the directory does not know fall back to integration.
func (l *Listener) modify(ctx context.Context, change *topologyChange) error {
	current, err := l.directory.GetDevice(change.Device.ID)
	if err != nil {
		if errors.Is(err, topology.ErrDeviceNotFound) {
			return l.directory.IntegrateDevice(ctx, &topology.Device{
				ID:         change.Device.ID,
				LocationID: change.Device.LocationID,
				Name:       change.Device.Name,
				Type:       change.Device.Type,
				Watt:       change.Device.Watt,
			})
		}
		return err
	}
	if change.Device.LocationID != "" && change.Device.LocationID != current.LocationID {
		return l.directory.RelocateDevice(ctx, change.Device.ID, change.Device.LocationID)
	}
	return nil
}

// handleTrigger consumes one-shot maintenance triggers. The action is
// the last topic segment; clear-history takes the device id as payload.
func (l *Listener) handleTrigger(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		action := lastSegment(topic)
		switch action {
		case TriggerRegenerateRules:
			l.logger.Info("manual mining run requested")
			l.miner.Trigger()
		case TriggerClearHistory:
			deviceID := strings.TrimSpace(string(payload))
			if deviceID == "" {
				l.logger.Warn("clear-history trigger without device id")
				return nil
			}
			if err := l.history.DeleteForDevice(ctx, deviceID); err != nil {
				l.logger.Error("history clear failed", "device", deviceID, "error", err)
				return nil
			}
			l.logger.Info("event history cleared", "device", deviceID)
		case TriggerRefreshTopology:
			if err := l.directory.Load(ctx); err != nil {
				l.logger.Error("topology refresh failed", "error", err)
				return nil
			}
			l.logger.Info("topology refreshed")
		default:
			l.logger.Warn("unknown trigger", "action", action)
		}
		return nil
	}
}

// lastSegment returns the final topic level, the entity id on every
// per-entity topic.
func lastSegment(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
