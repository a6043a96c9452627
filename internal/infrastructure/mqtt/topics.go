package mqtt

import "fmt"

// Topic prefixes for the SISEOA MQTT hierarchy.
//
// The broker doubles as the real-time store: retained status and lock topics
// hold the last known value per device, and controllers plus remote clients
// read them directly.
const (
	// TopicPrefix is the base for all SISEOA topics.
	TopicPrefix = "siseoa"

	// TopicPrefixIntent is the base for inbound intent topics.
	TopicPrefixIntent = "siseoa/intent"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "siseoa/system"
)

// Topics provides builders for SISEOA MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.DeviceStatus("lamp-01")
//	// Returns: "siseoa/status/lamp-01"
type Topics struct{}

// DeviceStatus returns the retained ON/OFF status topic for a device.
// This is the shared real-time record both the core and controllers read.
//
// Example: siseoa/status/lamp-01
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, deviceID)
}

// DeviceLocked returns the retained lock-flag topic for a device.
// A retained "1" marks the device as held OFF by the active building mode.
//
// Example: siseoa/locked/lamp-01
func (Topics) DeviceLocked(deviceID string) string {
	return fmt.Sprintf("%s/locked/%s", TopicPrefix, deviceID)
}

// ChannelSet returns the command topic the device controller subscribes to.
// Publishing "ON" or "OFF" here drives the physical channel.
//
// Example: siseoa/channel/lamp-01/set
func (Topics) ChannelSet(deviceID string) string {
	return fmt.Sprintf("%s/channel/%s/set", TopicPrefix, deviceID)
}

// BuildingIntent returns the topic remote clients publish building mode
// requests to. Payload is the target mode name.
//
// Example: siseoa/intent/building/home-01
func (Topics) BuildingIntent(buildingID string) string {
	return fmt.Sprintf("%s/building/%s", TopicPrefixIntent, buildingID)
}

// DeviceIntent returns the topic remote clients publish device switch
// requests to. Payload is "ON" or "OFF".
//
// Example: siseoa/intent/device/lamp-01
func (Topics) DeviceIntent(deviceID string) string {
	return fmt.Sprintf("%s/device/%s", TopicPrefixIntent, deviceID)
}

// Trigger returns the topic for named maintenance actions, such as an
// on-demand pattern mining run.
//
// Example: siseoa/trigger/regenerate-rules
func (Topics) Trigger(action string) string {
	return fmt.Sprintf("%s/trigger/%s", TopicPrefix, action)
}

// Topology returns the topic controllers announce device registrations,
// relocations, and removals on.
//
// Example: siseoa/topology
func (Topics) Topology() string {
	return fmt.Sprintf("%s/topology", TopicPrefix)
}

// SystemProbe returns the retained liveness probe topic the connectivity
// guard writes every probe interval.
//
// Example: siseoa/system/probe
func (Topics) SystemProbe() string {
	return fmt.Sprintf("%s/probe", TopicPrefixSystem)
}

// SystemStatus returns the core online/offline status topic, also used as
// the last-will topic.
//
// Example: siseoa/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStatuses returns a pattern matching every device status topic.
//
// Pattern: siseoa/status/+
func (Topics) AllDeviceStatuses() string {
	return fmt.Sprintf("%s/status/+", TopicPrefix)
}

// AllDeviceIntents returns a pattern matching every device intent topic.
//
// Pattern: siseoa/intent/device/+
func (Topics) AllDeviceIntents() string {
	return fmt.Sprintf("%s/device/+", TopicPrefixIntent)
}

// AllBuildingIntents returns a pattern matching every building intent topic.
//
// Pattern: siseoa/intent/building/+
func (Topics) AllBuildingIntents() string {
	return fmt.Sprintf("%s/building/+", TopicPrefixIntent)
}

// AllTriggers returns a pattern matching every trigger topic.
//
// Pattern: siseoa/trigger/+
func (Topics) AllTriggers() string {
	return fmt.Sprintf("%s/trigger/+", TopicPrefix)
}

// AllTopics returns a pattern matching all SISEOA topics.
// Use with caution, this receives ALL traffic.
//
// Pattern: siseoa/#
func (Topics) AllTopics() string {
	return "siseoa/#"
}
