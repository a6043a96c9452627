// Package automation implements the per-building mode state machine.
//
// A building is always in exactly one mode. Entering a mode forces its
// affected devices OFF; only lockdown also keeps them in the lock set,
// publishing retained lock flags so controllers and remote clients see them.
// Entering a new mode replaces the previous lock set atomically: devices
// locked by the old mode are unlocked, without being turned back on.
//
// # Modes
//
//	none     - no restrictions
//	lockdown - every device in the building forced OFF and locked
//	eco      - high-draw device types (e.g. AC) forced OFF, no locks
//	night    - night-off device types (e.g. Fan, AC) forced OFF, no locks
//
// # Serialization
//
// All decisions for one building are serialized through that building's
// mutex. The actuator asks Authorize before switching a device ON; the
// returned release function holds the building lock until the switch
// completes, so a mode transition can never interleave with an ON decision
// it should have blocked.
//
// # Hot-plug
//
// The state machine implements the topology membership sink: a device that
// joins a building under an active mode is immediately subjected to that
// mode's policy.
package automation
