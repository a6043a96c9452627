// Package event records device switch events in a bounded log.
//
// Every accepted ON/OFF transition is appended here. The log is the pattern
// miner's raw material, so it is kept deliberately small: once a device's
// history passes the configured cap the oldest entries are trimmed, FIFO.
package event

import (
	"errors"
	"time"
)

// Actions recorded in the log.
const (
	ActionOn  = "ON"
	ActionOff = "OFF"
)

// Origins of a switch event.
const (
	SourceRemote   = "remote"   // remote client intent
	SourceSchedule = "schedule" // mined rule fired
	SourceMode     = "mode"     // building mode transition
	SourceLocal    = "local"    // device controller reported a local switch
	SourceAPI      = "api"      // operations HTTP API
)

// Domain errors for the event package.
var (
	// ErrInvalidAction is returned when an action is not ON or OFF.
	ErrInvalidAction = errors.New("event: invalid action")
)

// Event is one recorded switch transition.
type Event struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	Action     string    `json:"action"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ValidAction reports whether action is a recordable transition.
func ValidAction(action string) bool {
	return action == ActionOn || action == ActionOff
}
