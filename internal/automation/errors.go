package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrBlocked) {
//	    // the building mode holds this device OFF
//	}
var (
	// ErrBlocked is returned when the active building mode forbids
	// switching a device ON.
	ErrBlocked = errors.New("automation: switch blocked by building mode")

	// ErrUnknownMode is returned when a mode name is not recognised.
	ErrUnknownMode = errors.New("automation: unknown mode")

	// ErrUnknownBuilding is returned when a building has no state entry
	// and cannot be resolved.
	ErrUnknownBuilding = errors.New("automation: unknown building")
)
