package topology

import "errors"

// Domain errors for the topology package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, topology.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("topology: device not found")

	// ErrLocationNotFound is returned when a location ID does not exist.
	ErrLocationNotFound = errors.New("topology: location not found")

	// ErrBuildingNotFound is returned when a building ID does not exist.
	ErrBuildingNotFound = errors.New("topology: building not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("topology: device already exists")

	// ErrLocationExists is returned when creating a location with an ID that already exists.
	ErrLocationExists = errors.New("topology: location already exists")

	// ErrBuildingExists is returned when creating a building with an ID that already exists.
	ErrBuildingExists = errors.New("topology: building already exists")

	// ErrUnresolved is returned when a device cannot be traced to a building,
	// either because the device is unknown or its chain has a dangling link.
	ErrUnresolved = errors.New("topology: device unresolved")

	// ErrInvalidName is returned when a name is empty or too long.
	ErrInvalidName = errors.New("topology: invalid name")

	// ErrInvalidWatt is returned when a rated wattage is negative.
	ErrInvalidWatt = errors.New("topology: invalid watt rating")
)
