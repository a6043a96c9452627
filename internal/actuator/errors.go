package actuator

import "errors"

// Domain errors for the actuator package.
var (
	// ErrDeviceOffline is returned when the device's controller is not
	// reachable, so a channel command would vanish.
	ErrDeviceOffline = errors.New("actuator: device offline")

	// ErrUnknownAction is returned for actions other than ON and OFF.
	ErrUnknownAction = errors.New("actuator: unknown action")
)
