package automation

import (
	"fmt"
	"strings"
)

// Mode is a building-wide automation mode.
type Mode string

// Building modes. A building is always in exactly one of these.
const (
	// ModeNone imposes no restrictions.
	ModeNone Mode = "none"

	// ModeLockdown forces every device in the building OFF and locks it.
	ModeLockdown Mode = "lockdown"

	// ModeEco forces high-draw device types OFF. No locks: the devices may
	// be switched back ON afterwards.
	ModeEco Mode = "eco"

	// ModeNight forces night-off device types OFF. No locks, like eco.
	ModeNight Mode = "night"
)

// ParseMode converts a mode name to a Mode.
// Returns ErrUnknownMode for unrecognised names.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case ModeNone:
		return ModeNone, nil
	case ModeLockdown:
		return ModeLockdown, nil
	case ModeEco:
		return ModeEco, nil
	case ModeNight:
		return ModeNight, nil
	default:
		return ModeNone, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// Policy maps modes to the device types they force OFF.
// Type matching is case-insensitive.
type Policy struct {
	// HighDrawTypes are forced OFF under ModeEco.
	HighDrawTypes []string

	// NightOffTypes are forced OFF under ModeNight.
	NightOffTypes []string
}

// ForcesOff reports whether a transition to mode drives devices of
// deviceType OFF.
func (p Policy) ForcesOff(mode Mode, deviceType string) bool {
	switch mode {
	case ModeLockdown:
		return true
	case ModeEco:
		return containsFold(p.HighDrawTypes, deviceType)
	case ModeNight:
		return containsFold(p.NightOffTypes, deviceType)
	default:
		return false
	}
}

// Locks reports whether the mode keeps its affected devices in the lock
// set after the transition. Only lockdown does; eco and night force
// devices OFF once and leave them free to switch back ON.
func (p Policy) Locks(mode Mode) bool {
	return mode == ModeLockdown
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
