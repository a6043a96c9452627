package topology

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxNameLength is the longest accepted name for any topology entity.
const maxNameLength = 100

// Building is the top of the hierarchy and the unit of automation policy.
// Mode is the persisted automation mode name; the state machine owns the
// live value and writes it back here so restarts recover it.
type Building struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location groups devices within a building (a room, floor, or zone).
type Location struct {
	ID         string    `json:"id"`
	BuildingID string    `json:"building_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Device is a switchable channel with a rated draw in watts.
// Type is a free-form tag ("AC", "Fan", "Light") the mode policy matches on.
type Device struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Watt       float64   `json:"watt"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Building.
func (b *Building) DeepCopy() *Building {
	if b == nil {
		return nil
	}
	cpy := *b
	return &cpy
}

// DeepCopy creates an independent copy of the Location.
func (l *Location) DeepCopy() *Location {
	if l == nil {
		return nil
	}
	cpy := *l
	return &cpy
}

// DeepCopy creates an independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}

// GenerateID creates a new UUID for a topology entity.
func GenerateID() string {
	return uuid.New().String()
}

// ValidateBuilding checks building fields before persistence.
func ValidateBuilding(b *Building) error {
	return validateName(b.Name)
}

// ValidateLocation checks location fields before persistence.
func ValidateLocation(l *Location) error {
	if l.BuildingID == "" {
		return fmt.Errorf("%w: building_id is required", ErrBuildingNotFound)
	}
	return validateName(l.Name)
}

// ValidateDevice checks device fields before persistence.
func ValidateDevice(d *Device) error {
	if d.LocationID == "" {
		return fmt.Errorf("%w: location_id is required", ErrLocationNotFound)
	}
	if err := validateName(d.Name); err != nil {
		return err
	}
	if d.Watt < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidWatt, d.Watt)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}
