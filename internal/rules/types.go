package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleKind discriminates the two schedule shapes a rule can carry.
type RuleKind string

const (
	// KindLegacy is a single daily window with a day-membership list.
	KindLegacy RuleKind = "legacy"
	// KindMultiStage is a per-weekday list of start/end stages.
	KindMultiStage RuleKind = "multi_stage"
)

// Stage is one on/off window within a day. Times are wall-clock "HH:MM".
type Stage struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LegacySchedule is the original single-window form: one start/end pair
// applied on each listed day name.
type LegacySchedule struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
}

// MultiStageSchedule maps weekday names ("Monday", ...) to the stages
// active on that day. Days absent from the map have no scheduled activity.
type MultiStageSchedule struct {
	Days map[string][]Stage `json:"days"`
}

// Rule is a device's stored automation schedule. Exactly one of Legacy or
// MultiStage is populated, selected by Kind.
type Rule struct {
	DeviceID      string              `json:"device_id"`
	Kind          RuleKind            `json:"kind"`
	Legacy        *LegacySchedule     `json:"legacy,omitempty"`
	MultiStage    *MultiStageSchedule `json:"multi_stage,omitempty"`
	Enabled       bool                `json:"enabled"`
	Source        string              `json:"source"`
	BasedOnEvents int                 `json:"based_on_events"`
	CreatedAt     time.Time           `json:"created_at"`
	LastModified  time.Time           `json:"last_modified"`
}

// Validate checks that the schedule payload matches the declared kind.
func (r *Rule) Validate() error {
	if r.DeviceID == "" {
		return fmt.Errorf("%w: missing device id", ErrInvalidRule)
	}
	switch r.Kind {
	case KindLegacy:
		if r.Legacy == nil {
			return fmt.Errorf("%w: legacy rule without schedule", ErrInvalidRule)
		}
	case KindMultiStage:
		if r.MultiStage == nil {
			return fmt.Errorf("%w: multi-stage rule without schedule", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return nil
}

// encodeDocument serializes the schedule payload selected by Kind.
func (r *Rule) encodeDocument() ([]byte, error) {
	switch r.Kind {
	case KindLegacy:
		return json.Marshal(r.Legacy)
	case KindMultiStage:
		return json.Marshal(r.MultiStage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
}

// decodeDocument populates the schedule payload selected by Kind.
func (r *Rule) decodeDocument(doc []byte) error {
	switch r.Kind {
	case KindLegacy:
		var s LegacySchedule
		if err := json.Unmarshal(doc, &s); err != nil {
			return fmt.Errorf("failed to decode legacy schedule: %w", err)
		}
		r.Legacy = &s
	case KindMultiStage:
		var s MultiStageSchedule
		if err := json.Unmarshal(doc, &s); err != nil {
			return fmt.Errorf("failed to decode multi-stage schedule: %w", err)
		}
		r.MultiStage = &s
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return nil
}
