package pattern

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yasrizalhakim/SISEOA/internal/event"
	"github.com/yasrizalhakim/SISEOA/internal/rules"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// Logger is the minimal logging interface the miner needs.
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

// Events reads a device's switch history. The event repository
// implements this.
type Events interface {
	ListSince(ctx context.Context, deviceID string, cutoff time.Time) ([]event.Event, error)
}

// RuleStore persists generated rules. The rules repository implements this.
type RuleStore interface {
	Upsert(ctx context.Context, rule *rules.Rule) error
}

// DeviceLister enumerates known devices. The topology directory
// implements this.
type DeviceLister interface {
	ListDevices() []topology.Device
}

// session is one contiguous usage window within a single day.
type session struct {
	events []event.Event
}

// valid reports whether the session contains at least one ON and one OFF.
func (s *session) valid() bool {
	var on, off bool
	for _, e := range s.events {
		switch e.Action {
		case event.ActionOn:
			on = true
		case event.ActionOff:
			off = true
		}
	}
	return on && off
}

// stage renders the session as a start/end pair on hour boundaries:
// the hour of the earliest ON and the hour of the latest OFF. Returns
// false for degenerate windows that do not span at least one hour.
func (s *session) stage() (rules.Stage, bool) {
	var (
		firstOn, lastOff time.Time
		haveOn, haveOff  bool
	)
	for _, e := range s.events {
		switch e.Action {
		case event.ActionOn:
			if !haveOn || e.OccurredAt.Before(firstOn) {
				firstOn = e.OccurredAt
				haveOn = true
			}
		case event.ActionOff:
			if !haveOff || e.OccurredAt.After(lastOff) {
				lastOff = e.OccurredAt
				haveOff = true
			}
		}
	}
	if !haveOn || !haveOff {
		return rules.Stage{}, false
	}
	start := firstOn.Hour()
	end := lastOff.Hour()
	if end <= start {
		return rules.Stage{}, false
	}
	return rules.Stage{
		Start: fmt.Sprintf("%02d:00", start),
		End:   fmt.Sprintf("%02d:00", end),
	}, true
}

// Miner derives multi-stage weekly schedules from switch history.
type Miner struct {
	events    Events
	store     RuleStore
	devices   DeviceLister
	lookback  time.Duration
	gap       time.Duration
	minEvents int
	logger    Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewMiner creates a pattern miner. lookback bounds the history window,
// gap is the session partition threshold, and minEvents is the minimum
// number of events required before a rule is generated.
func NewMiner(events Events, store RuleStore, devices DeviceLister, lookback, gap time.Duration, minEvents int) *Miner {
	return &Miner{
		events:    events,
		store:     store,
		devices:   devices,
		lookback:  lookback,
		gap:       gap,
		minEvents: minEvents,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger replaces the miner's logger.
func (m *Miner) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// MineDevice derives a rule from one device's recent history. The rule is
// returned disabled; enabling it is a deliberate operator action. Returns
// ErrInsufficientData when the window holds fewer than the configured
// minimum number of events.
func (m *Miner) MineDevice(ctx context.Context, deviceID string) (*rules.Rule, error) {
	cutoff := m.now().Add(-m.lookback)
	events, err := m.events.ListSince(ctx, deviceID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load event history: %w", err)
	}
	ons, offs := 0, 0
	for _, e := range events {
		switch e.Action {
		case event.ActionOn:
			ons++
		case event.ActionOff:
			offs++
		}
	}
	// A meaningful pattern needs both edges represented, not just volume.
	if len(events) < m.minEvents || ons < 2 || offs < 2 {
		return nil, fmt.Errorf("%w: %d events (%d ON, %d OFF), need %d with 2+ of each",
			ErrInsufficientData, len(events), ons, offs, m.minEvents)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})

	schedule := buildSchedule(events, m.gap)
	if len(schedule.Days) == 0 {
		return nil, fmt.Errorf("%w: no valid usage sessions", ErrInsufficientData)
	}

	return &rules.Rule{
		DeviceID:      deviceID,
		Kind:          rules.KindMultiStage,
		MultiStage:    schedule,
		Enabled:       false,
		Source:        "historical",
		BasedOnEvents: len(events),
	}, nil
}

// MineAll mines every known device and stores the resulting rules.
// Devices with insufficient history are skipped silently; other failures
// are logged and mining continues. Returns the number of rules stored.
func (m *Miner) MineAll(ctx context.Context) int {
	stored := 0
	for _, dev := range m.devices.ListDevices() {
		rule, err := m.MineDevice(ctx, dev.ID)
		if err != nil {
			if errors.Is(err, ErrInsufficientData) {
				m.logger.Debug("mining skipped", "device", dev.ID, "reason", err)
			} else {
				m.logger.Error("mining failed", "device", dev.ID, "error", err)
			}
			continue
		}
		if err := m.store.Upsert(ctx, rule); err != nil {
			m.logger.Error("failed to store mined rule", "device", dev.ID, "error", err)
			continue
		}
		m.logger.Info("rule mined", "device", dev.ID,
			"days", len(rule.MultiStage.Days), "events", rule.BasedOnEvents)
		stored++
	}
	return stored
}

// buildSchedule partitions events into sessions and folds them into a
// per-weekday schedule. Days that saw events but no valid session borrow
// the stages of the template day, the day with the most raw events.
func buildSchedule(events []event.Event, gap time.Duration) *rules.MultiStageSchedule {
	sessions := partition(events, gap)

	stagesByDay := make(map[string][]rules.Stage)
	for _, s := range sessions {
		if !s.valid() {
			continue
		}
		stage, ok := s.stage()
		if !ok {
			continue
		}
		day := s.events[0].OccurredAt.Weekday().String()
		stagesByDay[day] = append(stagesByDay[day], stage)
	}

	// Raw event counts decide which days are active and which is the
	// template.
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.OccurredAt.Weekday().String()]++
	}
	template, templateCount := "", 0
	for day, n := range counts {
		if n > templateCount || (n == templateCount && day < template) {
			template, templateCount = day, n
		}
	}

	schedule := &rules.MultiStageSchedule{Days: make(map[string][]rules.Stage)}
	for day := range counts {
		if stages, ok := stagesByDay[day]; ok {
			schedule.Days[day] = stages
		} else if stages, ok := stagesByDay[template]; ok {
			schedule.Days[day] = stages
		}
	}
	return schedule
}

// partition splits time-ordered events into sessions. A new session
// starts whenever the idle gap since the previous event exceeds the
// threshold. The gap only counts as idle after an OFF; the span between
// an ON and its matching OFF is running time and never splits a session,
// however long it is.
func partition(events []event.Event, gap time.Duration) []session {
	var sessions []session
	var current session
	for i, e := range events {
		if i > 0 &&
			events[i-1].Action == event.ActionOff &&
			e.OccurredAt.Sub(events[i-1].OccurredAt) > gap {
			sessions = append(sessions, current)
			current = session{}
		}
		current.events = append(current.events, e)
	}
	if len(current.events) > 0 {
		sessions = append(sessions, current)
	}
	return sessions
}
