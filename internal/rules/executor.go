package rules

import (
	"context"
	"strings"
	"time"

	"github.com/yasrizalhakim/SISEOA/internal/automation"
	"github.com/yasrizalhakim/SISEOA/internal/event"
)

// Logger is the minimal logging interface the executor needs.
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

// Gate answers the automation checks that pre-empt scheduled actuation.
// The automation state machine implements this.
type Gate interface {
	ModeOf(buildingID string) automation.Mode
	IsLocked(deviceID string) bool
}

// Resolver maps a device to its building. The topology directory
// implements this.
type Resolver interface {
	ResolveBuilding(deviceID string) (string, error)
}

// Switcher drives devices. The actuator implements this.
type Switcher interface {
	Switch(ctx context.Context, deviceID, action, source string) error
}

// Health reports whether the backing stores are reachable. The
// connectivity guard implements this; while offline every scheduled
// actuation is suppressed.
type Health interface {
	Online() bool
}

// Executor evaluates enabled rules on a fixed tick and drives devices
// whose schedule boundary matches the current minute exactly.
type Executor struct {
	repo     Repository
	gate     Gate
	resolver Resolver
	switcher Switcher
	health   Health
	tick     time.Duration
	logger   Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewExecutor creates a rule executor. The health gate is optional and
// attached later via SetHealth once the guard exists.
func NewExecutor(repo Repository, gate Gate, resolver Resolver, switcher Switcher, tick time.Duration) *Executor {
	return &Executor{
		repo:     repo,
		gate:     gate,
		resolver: resolver,
		switcher: switcher,
		tick:     tick,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger replaces the executor's logger.
func (e *Executor) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetHealth attaches the connectivity gate.
func (e *Executor) SetHealth(h Health) {
	e.health = h
}

// Run evaluates rules every tick until the context is cancelled. A
// boundary whose tick never arrives is skipped, not replayed.
func (e *Executor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	e.logger.Info("rule executor started", "tick", e.tick.String())
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("rule executor stopped")
			return
		case <-ticker.C:
			e.evaluate(ctx)
		}
	}
}

// evaluate runs one pass over every stored rule.
func (e *Executor) evaluate(ctx context.Context) {
	if e.health != nil && !e.health.Online() {
		return
	}

	rules, err := e.repo.List(ctx)
	if err != nil {
		e.logger.Error("failed to load rules", "error", err)
		return
	}

	now := e.now()
	clock := now.Format("15:04")
	day := now.Weekday().String()

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		e.evaluateRule(ctx, rule, day, clock)
	}
}

// evaluateRule fires the rule's matching boundary, if any, for one device.
// Building policy pre-empts device rules: a building in any active mode
// skips scheduling entirely, as does an individually locked device.
func (e *Executor) evaluateRule(ctx context.Context, rule *Rule, day, clock string) {
	buildingID, err := e.resolver.ResolveBuilding(rule.DeviceID)
	if err != nil {
		e.logger.Warn("schedule skipped, device unresolved", "device", rule.DeviceID, "error", err)
		return
	}
	if e.gate.ModeOf(buildingID) != automation.ModeNone {
		return
	}
	if e.gate.IsLocked(rule.DeviceID) {
		return
	}

	action, ok := e.matchBoundary(rule, day, clock)
	if !ok {
		return
	}
	if err := e.switcher.Switch(ctx, rule.DeviceID, action, event.SourceSchedule); err != nil {
		e.logger.Warn("scheduled switch failed",
			"device", rule.DeviceID, "action", action, "error", err)
		return
	}
	e.logger.Info("scheduled switch", "device", rule.DeviceID, "action", action, "at", clock)
}

// matchBoundary reports the action a rule fires at the given day and
// wall-clock minute. End wins when a degenerate stage starts and ends in
// the same minute.
func (e *Executor) matchBoundary(rule *Rule, day, clock string) (string, bool) {
	switch rule.Kind {
	case KindLegacy:
		if rule.Legacy == nil || !containsFold(rule.Legacy.Days, day) {
			return "", false
		}
		return matchStage(Stage{Start: rule.Legacy.Start, End: rule.Legacy.End}, clock)
	case KindMultiStage:
		if rule.MultiStage == nil {
			return "", false
		}
		stages, ok := dayStages(rule.MultiStage, day)
		if !ok {
			return "", false
		}
		for _, stage := range stages {
			if action, ok := matchStage(stage, clock); ok {
				return action, true
			}
		}
		return "", false
	default:
		e.logger.Warn("rule with unknown kind ignored", "device", rule.DeviceID, "kind", rule.Kind)
		return "", false
	}
}

func matchStage(stage Stage, clock string) (string, bool) {
	if stage.End == clock {
		return event.ActionOff, true
	}
	if stage.Start == clock {
		return event.ActionOn, true
	}
	return "", false
}

// dayStages looks up a day's stages case-insensitively.
func dayStages(s *MultiStageSchedule, day string) ([]Stage, bool) {
	if stages, ok := s.Days[day]; ok {
		return stages, true
	}
	for name, stages := range s.Days {
		if strings.EqualFold(name, day) {
			return stages, true
		}
	}
	return nil, false
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
