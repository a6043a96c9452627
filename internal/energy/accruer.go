package energy

import (
	"context"
	"sync"
	"time"

	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// Logger defines the logging interface used by the Accruer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceLookup is the slice of the topology directory the accruer needs.
type DeviceLookup interface {
	GetDevice(id string) (*topology.Device, error)
	ResolveBuilding(deviceID string) (string, error)
}

// Telemetry receives accrual slices for the time-series sink. May be nil.
type Telemetry interface {
	WriteEnergyAccrual(deviceID, buildingID string, watt, kwh float64)
}

// run tracks one device's current ON period.
type run struct {
	watt       float64
	buildingID string
	lastFlush  time.Time
}

// Accruer converts device ON-time into daily kWh totals.
//
// Thread Safety: all public methods are safe for concurrent use.
type Accruer struct {
	lookup    DeviceLookup
	usage     UsageRepository
	telemetry Telemetry

	poll  time.Duration
	flush time.Duration

	mu   sync.Mutex
	runs map[string]*run

	// now is swappable for tests.
	now func() time.Time

	logger Logger
}

// NewAccruer creates an accruer. poll is how often running devices are
// checked, flush is the minimum ON-duration between incremental writes.
// telemetry may be nil.
func NewAccruer(lookup DeviceLookup, usage UsageRepository, telemetry Telemetry, poll, flush time.Duration) *Accruer {
	return &Accruer{
		lookup:    lookup,
		usage:     usage,
		telemetry: telemetry,
		poll:      poll,
		flush:     flush,
		runs:      make(map[string]*run),
		now:       time.Now,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the accruer.
func (a *Accruer) SetLogger(logger Logger) {
	a.logger = logger
}

// DeviceOn starts a run for the device. A device with no resolvable rated
// wattage is skipped. Implements the actuator's Accruer hook.
func (a *Accruer) DeviceOn(deviceID string) {
	dev, err := a.lookup.GetDevice(deviceID)
	if err != nil {
		a.logger.Warn("accrual skipped, device unknown", "device", deviceID, "error", err)
		return
	}
	if dev.Watt <= 0 {
		return
	}
	buildingID, _ := a.lookup.ResolveBuilding(deviceID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, running := a.runs[deviceID]; running {
		return
	}
	a.runs[deviceID] = &run{watt: dev.Watt, buildingID: buildingID, lastFlush: a.now()}
	a.logger.Debug("accrual started", "device", deviceID, "watt", dev.Watt)
}

// DeviceOff flushes the remainder of the device's run and ends it.
// Implements the actuator's Accruer hook.
func (a *Accruer) DeviceOff(deviceID string) {
	a.mu.Lock()
	r, running := a.runs[deviceID]
	if running {
		delete(a.runs, deviceID)
	}
	a.mu.Unlock()

	if !running {
		return
	}
	a.writeSlice(context.Background(), deviceID, r, a.now())
	a.logger.Debug("accrual ended", "device", deviceID)
}

// Run polls running devices until ctx is cancelled, flushing each device
// whose slice has reached the flush interval.
func (a *Accruer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	a.logger.Info("energy accruer started", "poll", a.poll, "flush", a.flush)
	for {
		select {
		case <-ctx.Done():
			a.FlushAll(context.Background())
			a.logger.Info("energy accruer stopped")
			return
		case <-ticker.C:
			a.flushDue(ctx)
		}
	}
}

// flushDue writes a slice for every run older than the flush interval.
func (a *Accruer) flushDue(ctx context.Context) {
	now := a.now()

	a.mu.Lock()
	due := make(map[string]*run)
	for id, r := range a.runs {
		if now.Sub(r.lastFlush) >= a.flush {
			due[id] = &run{watt: r.watt, buildingID: r.buildingID, lastFlush: r.lastFlush}
			r.lastFlush = now
		}
	}
	a.mu.Unlock()

	for id, r := range due {
		a.writeSlice(ctx, id, r, now)
	}
}

// FlushAll writes the partial slice of every run without ending the runs.
// Called on shutdown and by the connectivity guard before a freeze.
func (a *Accruer) FlushAll(ctx context.Context) {
	now := a.now()

	a.mu.Lock()
	due := make(map[string]*run)
	for id, r := range a.runs {
		if now.After(r.lastFlush) {
			due[id] = &run{watt: r.watt, buildingID: r.buildingID, lastFlush: r.lastFlush}
			r.lastFlush = now
		}
	}
	a.mu.Unlock()

	for id, r := range due {
		a.writeSlice(ctx, id, r, now)
	}
}

// Running returns the IDs of devices currently accruing.
func (a *Accruer) Running() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.runs))
	for id := range a.runs {
		ids = append(ids, id)
	}
	return ids
}

// writeSlice persists one kWh slice ending at now.
func (a *Accruer) writeSlice(ctx context.Context, deviceID string, r *run, now time.Time) {
	kwh := KWh(r.watt, now.Sub(r.lastFlush))
	if kwh <= 0 {
		return
	}

	day := now.UTC().Format(DayFormat)
	if err := a.usage.AddUsage(ctx, deviceID, day, kwh, r.watt); err != nil {
		a.logger.Error("usage write failed", "device", deviceID, "kwh", kwh, "error", err)
		return
	}
	if a.telemetry != nil {
		a.telemetry.WriteEnergyAccrual(deviceID, r.buildingID, r.watt, kwh)
	}
	a.logger.Debug("energy slice written", "device", deviceID, "day", day, "kwh", kwh)
}
