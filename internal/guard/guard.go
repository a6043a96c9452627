package guard

import (
	"context"
	"sync"
	"time"
)

// Logger is the minimal logging interface the guard needs.
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

// DocumentStore is the persistent store side of the probe. *sql.DB
// satisfies this.
type DocumentStore interface {
	PingContext(ctx context.Context) error
}

// RealtimeStore is the shared status store side of the probe.
type RealtimeStore interface {
	Probe(ctx context.Context) error
}

// Freezer clears automation state when a store goes away and rebuilds it
// on recovery. The state machine implements this.
type Freezer interface {
	Freeze(ctx context.Context)
	Resync(ctx context.Context)
}

// Flusher persists partial energy slices before a freeze. The accruer
// implements this.
type Flusher interface {
	FlushAll(ctx context.Context)
}

// Reloader refreshes the topology cache on recovery. The directory
// implements this.
type Reloader interface {
	Load(ctx context.Context) error
}

// Resyncer republishes externally visible device state on recovery. The
// actuator implements this.
type Resyncer interface {
	ResyncAll()
}

// Guard probes the backing stores on a fixed interval and drives the
// freeze/resync cycle. Its Online answer gates the rule executor and
// the remote intent handlers.
type Guard struct {
	documents DocumentStore
	realtime  RealtimeStore
	freezer   Freezer
	flusher   Flusher
	reloader  Reloader
	resyncer  Resyncer
	interval  time.Duration
	timeout   time.Duration
	logger    Logger

	mu     sync.RWMutex
	online bool
}

// New creates a connectivity guard. The guard starts in the online state;
// the first probe corrects it if the stores are already down.
func New(documents DocumentStore, realtime RealtimeStore, freezer Freezer,
	flusher Flusher, reloader Reloader, resyncer Resyncer,
	interval, timeout time.Duration) *Guard {
	return &Guard{
		documents: documents,
		realtime:  realtime,
		freezer:   freezer,
		flusher:   flusher,
		reloader:  reloader,
		resyncer:  resyncer,
		interval:  interval,
		timeout:   timeout,
		logger:    noopLogger{},
		online:    true,
	}
}

// SetLogger replaces the guard's logger.
func (g *Guard) SetLogger(logger Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Online reports whether the last probe found both stores healthy.
func (g *Guard) Online() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.online
}

// Run probes on the configured interval until the context is cancelled.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.logger.Info("connectivity guard started",
		"interval", g.interval.String(), "timeout", g.timeout.String())
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("connectivity guard stopped")
			return
		case <-ticker.C:
			g.probe(ctx)
		}
	}
}

// RequestResync forces the next state transition through a full resync
// even if the guard never observed the outage itself. The realtime
// client's reconnect callback calls this.
func (g *Guard) RequestResync(ctx context.Context) {
	g.mu.Lock()
	wasOnline := g.online
	g.online = false
	g.mu.Unlock()
	if wasOnline {
		g.logger.Warn("resync requested, treating stores as stale")
	}
	g.probe(ctx)
}

// probe checks both stores and transitions between the online and
// offline states.
func (g *Guard) probe(ctx context.Context) {
	healthy := g.check(ctx)

	g.mu.Lock()
	wasOnline := g.online
	g.online = healthy
	g.mu.Unlock()

	switch {
	case wasOnline && !healthy:
		g.freeze(ctx)
	case !wasOnline && healthy:
		g.recover(ctx)
	}
}

// check runs both store probes under the bounded timeout. A stalled
// probe counts as failure.
func (g *Guard) check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.documents.PingContext(probeCtx); err != nil {
		g.logger.Warn("document store probe failed", "error", err)
		return false
	}
	if err := g.realtime.Probe(probeCtx); err != nil {
		g.logger.Warn("realtime store probe failed", "error", err)
		return false
	}
	return true
}

// freeze flushes pending energy slices, then clears automation state.
// Flushing first preserves accrued usage in case the document store is
// the side that survives.
func (g *Guard) freeze(ctx context.Context) {
	g.logger.Error("store connectivity lost, freezing automation")
	g.flusher.FlushAll(ctx)
	g.freezer.Freeze(ctx)
}

// recover rebuilds everything from the stores: topology first, then the
// persisted automation intents, then the externally visible device
// state. Execution stays suppressed until all three complete.
func (g *Guard) recover(ctx context.Context) {
	g.logger.Info("store connectivity restored, resyncing")
	if err := g.reloader.Load(ctx); err != nil {
		g.logger.Error("topology reload failed, staying offline", "error", err)
		g.mu.Lock()
		g.online = false
		g.mu.Unlock()
		return
	}
	g.freezer.Resync(ctx)
	g.resyncer.ResyncAll()
	g.logger.Info("resync complete")
}
