package pattern

import (
	"context"
	"time"
)

// Scheduler runs the miner once a week at a configured weekday and hour,
// and on demand through Trigger.
type Scheduler struct {
	miner   *Miner
	weekday time.Weekday
	hour    int
	trigger chan struct{}
	logger  Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler creates a mining scheduler firing at the given weekday
// and hour.
func NewScheduler(miner *Miner, weekday time.Weekday, hour int) *Scheduler {
	return &Scheduler{
		miner:   miner,
		weekday: weekday,
		hour:    hour,
		trigger: make(chan struct{}, 1),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger replaces the scheduler's logger.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Trigger requests an immediate mining run. Requests arriving while a
// run is already pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run waits for the weekly slot or a manual trigger until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("mining scheduler started",
		"weekday", s.weekday.String(), "hour", s.hour)
	for {
		timer := time.NewTimer(s.untilNext())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("mining scheduler stopped")
			return
		case <-timer.C:
			s.runOnce(ctx)
		case <-s.trigger:
			timer.Stop()
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := s.now()
	stored := s.miner.MineAll(ctx)
	s.logger.Info("mining run complete",
		"rules", stored, "duration", s.now().Sub(start).String())
}

// untilNext computes the wait until the next weekly slot. A slot in the
// current hour counts as already passed.
func (s *Scheduler) untilNext() time.Duration {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	days := (int(s.weekday) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next.Sub(now)
}
