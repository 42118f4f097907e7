// timer/scheduler.go
package timer

import "time"

// TickScheduler drives gravity for one room. It is a one-shot timer that the
// owner re-arms after handling each tick, so at most one tick is ever pending.
//
// Arm, Stop and Current must be called from the owning goroutine. The fire
// callback runs on the clock's goroutine and should only hand the generation
// back to the owner.
type TickScheduler struct {
	clock Clock
	fire  func(gen uint64)
	gen   uint64
	timer Stopper
}

func NewTickScheduler(clock Clock, fire func(gen uint64)) *TickScheduler {
	return &TickScheduler{clock: clock, fire: fire}
}

// Arm schedules a tick after d, replacing any pending one.
func (s *TickScheduler) Arm(d time.Duration) uint64 {
	s.cancel()
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
	return gen
}

// Stop cancels the pending tick. A tick already handed to the owner becomes stale.
func (s *TickScheduler) Stop() {
	s.cancel()
	s.gen++
}

// Active reports whether a tick is scheduled.
func (s *TickScheduler) Active() bool {
	return s.timer != nil
}

// Current reports whether gen belongs to the pending tick. A stale generation
// comes from a tick that was cancelled or superseded after it fired.
func (s *TickScheduler) Current(gen uint64) bool {
	return s.timer != nil && gen == s.gen
}

func (s *TickScheduler) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// LevelInterval is the gravity interval for a level: 1000/level ms, never
// shorter than floor.
func LevelInterval(level int, floor time.Duration) time.Duration {
	if level < 1 {
		level = 1
	}
	d := time.Second / time.Duration(level)
	if d < floor {
		return floor
	}
	return d
}
