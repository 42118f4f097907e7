package timer

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualClock_FiresInOrder(t *testing.T) {
	c := NewManualClock(epoch)
	var fired []int

	c.AfterFunc(30*time.Millisecond, func() { fired = append(fired, 3) })
	c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, 1) })
	c.AfterFunc(20*time.Millisecond, func() { fired = append(fired, 2) })
	c.AfterFunc(20*time.Millisecond, func() { fired = append(fired, 22) })

	c.Advance(25 * time.Millisecond)
	if len(fired) != 3 || fired[0] != 1 || fired[1] != 2 || fired[2] != 22 {
		t.Fatalf("Expected [1 2 22], got %v", fired)
	}
	if got := c.Now(); !got.Equal(epoch.Add(25 * time.Millisecond)) {
		t.Errorf("Expected clock at +25ms, got %v", got.Sub(epoch))
	}

	c.Advance(5 * time.Millisecond)
	if len(fired) != 4 || fired[3] != 3 {
		t.Fatalf("Expected the 30ms timer to fire, got %v", fired)
	}
	if c.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", c.Pending())
	}
}

func TestManualClock_Stop(t *testing.T) {
	c := NewManualClock(epoch)
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	if !timer.Stop() {
		t.Fatal("Stop should report a pending timer")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
	c.Advance(2 * time.Second)
	if called {
		t.Error("stopped timer fired")
	}
}

func TestManualClock_CallbackCanReschedule(t *testing.T) {
	c := NewManualClock(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(100*time.Millisecond, tick)
	}
	c.AfterFunc(100*time.Millisecond, tick)

	c.Advance(350 * time.Millisecond)
	if count != 3 {
		t.Errorf("Expected 3 ticks in 350ms, got %d", count)
	}
}

func TestTickScheduler_ArmAndCurrent(t *testing.T) {
	c := NewManualClock(epoch)
	var fired []uint64
	s := NewTickScheduler(c, func(gen uint64) { fired = append(fired, gen) })

	if s.Active() {
		t.Fatal("new scheduler should be idle")
	}

	gen := s.Arm(time.Second)
	c.Advance(999 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("tick fired early: %v", fired)
	}
	c.Advance(time.Millisecond)
	if len(fired) != 1 || fired[0] != gen {
		t.Fatalf("Expected one tick with gen %d, got %v", gen, fired)
	}
	if !s.Current(gen) {
		t.Error("fired generation should be current until re-armed")
	}

	next := s.Arm(500 * time.Millisecond)
	if s.Current(gen) {
		t.Error("old generation should be stale after re-arm")
	}
	if !s.Current(next) {
		t.Error("new generation should be current")
	}
}

func TestTickScheduler_StopMakesTicksStale(t *testing.T) {
	c := NewManualClock(epoch)
	var fired []uint64
	s := NewTickScheduler(c, func(gen uint64) { fired = append(fired, gen) })

	gen := s.Arm(time.Second)
	c.Advance(time.Second)
	s.Stop()

	if s.Current(gen) {
		t.Error("tick delivered before Stop must be stale")
	}
	if s.Active() {
		t.Error("stopped scheduler should be idle")
	}

	s.Arm(time.Second)
	s.Stop()
	c.Advance(5 * time.Second)
	if len(fired) != 1 {
		t.Errorf("Expected no ticks after Stop, got %v", fired)
	}
}

func TestTickScheduler_NeverMoreThanOnePending(t *testing.T) {
	c := NewManualClock(epoch)
	s := NewTickScheduler(c, func(uint64) {})

	s.Arm(time.Second)
	s.Arm(time.Second)
	s.Arm(2 * time.Second)
	if c.Pending() != 1 {
		t.Errorf("Expected one pending tick, got %d", c.Pending())
	}
}

func TestLevelInterval(t *testing.T) {
	cases := []struct {
		level int
		floor time.Duration
		want  time.Duration
	}{
		{1, 0, time.Second},
		{2, 0, 500 * time.Millisecond},
		{4, 0, 250 * time.Millisecond},
		{0, 0, time.Second},
		{50, 100 * time.Millisecond, 100 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := LevelInterval(tc.level, tc.floor); got != tc.want {
			t.Errorf("LevelInterval(%d, %v) = %v, want %v", tc.level, tc.floor, got, tc.want)
		}
	}
}
