// timer/clock.go
package timer

import "time"

// Stopper cancels a pending callback. Stop reports whether the callback was
// still pending.
type Stopper interface {
	Stop() bool
}

// Clock is the time source for rooms and their tick schedules.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
