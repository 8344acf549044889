package util

import "time"

// Clock is the engine's view of wall time. The transaction handler schedules
// its quiescence windows and daily rollovers through it, so tests can swap in
// a fake and drive time by hand.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// RealClock is the production Clock, a thin pass-through to package time.
type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }
