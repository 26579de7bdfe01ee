package t1prime

import "time"

// Clock is the injectable timing capability the block state machine
// uses for every wait, so tests can virtualize time instead of
// sleeping for real. Mirrors the spirit of gocanopen's SDO state
// machine, which threads an explicit timeDifferenceUs through every
// call instead of reading the wall clock directly.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// realClock is the production Clock, backed by the time package.
type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock returns the production Clock.
func RealClock() Clock { return realClock{} }

func durationMs(ms uint8) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
