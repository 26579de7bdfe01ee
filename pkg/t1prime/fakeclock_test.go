package t1prime

import "time"

// fakeClock lets tests assert on deadline arithmetic without sleeping
// for real: Sleep advances a virtual offset instead of blocking.
type fakeClock struct {
	base   time.Time
	offset time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{base: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.base.Add(c.offset) }

func (c *fakeClock) Sleep(d time.Duration) { c.offset += d }
