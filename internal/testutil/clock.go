package testutil

import "sync"

// DeterministicClock is a thread-safe logical wall clock for tests. It
// hands out millisecond timestamps starting from a fixed origin so test
// runs produce identical field states and history entries every time.
type DeterministicClock struct {
	mu     sync.Mutex
	now    int64
	frozen bool
}

// NewDeterministicClock creates a clock whose first Next returns start.
func NewDeterministicClock(start int64) *DeterministicClock {
	return &DeterministicClock{now: start}
}

// Next returns the current timestamp and advances the clock by one
// millisecond, unless the clock is frozen.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now
	if !c.frozen {
		c.now++
	}
	return ts
}

// Current returns the timestamp the next call to Next will produce.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Freeze pins the clock to ts. Every subsequent Next returns ts until
// Advance or Set moves it, which is how tests force write collisions.
func (c *DeterministicClock) Freeze(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ts
	c.frozen = true
}

// Advance unfreezes the clock and moves it forward by delta.
func (c *DeterministicClock) Advance(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += delta
	c.frozen = false
}

// Set unfreezes the clock and jumps it to ts.
func (c *DeterministicClock) Set(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ts
	c.frozen = false
}
