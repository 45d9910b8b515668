// Package clock provides the logical clock used to stamp filesystem
// mutations during build scenarios.
package clock

import (
	"sync"
	"time"
)

// Step is the distance between two consecutive ticks. It is far coarser than
// any timestamp resolution a build tool compares, so two ticks never collide.
const Step = time.Minute

// Epoch is the logical time of a fresh clock.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Logical is a manually advanced clock, safe for concurrent use. The zero
// value is positioned at Epoch.
type Logical struct {
	mu    sync.RWMutex
	ticks int64
}

// New returns a clock positioned at Epoch.
func New() *Logical {
	return &Logical{}
}

// Tick advances the clock by one Step and returns the new time.
func (c *Logical) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return at(c.ticks)
}

// Now returns the current logical time without advancing it.
func (c *Logical) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return at(c.ticks)
}

// Ticks returns the number of ticks taken so far.
func (c *Logical) Ticks() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticks
}

func at(ticks int64) time.Time {
	return Epoch.Add(time.Duration(ticks) * Step)
}
