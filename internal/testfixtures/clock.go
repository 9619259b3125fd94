// Package testfixtures provides deterministic time and identifier sources
// for tests.
package testfixtures

import (
	"fmt"
	"sync"
	"time"
)

// ReferenceTime is the default instant used by NewClock: a Monday morning
// in June 2025, local time.
func ReferenceTime() time.Time {
	return time.Date(2025, time.June, 2, 9, 0, 0, 0, time.Local)
}

// Clock provides a controllable time source for tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialised to start, or ReferenceTime when start
// is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the current instant tracked by the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set updates the clock to the provided time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the updated time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Date returns the clock's current date shifted by days, formatted
// YYYY-MM-DD.
func (c *Clock) Date(days int) string {
	return c.Now().AddDate(0, 0, days).Format("2006-01-02")
}

// IDGenerator hands out 16-hex-character identifiers from a counter.
// Queued values are returned first, which lets tests force collisions.
type IDGenerator struct {
	mu     sync.Mutex
	next   uint64
	queued []string
}

// NewIDGenerator returns a generator starting at 1.
func NewIDGenerator() *IDGenerator { return &IDGenerator{next: 1} }

// Queue makes the next calls return ids in order before resuming the counter.
func (g *IDGenerator) Queue(ids ...string) {
	g.mu.Lock()
	g.queued = append(g.queued, ids...)
	g.mu.Unlock()
}

// Next returns the next identifier.  Its signature matches the service's
// id source.
func (g *IDGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queued) > 0 {
		id := g.queued[0]
		g.queued = g.queued[1:]
		return id, nil
	}
	id := fmt.Sprintf("%016x", g.next)
	g.next++
	return id, nil
}
