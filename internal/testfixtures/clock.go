package testfixtures

import (
	"sync"
	"time"

	"github.com/example/class-scheduler/internal/calendar"
)

// Clock is a controllable time source. Services only ever see the civil
// date, so it moves in whole days and keeps its time of day.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.UTC()}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc exposes Now for injection into services.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Today returns the civil date of the clock.
func (c *Clock) Today() calendar.Date {
	return calendar.DateOf(c.Now())
}

// SetDate moves the clock to d, keeping the time of day.
func (c *Clock) SetDate(d calendar.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, d.DaysSince(calendar.DateOf(c.now)))
}

// AdvanceDays moves the clock n days forward, or back when n is negative,
// and returns the new date.
func (c *Clock) AdvanceDays(n int) calendar.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
	return calendar.DateOf(c.now)
}
