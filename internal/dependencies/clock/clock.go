package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock, truncated to
// microseconds so stored timestamps round-trip through every backend
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current UTC time
func (c *RealClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
