package types

import "time"

// Clock abstracts time.Now for deterministic testing. Every time-dependent
// service takes an injected Clock rather than calling time.Now directly.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by the system clock.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a test Clock that always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }
