package clock

import "time"

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a manually advanced clock for tests.
// Params: mutable current instant.
// Returns: deterministic time source.
type Fake struct {
	Current time.Time
}

// Now returns the configured instant.
// Params: none.
// Returns: current fake timestamp.
func (f *Fake) Now() time.Time {
	return f.Current
}

// Advance moves the fake clock forward by step.
// Params: non-negative step duration.
// Returns: clock mutated in place.
func (f *Fake) Advance(step time.Duration) {
	f.Current = f.Current.Add(step)
}
