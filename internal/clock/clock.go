package clock

import "time"

// Clock supplies the current time. Core packages take a Clock instead of
// calling time.Now() so tests can drive transitions deterministically.
type Clock interface {
	Now() time.Time
}

// Real returns the system time. Use at the application entry point.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns T until advanced. For tests.
type Fixed struct {
	T time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{T: t} }

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
