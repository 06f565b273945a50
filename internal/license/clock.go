package license

import "time"

// Clock supplies the current instant to validity checks. Production code
// uses SystemClock; tests inject a fixed clock to pin temporal behavior.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock. It is the default for every operation
// that does not receive an explicit clock.
var SystemClock Clock = systemClock{}
