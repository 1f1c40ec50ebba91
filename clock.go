package bytebank

import "time"

// Clock supplies the current time. Tests pin it with WithClock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the default wall clock, in UTC.
var SystemClock Clock = systemClock{}
