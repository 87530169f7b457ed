package chathub

import "time"

// Clock is the time source for ban expiry and enqueue timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock (time.Now keeps a monotonic reading).
var SystemClock Clock = systemClock{}
