package transcription

import "time"

// Clock abstracts the wait between poll reads so the loop composes with
// context cancellation and is testable with a virtual clock.
type Clock interface {
	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock returns a Clock backed by the wall clock.
func RealClock() Clock {
	return realClock{}
}
