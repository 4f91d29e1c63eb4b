// Package clock provides the fixed-rate tick driver and an injectable time
// source for components that need testable time.
package clock

import "time"

// Clock abstracts time.Now so cooldown and rate-limit logic can be tested
// without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
