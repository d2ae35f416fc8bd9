package app

import "time"

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time and scheduling so deadlines can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
