package game

import "time"

// Timer is a pending scheduled callback. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Clock supplies the current time and schedules phase timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
