package engine

import "time"

// Timer is a handle to a scheduled one-shot task.  Cancelling a timer that has
// already fired or was already cancelled is a safe no-op.
type Timer interface {
	Cancel()
}

// Scheduler schedules a function to run once after a delay.  The engine never
// blocks on a scheduled task; it only keeps the handle for cancellation.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Timer
}

type clockScheduler struct{}

type clockTimer struct {
	t *time.Timer
}

func (c clockTimer) Cancel() {
	c.t.Stop()
}

func (clockScheduler) Schedule(delay time.Duration, fn func()) Timer {
	if delay < 0 {
		delay = 0
	}
	return clockTimer{time.AfterFunc(delay, fn)}
}

// NewClockScheduler returns the wall-clock scheduler used in production.
func NewClockScheduler() Scheduler {
	return clockScheduler{}
}
