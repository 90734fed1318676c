// Package pool provides pooled timers for timeout-heavy code paths, avoiding a
// timer allocation per command exchange, reconnect sleep, and monitor tick.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return the timer to the pool with PutTimer after use.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer) // only *time.Timer values are ever pooled
	if t.Reset(d) {
		// The timer was still active; drain a pending fire so the caller
		// never observes a stale tick.
		drain(t)
	}

	return t
}

// PutTimer stops the timer and returns it to the pool.
//
// t must not be accessed after the call.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		drain(t)
	}
	timerPool.Put(t)
}

func drain(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
