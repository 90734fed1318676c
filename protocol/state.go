package protocol

import (
	"fmt"
	"strings"
)

// StateFieldSize is the fixed width of a status response. The server space
// pads the state name to this width.
const StateFieldSize = 16

// AcquisitionState is the lifecycle phase reported by the server's
// acquisition engine.
type AcquisitionState uint8

const (
	// StateIdle means no acquisition is running.
	StateIdle AcquisitionState = iota
	// StateRunning means an acquisition is in progress.
	StateRunning
	// StateCancelling means a cancellation was accepted and is winding down.
	StateCancelling
	// StateCancelled means the last acquisition was stopped by request.
	StateCancelled
	// StateCompleted means the last acquisition finished normally.
	StateCompleted
	// StateFailed means the last acquisition aborted on a server side error.
	StateFailed
)

// String returns the canonical wire name of the state.
func (s AcquisitionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateCancelling:
		return "CANCELLING"
	case StateCancelled:
		return "CANCELLED"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state ends an acquisition run. A monitor can
// stop polling once the engine reaches a terminal state.
func (s AcquisitionState) Terminal() bool {
	switch s {
	case StateCancelled, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// ParseStateField decodes a fixed width status field. Space and NUL padding
// is trimmed and the name matched case insensitively. Unknown names report
// ok false together with StateIdle so callers can degrade instead of failing
// when talking to a newer server.
func ParseStateField(b []byte) (state AcquisitionState, ok bool) {
	name := strings.ToUpper(strings.Trim(string(b), " \x00"))
	switch name {
	case "IDLE":
		return StateIdle, true
	case "RUNNING":
		return StateRunning, true
	case "CANCELLING":
		return StateCancelling, true
	case "CANCELLED":
		return StateCancelled, true
	case "COMPLETED":
		return StateCompleted, true
	case "FAILED":
		return StateFailed, true
	default:
		return StateIdle, false
	}
}

// EncodeStateField renders the state as a space padded field of
// StateFieldSize bytes.
func EncodeStateField(s AcquisitionState) []byte {
	buf := make([]byte, StateFieldSize)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf, s.String())

	return buf
}

// AcquisitionProgress counts acquired units against the total planned for
// the current run. The unit is whatever the server scripts, tiles for a
// stitched scan or frames for a stack.
type AcquisitionProgress struct {
	Current int
	Total   int
}

// Percent returns completion as a value in [0, 100]. An unknown or zero
// Total reports 0.
func (p AcquisitionProgress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}

	return float64(p.Current) / float64(p.Total) * 100
}

// String renders the progress as "current/total (percent)".
func (p AcquisitionProgress) String() string {
	return fmt.Sprintf("%d/%d (%.1f%%)", p.Current, p.Total, p.Percent())
}
