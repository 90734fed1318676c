package scope

import "sync/atomic"

// ConnState is the connection lifecycle state of a Client.
type ConnState int32

const (
	// Disconnected means no live socket. Commands dial on demand.
	Disconnected ConnState = iota
	// Connected means commands go out on an established socket.
	Connected
	// ShuttingDown means Close has begun, the state never changes again.
	ShuttingDown
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// ConnStateHandler observes connection state transitions. Handlers run on
// their own goroutine and must not call back into the Client's Close.
type ConnStateHandler func(prev ConnState, curr ConnState)

// atomicConnState holds a ConnState and enforces legal transitions with
// compare and swap, so racing connect, disconnect and close operations
// resolve to exactly one winner.
type atomicConnState struct {
	v atomic.Int32
}

func (a *atomicConnState) get() ConnState {
	return ConnState(a.v.Load())
}

// toConnected transitions Disconnected to Connected.
func (a *atomicConnState) toConnected() bool {
	return a.v.CompareAndSwap(int32(Disconnected), int32(Connected))
}

// toDisconnected transitions Connected to Disconnected.
func (a *atomicConnState) toDisconnected() bool {
	return a.v.CompareAndSwap(int32(Connected), int32(Disconnected))
}

// toShutdown moves to ShuttingDown from any state. It returns the previous
// state and whether this call made the transition, so exactly one caller
// runs the shutdown sequence.
func (a *atomicConnState) toShutdown() (ConnState, bool) {
	for {
		prev := a.get()
		if prev == ShuttingDown {
			return prev, false
		}
		if a.v.CompareAndSwap(int32(prev), int32(ShuttingDown)) {
			return prev, true
		}
	}
}
