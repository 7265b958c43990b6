package dispatcher

import "sync/atomic"

// State represents the current state of the dispatch loop.
//
// State machine:
//
//	StateIdle → StateDispatching        [DispatchNextEvent]
//	StateDispatching → StateWaiting     [blocking multiplex wait, via CAS]
//	StateWaiting → StateDispatching     [wake, via CAS]
//	StateDispatching → StateIdle        [iteration complete]
//	StateDispatching → StateStopped     [Stop request processed]
//	StateStopped → (terminal)
//
// Temporary states (Dispatching, Waiting) are entered with TryTransition
// (CAS); Stopped is stored unconditionally once reached. The Waiting state
// is what cross-thread posters observe to decide whether a wake write is
// required.
type State uint32

const (
	// StateIdle indicates no dispatch iteration is in progress.
	StateIdle State = iota
	// StateDispatching indicates the dispatch goroutine is running an
	// iteration (draining the channel or invoking callbacks).
	StateDispatching
	// StateWaiting indicates the dispatch goroutine is blocked in the OS
	// multiplexing call.
	StateWaiting
	// StateStopped indicates a Stop request has been processed; the
	// dispatcher will not run further iterations.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDispatching:
		return "Dispatching"
	case StateWaiting:
		return "Waiting"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// dispatchState is a lock-free state cell with cache-line padding to keep
// the hot word isolated from neighbouring fields.
type dispatchState struct {
	_ [64]byte //nolint:unused
	v atomic.Uint32
	_ [60]byte //nolint:unused
}

// Load returns the current state atomically.
func (s *dispatchState) Load() State {
	return State(s.v.Load())
}

// Store atomically stores a new state.
func (s *dispatchState) Store(state State) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to
// another, reporting whether it succeeded.
func (s *dispatchState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
