package dispatcher

// Disposition is returned by listener callbacks to indicate whether the
// listener should remain registered.
type Disposition int

const (
	// KeepListener leaves the listener armed for subsequent events.
	KeepListener Disposition = iota
	// RemoveListener evicts the listener; it will not be invoked again.
	RemoveListener
)

// IOCallback is invoked when a registered descriptor becomes ready.
// The ready mask contains only bits present in the listener's interest
// mask, plus EventException and EventHangup, which the platform reports
// regardless of interest.
type IOCallback func(key ListenerKey, ready IOEvents, data any) Disposition

// TimerCallback is invoked when a timer listener's fire time is reached.
// now is the time point sampled at the start of the current iteration.
type TimerCallback func(key ListenerKey, now Time, data any) Disposition

// ProcessCallback is invoked once per dispatch iteration, after I/O and
// timer callbacks for that iteration have run.
type ProcessCallback func(key ListenerKey, data any) Disposition

// SignalCallback is invoked when Signal is raised with the listener's key.
// signalData is the opaque value passed to Signal.
type SignalCallback func(key ListenerKey, signalData any, data any) Disposition

// ioListener is one entry in the I/O readiness table. Owned by the
// dispatch goroutine; mutated elsewhere only through channel messages.
type ioListener struct {
	key      ListenerKey
	fd       int
	interest IOEvents
	callback IOCallback
	data     any
}

// timerListener lives in the timer heap, ordered by nextFire.
// A zero interval marks a one-shot timer discarded after firing.
type timerListener struct {
	key       ListenerKey
	nextFire  Time
	interval  Time
	callback  TimerCallback
	data      any
	heapIndex int
}

type processListener struct {
	key      ListenerKey
	callback ProcessCallback
	data     any
}

type signalListener struct {
	key      ListenerKey
	callback SignalCallback
	data     any
}
