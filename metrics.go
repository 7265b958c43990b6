package dispatcher

import "sync/atomic"

// Metrics tracks runtime counters for the dispatcher. All counters are
// atomic and safe to read from any goroutine while the loop runs.
// Attached via [WithMetrics]; [Dispatcher.Metrics] returns nil otherwise.
//
// Example:
//
//	d, _ := New(WithMetrics(true))
//	// ... run ...
//	snap := d.Metrics().Snapshot()
//	fmt.Printf("iterations=%d timers=%d\n", snap.Iterations, snap.TimersFired)
type Metrics struct {
	// Iterations counts completed DispatchNextEvent calls.
	Iterations atomic.Uint64
	// IODispatched counts I/O listener callback invocations.
	IODispatched atomic.Uint64
	// TimersFired counts timer listener callback invocations.
	TimersFired atomic.Uint64
	// ProcessRuns counts process listener callback invocations.
	ProcessRuns atomic.Uint64
	// SignalsDelivered counts signal listener callback invocations.
	SignalsDelivered atomic.Uint64
	// ChannelMessages counts cross-thread requests drained.
	ChannelMessages atomic.Uint64
	// BadFDEvictions counts listeners evicted by bad-descriptor recovery.
	BadFDEvictions atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Iterations       uint64
	IODispatched     uint64
	TimersFired      uint64
	ProcessRuns      uint64
	SignalsDelivered uint64
	ChannelMessages  uint64
	BadFDEvictions   uint64
}

// Snapshot returns a consistent-enough copy of the counters: each field
// is loaded atomically, though fields advancing concurrently may be from
// marginally different instants.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Iterations:       m.Iterations.Load(),
		IODispatched:     m.IODispatched.Load(),
		TimersFired:      m.TimersFired.Load(),
		ProcessRuns:      m.ProcessRuns.Load(),
		SignalsDelivered: m.SignalsDelivered.Load(),
		ChannelMessages:  m.ChannelMessages.Load(),
		BadFDEvictions:   m.BadFDEvictions.Load(),
	}
}
