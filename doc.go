// Package dispatcher provides a single-threaded reactor that multiplexes
// readiness on file descriptors, fires one-shot and periodic timers, runs
// per-iteration process callbacks, and delivers application-defined signals
// raised from other goroutines, all through one blocking wait per iteration.
//
// # Architecture
//
// A [Dispatcher] owns four listener categories: I/O event listeners (per
// descriptor interest masks), timer event listeners (a min-heap ordered by
// fire time, with remove-by-key), process listeners (run unconditionally
// once per iteration), and signal listeners (invoked when [Dispatcher.Signal]
// is raised with a matching key). Every listener is identified by a
// [ListenerKey] unique across all categories for the dispatcher's lifetime.
//
// All listener state is owned exclusively by the goroutine driving
// [Dispatcher.DispatchNextEvent] or [Dispatcher.DispatchEvents]. Other
// goroutines interact solely through an internal cross-thread channel: a
// spinlock-guarded message queue paired with a wake descriptor that is
// registered with the same readiness-polling mechanism as ordinary I/O, so
// cross-thread requests are just another I/O event.
//
// # Platform Support
//
// I/O polling is implemented using platform-native mechanisms:
//   - Linux: epoll (wake-ups via eventfd)
//   - Darwin/BSD: kqueue (wake-ups via a non-blocking pipe)
//
// # Thread Safety
//
// Add*, Remove*, SetIOEventListenerEventTypeMask, Signal, Interrupt, and
// Stop are safe to call from any goroutine. Called from within a callback
// on the dispatch goroutine they apply immediately; from anywhere else they
// are applied by the dispatch goroutine at the start of its next iteration.
// Callbacks never execute in parallel and are never interrupted mid-flight.
//
// # Execution Model
//
// One iteration of [Dispatcher.DispatchNextEvent]:
//  1. Block in the OS multiplexing call, for at most the time remaining
//     until the earliest pending timer (forever if none).
//  2. Drain the cross-thread channel, applying listener mutations and
//     delivering raised signals.
//  3. Invoke callbacks for descriptors reported ready.
//  4. Pop and fire every timer whose fire time has been reached.
//  5. Invoke every process listener.
//
// A callback returning [RemoveListener] evicts its own listener. Callback
// panics are not intercepted; they propagate to the dispatch caller.
//
// # Usage
//
//	d, err := dispatcher.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	_, err = d.AddIOEventListener(fd, dispatcher.EventRead,
//		func(key dispatcher.ListenerKey, ready dispatcher.IOEvents, data any) dispatcher.Disposition {
//			// consume from fd
//			return dispatcher.KeepListener
//		}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := d.DispatchEvents(); err != nil {
//		log.Fatal(err)
//	}
package dispatcher
