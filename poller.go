package dispatcher

import "errors"

// Poller errors.
var (
	ErrFDOutOfRange = errors.New("dispatcher: fd out of range")
	ErrPollerClosed = errors.New("dispatcher: poller closed")
)

// readyEvent is one descriptor reported ready by the OS multiplexing call.
type readyEvent struct {
	fd     int
	events IOEvents
}

// Note: the ioPoller type is implemented in platform-specific files:
//   - poller_linux.go (epoll)
//   - poller_darwin.go (kqueue)
//
// The poller tracks OS-level interest only; the per-listener readiness
// table (keys, callbacks, user data) is owned by the Dispatcher. Always
// remove a descriptor from the poller before closing it, to prevent stale
// event delivery due to FD recycling.
