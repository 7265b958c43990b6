package dispatcher

import "strings"

// IOEvents is a bitmask of I/O readiness conditions.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventException indicates an exceptional condition (OOB data, error).
	EventException
	// EventHangup indicates the peer closed its end of the connection.
	// Reported to callbacks but not registrable as an interest.
	EventHangup
)

// interestMask covers the event types that may be registered as interests.
const interestMask = EventRead | EventWrite | EventException

// String returns a pipe-separated representation, e.g. "read|write".
func (e IOEvents) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	if e&EventRead != 0 {
		parts = append(parts, "read")
	}
	if e&EventWrite != 0 {
		parts = append(parts, "write")
	}
	if e&EventException != 0 {
		parts = append(parts, "exception")
	}
	if e&EventHangup != 0 {
		parts = append(parts, "hangup")
	}
	return strings.Join(parts, "|")
}
