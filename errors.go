package dispatcher

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrDispatcherStopped is returned when operations are attempted on a
	// dispatcher that has processed a Stop request.
	ErrDispatcherStopped = errors.New("dispatcher: dispatcher has been stopped")

	// ErrDispatchReentry is returned when DispatchNextEvent or
	// DispatchEvents is called from within a listener callback, or while
	// another goroutine is already dispatching.
	ErrDispatchReentry = errors.New("dispatcher: dispatch called re-entrantly")

	// ErrNotDispatchGoroutine is returned by operations restricted to the
	// dispatch goroutine (CurrentTime, the *FromCallback mask setter) when
	// called from anywhere else.
	ErrNotDispatchGoroutine = errors.New("dispatcher: not called from a dispatch callback")

	// ErrChannelClosed is returned when a cross-thread request is posted
	// to a dispatcher whose channel descriptors have been closed.
	ErrChannelClosed = errors.New("dispatcher: cross-thread channel closed")
)

// InvalidArgumentError reports a configuration error at registration time:
// a negative descriptor or an empty interest mask. It is returned
// synchronously to the caller and is never fatal to the dispatch loop.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("dispatcher: %s: invalid argument: %s", e.Op, e.Reason)
}

// Is matches any *InvalidArgumentError, so callers can test with a zero
// value: errors.Is(err, &InvalidArgumentError{}).
func (e *InvalidArgumentError) Is(target error) bool {
	var other *InvalidArgumentError
	return errors.As(target, &other)
}

// ChannelError reports a read or write failure on the internal wake
// descriptor. It indicates the dispatcher's own plumbing is corrupted and
// is fatal: DispatchNextEvent aborts with it.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("dispatcher: cross-thread channel %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with [errors.Is] and
// [errors.As].
func (e *ChannelError) Unwrap() error {
	return e.Err
}
