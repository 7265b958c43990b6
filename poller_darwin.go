//go:build darwin

package dispatcher

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ioPoller manages OS-level I/O interest using kqueue (Darwin).
//
// Not safe for concurrent use: all methods are called from the dispatch
// goroutine only. Read and write interests map to separate kevent
// filters; exception interest maps to OOB-band data on EVFILT_READ and is
// reported via EV_ERROR/EV_EOF flags.
type ioPoller struct {
	kq       int
	eventBuf [128]unix.Kevent_t
	ready    []readyEvent
	closed   atomic.Bool
}

// Init initializes the kqueue instance.
func (p *ioPoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.ready = make([]readyEvent, 0, len(p.eventBuf))
	return nil
}

// Close closes the kqueue instance. Idempotent.
func (p *ioPoller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return unix.Close(p.kq)
}

// Add registers interest in events on fd.
func (p *ioPoller) Add(fd int, events IOEvents) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, kevents, nil, nil)
	return err
}

// Mod replaces the interest set for fd.
func (p *ioPoller) Mod(fd int, events IOEvents) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}
	// kqueue has no atomic replace; delete both filters (ignoring absent
	// ones) then re-add the requested set.
	del := eventsToKevents(fd, EventRead|EventWrite, unix.EV_DELETE)
	_, _ = unix.Kevent(p.kq, del, nil, nil)

	add := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(add) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, add, nil, nil)
	return err
}

// Del removes fd from the interest set.
func (p *ioPoller) Del(fd int) error {
	kevents := eventsToKevents(fd, EventRead|EventWrite, unix.EV_DELETE)
	_, err := unix.Kevent(p.kq, kevents, nil, nil)
	return err
}

// Wait blocks until a registered descriptor is ready or the timeout
// elapses, returning the ready set. timeoutMs < 0 blocks indefinitely.
// The returned slice is reused across calls. An EINTR wait is reported as
// an empty ready set.
func (p *ioPoller) Wait(timeoutMs int) ([]readyEvent, error) {
	if p.closed.Load() {
		return nil, ErrPollerClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64(timeoutMs%1000) * 1_000_000,
		}
	}

	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		events := keventToEvents(&p.eventBuf[i])
		if events == 0 {
			continue
		}
		// Coalesce read/write filters reported for the same fd into one
		// entry so callbacks see a single invocation per iteration.
		merged := false
		for j := range p.ready {
			if p.ready[j].fd == fd {
				p.ready[j].events |= events
				merged = true
				break
			}
		}
		if !merged {
			p.ready = append(p.ready, readyEvent{fd: fd, events: events})
		}
	}
	return p.ready, nil
}

// eventsToKevents converts an interest mask to kevent structures.
func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&(EventRead|EventException) != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return kevents
}

// keventToEvents converts a kqueue event to an IOEvents mask.
func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventException
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
