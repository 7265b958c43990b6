package dispatcher

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

// messageKind tags a pipeMessage.
type messageKind uint8

const (
	msgAddIO messageKind = iota + 1
	msgRemoveIO
	msgChangeMask
	msgAddTimer
	msgRemoveTimer
	msgAddProcess
	msgRemoveProcess
	msgAddSignal
	msgRemoveSignal
	msgRaiseSignal
	msgInterrupt
	msgStop
)

// pipeMessage is one cross-thread request: a listener mutation, a raised
// signal, an interrupt, or a stop. Written only through the
// spinlock-guarded channel; read only by the dispatch goroutine.
type pipeMessage struct {
	kind       messageKind
	key        ListenerKey
	fd         int
	mask       IOEvents
	fireTime   Time
	interval   Time
	ioCb       IOCallback
	timerCb    TimerCallback
	procCb     ProcessCallback
	sigCb      SignalCallback
	data       any
	signalData any
}

// crossThreadChannel lets any goroutine hand a pipeMessage to the dispatch
// goroutine without touching dispatcher-owned state. Messages queue in a
// FIFO ring guarded by a spinlock (critical section is a single enqueue,
// never a blocking mutex), and a wake descriptor registered with the
// poller like any other I/O listener makes delivery just another
// readiness event.
type crossThreadChannel struct {
	lock        atomic.Uint32
	pending     *queue.Queue
	wakeRead    int
	wakeWrite   int
	wakePending atomic.Uint32
	closed      atomic.Bool
	wakeBuf     [8]byte
	drainBuf    []pipeMessage
}

func newCrossThreadChannel(capacity int) (*crossThreadChannel, error) {
	readFd, writeFd, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	c := &crossThreadChannel{
		pending:   queue.New(),
		wakeRead:  readFd,
		wakeWrite: writeFd,
		drainBuf:  make([]pipeMessage, 0, max(capacity, 16)),
	}
	return c, nil
}

// acquire spins until the channel lock is held. The critical section it
// guards is a handful of words, so spinning beats parking.
func (c *crossThreadChannel) acquire() {
	for !c.lock.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (c *crossThreadChannel) release() {
	c.lock.Store(0)
}

// post enqueues a message and wakes the dispatch goroutine if no wake is
// already pending. Safe to call from any goroutine.
func (c *crossThreadChannel) post(msg pipeMessage) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	c.acquire()
	c.pending.Add(msg)
	c.release()

	if c.wakePending.CompareAndSwap(0, 1) {
		var buf [8]byte
		binary.NativeEndian.PutUint64(buf[:], 1)
		if _, err := writeFD(c.wakeWrite, buf[:]); err != nil {
			c.wakePending.Store(0)
			if err == unix.EAGAIN {
				// Wake counter or pipe already full: the dispatcher is
				// guaranteed to wake, so the message is safely delivered.
				return nil
			}
			if c.closed.Load() {
				return ErrChannelClosed
			}
			return &ChannelError{Op: "write", Err: err}
		}
	}

	return nil
}

// drain consumes the wake descriptor and returns every message queued at
// the time of the call. Called only by the dispatch goroutine; the
// returned slice is reused across calls.
func (c *crossThreadChannel) drain() ([]pipeMessage, error) {
	for {
		_, err := readFD(c.wakeRead, c.wakeBuf[:])
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			if c.closed.Load() {
				return nil, ErrChannelClosed
			}
			return nil, &ChannelError{Op: "read", Err: err}
		}
	}
	c.wakePending.Store(0)

	c.drainBuf = c.drainBuf[:0]
	c.acquire()
	for c.pending.Length() > 0 {
		c.drainBuf = append(c.drainBuf, c.pending.Remove().(pipeMessage))
	}
	c.release()

	return c.drainBuf, nil
}

// close releases the wake descriptors. Posted-but-undrained messages are
// dropped with the rest of the dispatcher state.
func (c *crossThreadChannel) close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := closeFD(c.wakeRead)
	if c.wakeWrite != c.wakeRead {
		if err2 := closeFD(c.wakeWrite); err == nil {
			err = err2
		}
	}
	return err
}
