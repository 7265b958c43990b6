package dispatcher

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// Now returns the current wall-clock time as a Time, for computing fire
// times before registration. Inside a callback prefer
// [Dispatcher.CurrentTime], which is stable for the whole iteration.
func Now() Time {
	return TimeFromGoTime(time.Now())
}

// Dispatcher is a single-threaded reactor. One goroutine at a time drives
// it through DispatchNextEvent or DispatchEvents; every other goroutine
// interacts through the internal cross-thread channel. See the package
// documentation for the execution model.
type Dispatcher struct {
	// Prevent copying
	_ [0]func()

	state   dispatchState
	keys    keyAllocator
	channel *crossThreadChannel
	poller  ioPoller

	// Listener state below is owned by the dispatch goroutine and must
	// never be touched directly from another goroutine.
	ioByKey    map[ListenerKey]*ioListener
	ioByFD     map[int]*ioListener
	timers     *timerQueue
	procs      []*processListener
	procsByKey map[ListenerKey]*processListener
	signals    map[ListenerKey]*signalListener

	// tickTime is sampled once per iteration, right after the blocking
	// wait returns, so listener scheduling computed from it is
	// self-consistent and a wait bounded by a timer deadline fires that
	// timer in the same iteration.
	tickTime Time

	// firing tracks the timer currently mid-callback, so a callback
	// removing itself by key suppresses the periodic re-insert.
	firing        *timerListener
	firingRemoved bool

	stopRequested bool

	dispatchGoroutineID atomic.Uint64

	logger  *logiface.Logger[logiface.Event]
	metrics *Metrics

	stopSignalOnce sync.Once

	closed atomic.Bool
}

// New creates a dispatcher with no registered listeners.
func New(opts ...Option) (*Dispatcher, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		ioByKey:    make(map[ListenerKey]*ioListener),
		ioByFD:     make(map[int]*ioListener),
		timers:     newTimerQueue(),
		procsByKey: make(map[ListenerKey]*processListener),
		signals:    make(map[ListenerKey]*signalListener),
		logger:     cfg.logger,
	}
	if cfg.metricsEnabled {
		d.metrics = &Metrics{}
	}

	d.channel, err = newCrossThreadChannel(cfg.channelCapacity)
	if err != nil {
		return nil, err
	}

	if err := d.poller.Init(); err != nil {
		_ = d.channel.close()
		return nil, err
	}

	// The channel's wake descriptor is just another read listener.
	if err := d.poller.Add(d.channel.wakeRead, EventRead); err != nil {
		_ = d.poller.Close()
		_ = d.channel.close()
		return nil, err
	}

	return d, nil
}

// Close releases the poller and channel descriptors. All listener state
// is dropped; the dispatcher must not be used afterwards. Safe to call on
// a dispatcher that was never run, or after Stop has been processed.
func (d *Dispatcher) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.state.Store(StateStopped)
	err := d.poller.Close()
	if cerr := d.channel.close(); err == nil {
		err = cerr
	}
	return err
}

// State returns the current dispatch loop state.
func (d *Dispatcher) State() State {
	return d.state.Load()
}

// Metrics returns the dispatcher's counters, or nil unless WithMetrics
// was supplied.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// ---------------------------------------------------------------------------
// Registration surface
// ---------------------------------------------------------------------------

// AddIOEventListener registers interest in readiness events on fd. The
// callback is invoked with the matched bits of the interest mask whenever
// the descriptor is reported ready. Callable from any goroutine; outside
// the dispatch goroutine the registration takes effect at the start of
// the next iteration.
//
// The descriptor must stay open while the listener is registered; at most
// one listener may be registered per descriptor. A duplicate registration
// fails synchronously when called from the dispatch goroutine, and is
// dropped with a warning when applied asynchronously.
func (d *Dispatcher) AddIOEventListener(fd int, mask IOEvents, cb IOCallback, data any) (ListenerKey, error) {
	if fd < 0 {
		return 0, &InvalidArgumentError{Op: "AddIOEventListener", Reason: "negative file descriptor"}
	}
	if mask&interestMask == 0 {
		return 0, &InvalidArgumentError{Op: "AddIOEventListener", Reason: "empty interest mask"}
	}
	if cb == nil {
		return 0, &InvalidArgumentError{Op: "AddIOEventListener", Reason: "nil callback"}
	}

	key := d.keys.NextKey()
	msg := pipeMessage{kind: msgAddIO, key: key, fd: fd, mask: mask & interestMask, ioCb: cb, data: data}
	if d.onDispatchGoroutine() {
		if err := d.addIO(msg); err != nil {
			return 0, err
		}
		return key, nil
	}
	if err := d.channel.post(msg); err != nil {
		return 0, err
	}
	return key, nil
}

// RemoveIOEventListener removes the listener with the given key. Unknown
// keys are a no-op, so removal is idempotent.
func (d *Dispatcher) RemoveIOEventListener(key ListenerKey) error {
	return d.request(pipeMessage{kind: msgRemoveIO, key: key})
}

// SetIOEventListenerEventTypeMask replaces the interest mask of an I/O
// listener. Callable from any goroutine; the change takes effect at the
// start of the next iteration.
func (d *Dispatcher) SetIOEventListenerEventTypeMask(key ListenerKey, mask IOEvents) error {
	if mask&interestMask == 0 {
		return &InvalidArgumentError{Op: "SetIOEventListenerEventTypeMask", Reason: "empty interest mask"}
	}
	return d.channel.post(pipeMessage{kind: msgChangeMask, key: key, mask: mask & interestMask})
}

// SetIOEventListenerEventTypeMaskFromCallback replaces the interest mask
// of an I/O listener with immediate effect, skipping the channel round
// trip. Callable only from a callback running on the dispatch goroutine;
// elsewhere it returns ErrNotDispatchGoroutine.
func (d *Dispatcher) SetIOEventListenerEventTypeMaskFromCallback(key ListenerKey, mask IOEvents) error {
	if !d.onDispatchGoroutine() {
		return ErrNotDispatchGoroutine
	}
	if mask&interestMask == 0 {
		return &InvalidArgumentError{Op: "SetIOEventListenerEventTypeMaskFromCallback", Reason: "empty interest mask"}
	}
	d.applyMessage(pipeMessage{kind: msgChangeMask, key: key, mask: mask & interestMask})
	return nil
}

// AddTimerEventListener schedules a timer. fireTime is absolute (compare
// [Now]); a zero interval marks a one-shot timer discarded after firing,
// a positive interval reschedules the timer at fireTime+interval,
// fireTime+2·interval, and so on.
func (d *Dispatcher) AddTimerEventListener(fireTime, interval Time, cb TimerCallback, data any) (ListenerKey, error) {
	if cb == nil {
		return 0, &InvalidArgumentError{Op: "AddTimerEventListener", Reason: "nil callback"}
	}
	if interval.Sec < 0 {
		return 0, &InvalidArgumentError{Op: "AddTimerEventListener", Reason: "negative interval"}
	}

	key := d.keys.NextKey()
	msg := pipeMessage{kind: msgAddTimer, key: key, fireTime: fireTime, interval: interval, timerCb: cb, data: data}
	if d.onDispatchGoroutine() {
		d.applyMessage(msg)
		return key, nil
	}
	if err := d.channel.post(msg); err != nil {
		return 0, err
	}
	return key, nil
}

// RemoveTimerEventListener cancels a timer. Unknown keys are a no-op.
func (d *Dispatcher) RemoveTimerEventListener(key ListenerKey) error {
	return d.request(pipeMessage{kind: msgRemoveTimer, key: key})
}

// AddProcessListener registers a callback invoked once per dispatch
// iteration, after I/O and timer callbacks for that iteration have run,
// regardless of whether any I/O or timer event occurred.
func (d *Dispatcher) AddProcessListener(cb ProcessCallback, data any) (ListenerKey, error) {
	if cb == nil {
		return 0, &InvalidArgumentError{Op: "AddProcessListener", Reason: "nil callback"}
	}

	key := d.keys.NextKey()
	msg := pipeMessage{kind: msgAddProcess, key: key, procCb: cb, data: data}
	if d.onDispatchGoroutine() {
		d.applyMessage(msg)
		return key, nil
	}
	if err := d.channel.post(msg); err != nil {
		return 0, err
	}
	return key, nil
}

// RemoveProcessListener removes a process listener. Unknown keys are a
// no-op.
func (d *Dispatcher) RemoveProcessListener(key ListenerKey) error {
	return d.request(pipeMessage{kind: msgRemoveProcess, key: key})
}

// AddSignalListener registers a callback invoked when Signal is raised
// with the returned key.
func (d *Dispatcher) AddSignalListener(cb SignalCallback, data any) (ListenerKey, error) {
	if cb == nil {
		return 0, &InvalidArgumentError{Op: "AddSignalListener", Reason: "nil callback"}
	}

	key := d.keys.NextKey()
	msg := pipeMessage{kind: msgAddSignal, key: key, sigCb: cb, data: data}
	if d.onDispatchGoroutine() {
		d.applyMessage(msg)
		return key, nil
	}
	if err := d.channel.post(msg); err != nil {
		return 0, err
	}
	return key, nil
}

// RemoveSignalListener removes a signal listener. Unknown keys are a
// no-op.
func (d *Dispatcher) RemoveSignalListener(key ListenerKey) error {
	return d.request(pipeMessage{kind: msgRemoveSignal, key: key})
}

// Signal raises the signal listener registered under key, passing it the
// opaque signalData. Callable from any goroutine. Delivery always travels
// through the cross-thread channel, so signals are observed in the order
// they were raised, interleaved with other channel requests. Raising a
// signal with no matching listener is a no-op.
func (d *Dispatcher) Signal(key ListenerKey, signalData any) error {
	return d.channel.post(pipeMessage{kind: msgRaiseSignal, key: key, signalData: signalData})
}

// Interrupt forces a blocked DispatchNextEvent to return promptly without
// stopping the loop. Used to force re-evaluation of timers or masks
// changed from another goroutine.
func (d *Dispatcher) Interrupt() error {
	return d.channel.post(pipeMessage{kind: msgInterrupt})
}

// Stop forces DispatchNextEvent (and DispatchEvents) to return
// permanently. From inside a callback the current iteration is the last
// one; from another goroutine the request is processed at the start of
// the next iteration.
func (d *Dispatcher) Stop() error {
	return d.request(pipeMessage{kind: msgStop})
}

// CurrentTime returns the time point sampled once per iteration, stable
// for the whole iteration. Callable only from a callback running on the
// dispatch goroutine.
func (d *Dispatcher) CurrentTime() (Time, error) {
	if !d.onDispatchGoroutine() {
		return Time{}, ErrNotDispatchGoroutine
	}
	return d.tickTime, nil
}

// request applies msg directly when already on the dispatch goroutine,
// and posts it through the channel otherwise.
func (d *Dispatcher) request(msg pipeMessage) error {
	if d.onDispatchGoroutine() {
		d.applyMessage(msg)
		return nil
	}
	return d.channel.post(msg)
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// DispatchEvents calls DispatchNextEvent in a loop until a Stop request
// is processed (returning nil) or an iteration fails (returning its
// error).
func (d *Dispatcher) DispatchEvents() error {
	for {
		more, err := d.DispatchNextEvent()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// DispatchNextEvent runs one full iteration: block in the multiplexing
// call until readiness, a wake, or the earliest timer's deadline; drain
// the cross-thread channel; fire ready I/O callbacks; fire due timers;
// fire process listeners.
//
// It returns false exactly once, when a Stop request was processed, and
// true otherwise (including after Interrupt). Callback panics are not
// intercepted. A failure of the dispatcher's own channel plumbing aborts
// the call with a *ChannelError.
func (d *Dispatcher) DispatchNextEvent() (bool, error) {
	if !d.state.TryTransition(StateIdle, StateDispatching) {
		if d.state.Load() == StateStopped {
			return false, ErrDispatcherStopped
		}
		return false, ErrDispatchReentry
	}

	d.dispatchGoroutineID.Store(goroutineID())
	defer d.dispatchGoroutineID.Store(0)

	stopped, err := d.dispatchOne()
	if stopped {
		d.state.Store(StateStopped)
		return false, err
	}
	d.state.Store(StateIdle)
	return true, err
}

// dispatchOne is the body of a single iteration. The caller has already
// claimed StateDispatching.
func (d *Dispatcher) dispatchOne() (stopped bool, err error) {
	if d.metrics != nil {
		d.metrics.Iterations.Add(1)
	}

	ready, err := d.wait()
	if err != nil {
		return false, err
	}

	// Sampled after the wait, so a timer whose deadline bounded the wait
	// is due within this same iteration.
	d.tickTime = TimeFromGoTime(time.Now())

	if err := d.drainChannel(); err != nil {
		return false, err
	}

	d.fireIO(ready)
	d.fireTimers()
	d.fireProcess()

	return d.stopRequested, nil
}

// wait blocks in the OS multiplexing call for at most the time remaining
// until the earliest pending timer. An invalid registered descriptor is
// recovered by probing and evicting rather than aborting the loop.
func (d *Dispatcher) wait() ([]readyEvent, error) {
	timeout := d.waitTimeout()

	d.state.TryTransition(StateDispatching, StateWaiting)
	ready, err := d.poller.Wait(timeout)
	d.state.TryTransition(StateWaiting, StateDispatching)

	if err != nil {
		if err == unix.EBADF {
			d.recoverBadFD()
			return nil, nil
		}
		return nil, err
	}
	return ready, nil
}

// waitTimeout computes the wait bound in milliseconds: the time remaining
// until the earliest pending timer, rounded up so the wait never expires
// just short of the deadline, or -1 (forever) when no timer is pending.
func (d *Dispatcher) waitTimeout() int {
	t := d.timers.peek()
	if t == nil {
		return -1
	}
	remaining := t.nextFire.Sub(Now()).Duration()
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Millisecond - 1) / time.Millisecond)
}

// drainChannel consumes the wake descriptor and applies every pending
// cross-thread request in the order it was posted.
func (d *Dispatcher) drainChannel() error {
	msgs, err := d.channel.drain()
	if err != nil {
		d.logger.Err().Err(err).Log(`dispatcher: cross-thread channel failed`)
		return err
	}
	if d.metrics != nil && len(msgs) > 0 {
		d.metrics.ChannelMessages.Add(uint64(len(msgs)))
	}
	for i := range msgs {
		d.applyMessage(msgs[i])
	}
	return nil
}

// applyMessage performs one cross-thread request. Runs only on the
// dispatch goroutine.
func (d *Dispatcher) applyMessage(msg pipeMessage) {
	switch msg.kind {
	case msgAddIO:
		// No reply is possible on the channel path; drops are logged.
		if err := d.addIO(msg); err != nil {
			d.logger.Warning().
				Err(err).
				Int(`fd`, msg.fd).
				Uint64(`key`, uint64(msg.key)).
				Log(`dispatcher: listener registration dropped`)
		}

	case msgRemoveIO:
		d.removeIO(msg.key)

	case msgChangeMask:
		lst, ok := d.ioByKey[msg.key]
		if !ok {
			return
		}
		lst.interest = msg.mask
		if err := d.poller.Mod(lst.fd, msg.mask); err != nil {
			d.logger.Warning().Err(err).Int(`fd`, lst.fd).Log(`dispatcher: poller mask change failed`)
		}

	case msgAddTimer:
		d.timers.push(&timerListener{
			key:      msg.key,
			nextFire: msg.fireTime,
			interval: msg.interval,
			callback: msg.timerCb,
			data:     msg.data,
		})

	case msgRemoveTimer:
		if d.firing != nil && d.firing.key == msg.key {
			d.firingRemoved = true
			return
		}
		d.timers.remove(msg.key)

	case msgAddProcess:
		lst := &processListener{key: msg.key, callback: msg.procCb, data: msg.data}
		d.procs = append(d.procs, lst)
		d.procsByKey[msg.key] = lst

	case msgRemoveProcess:
		d.removeProcess(msg.key)

	case msgAddSignal:
		d.signals[msg.key] = &signalListener{key: msg.key, callback: msg.sigCb, data: msg.data}

	case msgRemoveSignal:
		delete(d.signals, msg.key)

	case msgRaiseSignal:
		lst, ok := d.signals[msg.key]
		if !ok {
			return
		}
		if d.metrics != nil {
			d.metrics.SignalsDelivered.Add(1)
		}
		if lst.callback(lst.key, msg.signalData, lst.data) == RemoveListener {
			delete(d.signals, msg.key)
		}

	case msgInterrupt:
		// The wake write has already done its job.

	case msgStop:
		d.stopRequested = true
	}
}

// addIO installs an I/O listener in the readiness table and the poller.
// Fails on a descriptor that already has a listener.
func (d *Dispatcher) addIO(msg pipeMessage) error {
	if _, ok := d.ioByFD[msg.fd]; ok {
		return &InvalidArgumentError{Op: "AddIOEventListener", Reason: "descriptor already has a listener"}
	}
	if err := d.poller.Add(msg.fd, msg.mask); err != nil {
		return err
	}
	lst := &ioListener{key: msg.key, fd: msg.fd, interest: msg.mask, callback: msg.ioCb, data: msg.data}
	d.ioByKey[msg.key] = lst
	d.ioByFD[msg.fd] = lst
	return nil
}

// removeIO evicts an I/O listener. Unknown keys are a no-op.
func (d *Dispatcher) removeIO(key ListenerKey) {
	lst, ok := d.ioByKey[key]
	if !ok {
		return
	}
	delete(d.ioByKey, key)
	delete(d.ioByFD, lst.fd)
	// The descriptor may already be dead; eviction must still succeed.
	_ = d.poller.Del(lst.fd)
}

// removeProcess evicts a process listener. Unknown keys are a no-op.
func (d *Dispatcher) removeProcess(key ListenerKey) {
	if _, ok := d.procsByKey[key]; !ok {
		return
	}
	delete(d.procsByKey, key)
	for i, lst := range d.procs {
		if lst.key == key {
			d.procs = append(d.procs[:i], d.procs[i+1:]...)
			break
		}
	}
}

// fireIO invokes callbacks for descriptors reported ready, with the
// matched bits of each listener's interest mask.
func (d *Dispatcher) fireIO(ready []readyEvent) {
	for _, ev := range ready {
		if ev.fd == d.channel.wakeRead {
			continue
		}
		lst, ok := d.ioByFD[ev.fd]
		if !ok {
			// Evicted by a message drained this iteration, or by an
			// earlier callback.
			continue
		}
		// Error and hangup conditions are reported by the OS regardless
		// of the registered interest; dropping them here would leave a
		// level-triggered condition re-reported forever with no delivery.
		matched := ev.events & (lst.interest | EventException | EventHangup)
		if matched == 0 {
			continue
		}
		if d.metrics != nil {
			d.metrics.IODispatched.Add(1)
		}
		if lst.callback(lst.key, matched, lst.data) == RemoveListener {
			d.removeIO(lst.key)
		}
	}
}

// fireTimers pops and fires every timer due at the iteration's time
// point. One-shot timers are discarded; periodic timers advance by their
// interval and re-enter the heap, so an interval shorter than the elapsed
// wait catches up within the same iteration.
func (d *Dispatcher) fireTimers() {
	for {
		t := d.timers.popDue(d.tickTime)
		if t == nil {
			return
		}
		if d.metrics != nil {
			d.metrics.TimersFired.Add(1)
		}

		d.firing = t
		d.firingRemoved = false
		disp := t.callback(t.key, d.tickTime, t.data)
		d.firing = nil

		if disp == RemoveListener || d.firingRemoved || t.interval.IsZero() {
			continue
		}
		t.nextFire = t.nextFire.Add(t.interval)
		d.timers.push(t)
	}
}

// fireProcess invokes every process listener exactly once. The listener
// slice is snapshotted so callbacks may add or remove listeners without
// disturbing this iteration's pass; membership is re-checked per entry so
// a listener removed by an earlier callback is skipped.
func (d *Dispatcher) fireProcess() {
	if len(d.procs) == 0 {
		return
	}
	snapshot := make([]*processListener, len(d.procs))
	copy(snapshot, d.procs)
	for _, lst := range snapshot {
		if _, ok := d.procsByKey[lst.key]; !ok {
			continue
		}
		if d.metrics != nil {
			d.metrics.ProcessRuns.Add(1)
		}
		if lst.callback(lst.key, lst.data) == RemoveListener {
			d.removeProcess(lst.key)
		}
	}
}

// recoverBadFD handles EBADF from the multiplexing call: probe each
// registered descriptor individually, evict the dead ones, and let the
// loop retry, rather than aborting.
func (d *Dispatcher) recoverBadFD() {
	var evict []*ioListener
	for _, lst := range d.ioByKey {
		if !probeFD(lst.fd) {
			evict = append(evict, lst)
		}
	}
	for _, lst := range evict {
		d.removeIO(lst.key)
		if d.metrics != nil {
			d.metrics.BadFDEvictions.Add(1)
		}
		d.logger.Warning().
			Int(`fd`, lst.fd).
			Uint64(`key`, uint64(lst.key)).
			Log(`dispatcher: evicted listener with invalid descriptor`)
	}
}

// onDispatchGoroutine reports whether the caller is the goroutine
// currently inside DispatchNextEvent.
func (d *Dispatcher) onDispatchGoroutine() bool {
	id := d.dispatchGoroutineID.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID returns the current goroutine's ID by parsing the runtime
// stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
