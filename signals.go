package dispatcher

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// StopOnSignals installs OS signal handlers that stop the dispatcher when
// any of the given signals is delivered to the process. With no
// arguments it handles SIGINT and SIGTERM.
//
// The OS signal is funneled through the cross-thread channel as an
// application signal: a signal listener is registered whose callback
// requests Stop, and a forwarding goroutine raises it via
// [Dispatcher.Signal], so external process signals observe the exact
// same safety and ordering guarantees as application-raised ones.
//
// OS signal handlers are process-global, so the handler installation is
// one-way: there is no teardown, and subsequent calls on the same
// dispatcher are no-ops. The forwarded os.Signal value is passed to the
// internal listener as its signal data.
func (d *Dispatcher) StopOnSignals(sigs ...os.Signal) error {
	if len(sigs) == 0 {
		sigs = []os.Signal{unix.SIGINT, unix.SIGTERM}
	}

	var err error
	d.stopSignalOnce.Do(func() {
		var key ListenerKey
		key, err = d.AddSignalListener(func(ListenerKey, any, any) Disposition {
			d.stopRequested = true
			return KeepListener
		}, nil)
		if err != nil {
			return
		}

		ch := make(chan os.Signal, 1)
		signal.Notify(ch, sigs...)
		go func() {
			for s := range ch {
				if d.Signal(key, s) != nil {
					// Channel closed; the dispatcher is gone.
					return
				}
			}
		}()
	})
	return err
}
