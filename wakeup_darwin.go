//go:build darwin

package dispatcher

import "golang.org/x/sys/unix"

// createWakeFd creates a self-pipe for wake-up notifications (Darwin).
// Returns the read end and the write end of the pipe, both non-blocking
// and close-on-exec.
func createWakeFd() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}

	cleanup := func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}

	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])

	if err := unix.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return 0, 0, err
	}

	return fds[0], fds[1], nil
}
