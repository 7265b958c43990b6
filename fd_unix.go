//go:build linux || darwin

package dispatcher

import "golang.org/x/sys/unix"

// closeFD closes a file descriptor.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD reads from a file descriptor.
func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeFD writes to a file descriptor.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// probeFD reports whether fd still refers to an open file description.
// Used to identify the offending descriptor after the multiplexing call
// reports EBADF.
func probeFD(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}
