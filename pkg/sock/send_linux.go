//go:build linux

package sock

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func sendNonBlock(raw syscall.RawConn, p []byte) (n int, err error) {
	var serr error
	cerr := raw.Write(func(fd uintptr) bool {
		n, serr = unix.SendmsgN(int(fd), p, nil, nil, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL)
		// Report would-block to the caller instead of parking in the poller.
		return true
	})
	if cerr != nil {
		return 0, cerr
	}
	switch serr {
	case nil:
		return n, nil
	case unix.EAGAIN, unix.EINTR:
		return 0, ErrWouldBlock
	}
	return 0, serr
}
