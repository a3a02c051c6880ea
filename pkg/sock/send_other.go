//go:build !linux

package sock

import "syscall"

func sendNonBlock(raw syscall.RawConn, p []byte) (int, error) {
	return 0, errNoRawSend
}
