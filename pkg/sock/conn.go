package sock

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"
)

// Conn is a connected stream socket with a non-blocking write primitive.
type Conn interface {
	// TryWrite writes as much of p as the socket accepts without waiting.
	// It returns ErrWouldBlock when no byte could be queued; a short count
	// with a nil error means the remainder should be retried.
	TryWrite(p []byte) (int, error)
	// Close releases the socket.
	Close() error
}

// DefaultWriteProbe bounds a write attempt on sockets without raw access.
const DefaultWriteProbe = time.Millisecond

var errNoRawSend = errors.New("raw non-blocking send unsupported")

type conn struct {
	net.Conn
	raw   syscall.RawConn
	probe time.Duration
}

// NewConn wraps c to provide TryWrite. Sockets exposing a file descriptor
// use a MSG_DONTWAIT send; others fall back to a short write deadline.
func NewConn(c net.Conn) Conn {
	cc := &conn{Conn: c, probe: DefaultWriteProbe}
	if sc, ok := c.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			cc.raw = raw
		}
	}
	return cc
}

// TryWrite implements Conn.
func (c *conn) TryWrite(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.raw != nil {
		n, err := sendNonBlock(c.raw, p)
		if err != errNoRawSend {
			return n, err
		}
		c.raw = nil
	}
	return c.tryWriteDeadline(p)
}

func (c *conn) tryWriteDeadline(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.probe)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Write(p)
	if err != nil && os.IsTimeout(err) {
		if n > 0 {
			return n, nil
		}
		return 0, ErrWouldBlock
	}
	return n, err
}
