package serial

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/sockbridge/pkg/framework"
)

// Handler consumes bytes read from the line. The slice is only valid during
// the call.
type Handler interface {
	HandleBytes([]byte)
}

// HandleBytesFunc is func type of Handler.
type HandleBytesFunc func([]byte)

// HandleBytes implements Handler.
func (f HandleBytesFunc) HandleBytes(p []byte) {
	f(p)
}

// Reader pumps the serial line into Handler.
type Reader struct {
	Port      *Port
	Handler   Handler
	ChunkSize int
}

// NewReader creates a Reader.
func NewReader(port *Port, handler Handler) *Reader {
	return &Reader{Port: port, Handler: handler, ChunkSize: DefaultChunkSize}
}

// Name implements framework.Named.
func (r *Reader) Name() string {
	return "serial:" + r.Port.Name
}

// Run implements framework.Runnable. The port is closed when Run returns.
func (r *Reader) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, r.Port, r.readLoop)
}

func (r *Reader) readLoop() error {
	size := r.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	for {
		n, err := r.Port.Read(buf)
		if n > 0 {
			glog.V(5).Infof("serial read %d bytes", n)
			r.Handler.HandleBytes(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				glog.Infof("serial %s closed", r.Port.Name)
			}
			return err
		}
	}
}
