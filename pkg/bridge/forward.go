package bridge

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/sockbridge/pkg/ringbuf"
	"github.com/robotalks/sockbridge/pkg/sock"
)

// forward drains buf into conn until a write fails or ctx is done.
func (b *Bridge) forward(ctx context.Context, conn sock.Conn, buf *ringbuf.Buffer) error {
	chunk := make([]byte, b.conf.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := buf.Pull(chunk, b.conf.PullTimeout)
		if n == 0 {
			continue
		}
		if err := b.writeAll(ctx, conn, chunk[:n]); err != nil {
			return err
		}
	}
}

// writeAll writes p in order, resuming from the same offset after a
// would-block. Any other write error aborts the chunk.
func (b *Bridge) writeAll(ctx context.Context, conn sock.Conn, p []byte) error {
	for off := 0; off < len(p); {
		n, err := conn.TryWrite(p[off:])
		if n > 0 {
			off += n
			b.deps.Stats.AddSent(n)
		}
		switch {
		case err == nil && n > 0:
			continue
		case err == nil, errors.Is(err, sock.ErrWouldBlock):
			glog.V(5).Infof("send would block at %d/%d", off, len(p))
			if err := sleep(ctx, b.conf.SendBackoff); err != nil {
				return err
			}
		default:
			return &StageError{Stage: StageSend, Err: err}
		}
	}
	return nil
}
