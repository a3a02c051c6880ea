// Package ringbuf provides a fixed-capacity byte ring shared by exactly one
// producer and one consumer.
//
// The producer side never blocks: Push copies as many bytes as there is room
// for and returns. The consumer side may wait, up to a timeout, for data.
// Read and write positions are owned by one side each and published through
// atomics, so no lock is taken on either path.
package ringbuf

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrCapacity indicates an invalid buffer capacity.
var ErrCapacity = errors.New("ringbuf: capacity must be positive")

// Buffer is a single-producer/single-consumer byte FIFO.
type Buffer struct {
	data []byte
	size uint64

	// head is advanced by the consumer only, tail by the producer only.
	head atomic.Uint64
	tail atomic.Uint64

	// notify carries at most one pending wake-up for the consumer.
	notify chan struct{}
}

// New allocates a Buffer holding up to capacity bytes.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	return &Buffer{
		data:   make([]byte, capacity),
		size:   uint64(capacity),
		notify: make(chan struct{}, 1),
	}, nil
}

// Cap returns the capacity in bytes.
func (b *Buffer) Cap() int {
	return int(b.size)
}

// Len returns the number of bytes currently buffered.
func (b *Buffer) Len() int {
	return int(b.tail.Load() - b.head.Load())
}

// Push appends p and returns the number of bytes accepted.
// Bytes beyond the free capacity are dropped. Push must only be called
// from the producer side.
func (b *Buffer) Push(p []byte) int {
	tail := b.tail.Load()
	free := b.size - (tail - b.head.Load())
	n := uint64(len(p))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}
	off := tail % b.size
	first := copy(b.data[off:], p[:n])
	if uint64(first) < n {
		copy(b.data, p[first:n])
	}
	b.tail.Store(tail + n)

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return int(n)
}

// Pull moves up to len(p) bytes into p and returns the count.
// When the buffer is empty it waits up to timeout for the producer;
// 0 is returned if nothing arrived in time. Pull must only be called
// from the consumer side.
func (b *Buffer) Pull(p []byte, timeout time.Duration) int {
	if len(p) == 0 {
		return 0
	}
	if n := b.read(p); n > 0 || timeout <= 0 {
		return n
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-b.notify:
			// A wake-up may be stale (left over from data already read).
			if n := b.read(p); n > 0 {
				return n
			}
		case <-timer.C:
			return b.read(p)
		}
	}
}

func (b *Buffer) read(p []byte) int {
	head := b.head.Load()
	avail := b.tail.Load() - head
	n := uint64(len(p))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	off := head % b.size
	first := copy(p[:n], b.data[off:])
	if uint64(first) < n {
		copy(p[first:n], b.data)
	}
	b.head.Store(head + n)
	return int(n)
}
