// Package serial reads the byte stream of a serial line and hands it to a
// Handler in chunks.
package serial

import (
	"fmt"
	"io"
	"os"
	"syscall"
)

// Port is an open serial line.
type Port struct {
	io.Reader
	io.Writer
	io.Closer

	Name string
}

// Open opens a tty device in raw mode at baud. baud 0 keeps the current
// line settings.
func Open(device string, baud int) (*Port, error) {
	f, err := os.OpenFile(device, os.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	if baud > 0 {
		if err := makeRaw(f, baud); err != nil {
			f.Close()
			return nil, fmt.Errorf("configure %s: %w", device, err)
		}
	}
	return &Port{Reader: f, Writer: f, Closer: f, Name: device}, nil
}

// Stdio uses stdin and stdout as the serial line.
func Stdio() *Port {
	return &Port{Reader: os.Stdin, Writer: os.Stdout, Closer: os.Stdin, Name: "stdio"}
}

// NewPort wraps an io.ReadWriteCloser.
func NewPort(name string, rwc io.ReadWriteCloser) *Port {
	return &Port{Reader: rwc, Writer: rwc, Closer: rwc, Name: name}
}
