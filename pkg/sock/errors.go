package sock

import "errors"

var (
	// ErrResolve indicates the remote host could not be resolved.
	ErrResolve = errors.New("could not resolve host")
	// ErrConnect indicates the remote endpoint refused or could not be reached.
	ErrConnect = errors.New("could not connect to host")
	// ErrWouldBlock indicates a non-blocking write made no progress
	// because the socket send buffer is full.
	ErrWouldBlock = errors.New("operation would block")
)
