package bridge

import "context"

// State is the connection lifecycle state.
type State int32

const (
	// StateIdle waits for the next attempt.
	StateIdle State = iota
	// StateConnecting resolves and connects the remote endpoint.
	StateConnecting
	// StateConnected forwards buffered bytes.
	StateConnected
	// StateClosing releases the connection.
	StateClosing
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	}
	return "UNKNOWN"
}

// StateNotifier is called when the lifecycle state changed.
type StateNotifier interface {
	StateChanged(context.Context, State)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, State)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state State) {
	f(ctx, state)
}
