package bridge

import (
	"errors"
	"fmt"

	"github.com/robotalks/sockbridge/pkg/stats"
)

var (
	// ErrDisabled indicates the configuration has the bridge disabled.
	ErrDisabled = errors.New("bridge disabled")
	// ErrNoHost indicates no remote host is configured.
	ErrNoHost = errors.New("no remote host configured")
	// ErrNoBuffer indicates the hand-off buffer could not be allocated.
	// It is the only error ending Run besides cancellation.
	ErrNoBuffer = errors.New("could not allocate buffer")
	// ErrNoSource indicates Deps.Source is missing.
	ErrNoSource = errors.New("no configuration source")
)

// Stages of a connection cycle, as reported in StageError.
const (
	StageConfig   = stats.StageConfig
	StageResolve  = stats.StageResolve
	StageConnect  = stats.StageConnect
	StageGreeting = stats.StageGreeting
	StageSend     = stats.StageSend
)

// StageError wraps the failure of one stage of a connection cycle.
type StageError struct {
	Stage string
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the cause.
func (e *StageError) Unwrap() error {
	return e.Err
}
