// Package backoff computes the delays inserted between reconnect attempts.
package backoff

import (
	"sync"
	"time"
)

// Policy is a stateful delay calculator.
//
// Next returns the current delay and advances it. Successive results never
// decrease until Reset is called, and never exceed the policy ceiling.
type Policy interface {
	Next() time.Duration
	Reset()
}

// Default values.
const (
	DefaultInitial = 100 * time.Millisecond
	DefaultMax     = 2 * time.Second
	DefaultFactor  = 2.0
)

// Exponential multiplies the delay by Factor after every call.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64

	current time.Duration
	lock    sync.Mutex
}

// NewExponential creates an Exponential policy.
func NewExponential(initial, max time.Duration, factor float64) *Exponential {
	if factor < 1 {
		factor = 1
	}
	if max < initial {
		max = initial
	}
	return &Exponential{Initial: initial, Max: max, Factor: factor, current: initial}
}

// Next implements Policy.
func (e *Exponential) Next() time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	d := e.current
	next := time.Duration(float64(e.current) * e.Factor)
	if next > e.Max || next < e.current {
		next = e.Max
	}
	e.current = next
	return d
}

// Reset implements Policy.
func (e *Exponential) Reset() {
	e.lock.Lock()
	e.current = e.Initial
	e.lock.Unlock()
}

// Linear adds Step to the delay after every call.
type Linear struct {
	Initial time.Duration
	Step    time.Duration
	Max     time.Duration

	current time.Duration
	lock    sync.Mutex
}

// NewLinear creates a Linear policy.
func NewLinear(initial, step, max time.Duration) *Linear {
	if step < 0 {
		step = 0
	}
	if max < initial {
		max = initial
	}
	return &Linear{Initial: initial, Step: step, Max: max, current: initial}
}

// Next implements Policy.
func (l *Linear) Next() time.Duration {
	l.lock.Lock()
	defer l.lock.Unlock()
	d := l.current
	if l.current += l.Step; l.current > l.Max {
		l.current = l.Max
	}
	return d
}

// Reset implements Policy.
func (l *Linear) Reset() {
	l.lock.Lock()
	l.current = l.Initial
	l.lock.Unlock()
}

// Stepped waits Short for the first ShortAttempts calls and Long afterwards.
// This is the schedule used by the serial firmware the bridge replaces.
type Stepped struct {
	Short         time.Duration
	Long          time.Duration
	ShortAttempts int

	attempts int
	lock     sync.Mutex
}

// NewStepped creates a Stepped policy.
func NewStepped(short, long time.Duration, shortAttempts int) *Stepped {
	if long < short {
		long = short
	}
	return &Stepped{Short: short, Long: long, ShortAttempts: shortAttempts}
}

// Next implements Policy.
func (s *Stepped) Next() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.attempts < s.ShortAttempts {
		s.attempts++
		return s.Short
	}
	return s.Long
}

// Reset implements Policy.
func (s *Stepped) Reset() {
	s.lock.Lock()
	s.attempts = 0
	s.lock.Unlock()
}
