// Package stats counts bridge traffic and connection attempts.
package stats

import (
	"sync/atomic"
	"time"
)

// Failure stages of a connection attempt.
const (
	StageConfig   = "config"
	StageResolve  = "resolve"
	StageConnect  = "connect"
	StageGreeting = "greeting"
	StageSend     = "send"
)

// Collector receives bridge accounting.
type Collector interface {
	// AddIngested counts bytes accepted into the buffer.
	AddIngested(n int)
	// AddDropped counts bytes discarded because the buffer was full or missing.
	AddDropped(n int)
	// AddSent counts bytes written to the remote endpoint.
	AddSent(n int)
	// Attempt counts a connection attempt.
	Attempt()
	// Failed counts a failed attempt or a lost connection at stage.
	Failed(stage string)
	// Connected tracks the connection state.
	Connected(bool)
	// Backoff records the delay before the next attempt.
	Backoff(time.Duration)
}

// Collectors fans accounting out to multiple collectors.
type Collectors []Collector

// AddIngested implements Collector.
func (s Collectors) AddIngested(n int) {
	for _, c := range s {
		c.AddIngested(n)
	}
}

// AddDropped implements Collector.
func (s Collectors) AddDropped(n int) {
	for _, c := range s {
		c.AddDropped(n)
	}
}

// AddSent implements Collector.
func (s Collectors) AddSent(n int) {
	for _, c := range s {
		c.AddSent(n)
	}
}

// Attempt implements Collector.
func (s Collectors) Attempt() {
	for _, c := range s {
		c.Attempt()
	}
}

// Failed implements Collector.
func (s Collectors) Failed(stage string) {
	for _, c := range s {
		c.Failed(stage)
	}
}

// Connected implements Collector.
func (s Collectors) Connected(v bool) {
	for _, c := range s {
		c.Connected(v)
	}
}

// Backoff implements Collector.
func (s Collectors) Backoff(d time.Duration) {
	for _, c := range s {
		c.Backoff(d)
	}
}

// Discard is a Collector doing nothing.
var Discard Collector = discard{}

type discard struct{}

func (discard) AddIngested(int)       {}
func (discard) AddDropped(int)        {}
func (discard) AddSent(int)           {}
func (discard) Attempt()              {}
func (discard) Failed(string)         {}
func (discard) Connected(bool)        {}
func (discard) Backoff(time.Duration) {}

// Counters is an in-process Collector.
type Counters struct {
	Ingested atomic.Int64
	Dropped  atomic.Int64
	Sent     atomic.Int64
	Attempts atomic.Int64
	Failures atomic.Int64

	connected atomic.Bool
	backoff   atomic.Int64
}

// AddIngested implements Collector.
func (c *Counters) AddIngested(n int) { c.Ingested.Add(int64(n)) }

// AddDropped implements Collector.
func (c *Counters) AddDropped(n int) { c.Dropped.Add(int64(n)) }

// AddSent implements Collector.
func (c *Counters) AddSent(n int) { c.Sent.Add(int64(n)) }

// Attempt implements Collector.
func (c *Counters) Attempt() { c.Attempts.Add(1) }

// Failed implements Collector.
func (c *Counters) Failed(string) { c.Failures.Add(1) }

// Connected implements Collector.
func (c *Counters) Connected(v bool) { c.connected.Store(v) }

// Backoff implements Collector.
func (c *Counters) Backoff(d time.Duration) { c.backoff.Store(int64(d)) }

// IsConnected returns the last reported connection state.
func (c *Counters) IsConnected() bool { return c.connected.Load() }

// Snapshot is a copy of the counters.
type Snapshot struct {
	Ingested  int64
	Dropped   int64
	Sent      int64
	Attempts  int64
	Failures  int64
	Connected bool
	Backoff   time.Duration
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Ingested:  c.Ingested.Load(),
		Dropped:   c.Dropped.Load(),
		Sent:      c.Sent.Load(),
		Attempts:  c.Attempts.Load(),
		Failures:  c.Failures.Load(),
		Connected: c.connected.Load(),
		Backoff:   time.Duration(c.backoff.Load()),
	}
}
