// Package status reports bridge connection events and drives the visual
// "connected" indicator.
package status

import (
	"fmt"
	"net"
	"strconv"
)

// EventKind identifies a connection event.
type EventKind int

const (
	// EventConnecting is reported before resolving and dialing.
	EventConnecting EventKind = iota
	// EventConnected is reported once the connection is usable.
	EventConnected
	// EventDisconnected is reported after an established connection is lost.
	EventDisconnected
)

// String returns the wire name of the event.
func (k EventKind) String() string {
	switch k {
	case EventConnecting:
		return "CONNECTING"
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	}
	return "UNKNOWN"
}

// DefaultMarker prefixes connection-event sentences.
const DefaultMarker = "$PESP"

// Event describes a connection event of the bridge.
type Event struct {
	Kind       EventKind
	SocketKind string
	Host       string
	Port       uint16
	// Err is the cause of a disconnect, if known.
	Err error
}

// Addr returns host:port.
func (e Event) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Sentence formats the event as
// <marker>,SOCK,CLI,<socket-kind>,<EVENT>,<host>:<port>.
func (e Event) Sentence(marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}
	return fmt.Sprintf("%s,SOCK,CLI,%s,%s,%s:%d", marker, e.SocketKind, e.Kind, e.Host, e.Port)
}

// Sink receives connection events.
type Sink interface {
	Report(Event)
}

// ReportFunc is func type of Sink.
type ReportFunc func(Event)

// Report implements Sink.
func (f ReportFunc) Report(e Event) {
	f(e)
}

// Sinks fans an event out to multiple sinks, in order.
type Sinks []Sink

// Report implements Sink.
func (s Sinks) Report(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Report(e)
		}
	}
}
