package status

import (
	"io"
	"sync"

	"github.com/golang/glog"
)

// LogSink writes human-readable event lines to glog.
type LogSink struct{}

// Report implements Sink.
func (LogSink) Report(e Event) {
	switch e.Kind {
	case EventConnecting:
		glog.Infof("Connecting to %s host %s", e.SocketKind, e.Addr())
	case EventConnected:
		glog.Infof("Successfully connected to %s", e.Addr())
	case EventDisconnected:
		if e.Err != nil {
			glog.Warningf("Disconnected from %s: %v", e.Addr(), e.Err)
		} else {
			glog.Warningf("Disconnected from %s", e.Addr())
		}
	}
}

// SentenceSink writes one event sentence per line to W, e.g. back onto
// the serial line so the attached device sees the link state.
type SentenceSink struct {
	W      io.Writer
	Marker string

	lock sync.Mutex
}

// NewSentenceSink creates a SentenceSink with the default marker.
func NewSentenceSink(w io.Writer) *SentenceSink {
	return &SentenceSink{W: w, Marker: DefaultMarker}
}

// Report implements Sink.
func (s *SentenceSink) Report(e Event) {
	line := e.Sentence(s.Marker) + "\r\n"
	s.lock.Lock()
	_, err := io.WriteString(s.W, line)
	s.lock.Unlock()
	if err != nil {
		glog.Errorf("write event sentence: %v", err)
	}
}
