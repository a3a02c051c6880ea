package config

import (
	"context"
	"flag"
	"os"
	"strconv"
	"sync"
)

// Static is an in-memory Source. It can be updated at runtime and every
// Load returns a copy of the current values.
type Static struct {
	snapshot Snapshot
	lock     sync.RWMutex
}

var defaultSnapshot = Snapshot{
	Enabled: true,
}

var colorFlag string

func init() {
	if val := os.Getenv("SOCKBRIDGE_HOST"); val != "" {
		defaultSnapshot.Host = val
	}
	if val := os.Getenv("SOCKBRIDGE_PORT"); val != "" {
		if p, err := strconv.ParseUint(val, 10, 16); err == nil {
			defaultSnapshot.Port = uint16(p)
		}
	}
	colorFlag = os.Getenv("SOCKBRIDGE_COLOR")
}

type portValue struct{ p *uint16 }

func (v portValue) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.Itoa(int(*v.p))
}

func (v portValue) Set(s string) error {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return err
	}
	*v.p = uint16(p)
	return nil
}

// SetupFlags sets up command line flags for the static source.
func SetupFlags() {
	flag.BoolVar(&defaultSnapshot.Enabled, "enabled", defaultSnapshot.Enabled, "Enable forwarding to the remote endpoint.")
	flag.StringVar(&defaultSnapshot.Host, "host", defaultSnapshot.Host, "Remote host to forward serial data to.")
	flag.Var(portValue{&defaultSnapshot.Port}, "port", "Remote TCP port.")
	flag.StringVar(&defaultSnapshot.Greeting, "connect-message", defaultSnapshot.Greeting, "Message sent right after connecting.")
	flag.StringVar(&colorFlag, "color", colorFlag, "Status indicator color (#RRGGBB[AA]), empty for none.")
}

// NewStatic creates a Static source from command line defaults.
func NewStatic() (*Static, error) {
	snapshot := defaultSnapshot
	c, err := ParseColor(colorFlag)
	if err != nil {
		return nil, err
	}
	snapshot.Color = c
	return NewStaticWith(snapshot), nil
}

// NewStaticWith creates a Static source with the given values.
func NewStaticWith(snapshot Snapshot) *Static {
	return &Static{snapshot: snapshot}
}

// Load implements Source.
func (s *Static) Load(ctx context.Context) (*Snapshot, error) {
	s.lock.RLock()
	snapshot := s.snapshot
	s.lock.RUnlock()
	return &snapshot, nil
}

// Update mutates the values under lock.
func (s *Static) Update(fn func(*Snapshot)) {
	s.lock.Lock()
	fn(&s.snapshot)
	s.lock.Unlock()
}
