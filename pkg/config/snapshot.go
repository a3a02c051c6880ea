// Package config provides the per-attempt configuration snapshot consumed by
// the bridge, and the sources it can be read from.
package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keys of the configuration items.
const (
	KeyEnabled  = "enabled"
	KeyHost     = "host"
	KeyPort     = "port"
	KeyGreeting = "connect_message"
	KeyColor    = "color"
)

// ErrNotFound indicates the source holds no configuration.
var ErrNotFound = errors.New("configuration not found")

// Color is an opaque RGBA token for the status indicator. Zero means no indicator.
type Color uint32

// ParseColor accepts "#RRGGBB", "#RRGGBBAA", "0x..." or a decimal value.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 6 {
			hex += "ff"
		}
		if len(hex) != 8 {
			return 0, fmt.Errorf("invalid color %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q: %v", s, err)
		}
		return Color(v), nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %v", s, err)
	}
	return Color(v), nil
}

// String formats the color as #RRGGBBAA.
func (c Color) String() string {
	return fmt.Sprintf("#%08x", uint32(c))
}

// Snapshot is a read-only view of the configuration for one reconnect attempt.
type Snapshot struct {
	Enabled  bool
	Host     string
	Port     uint16
	Greeting string
	Color    Color
}

// Source provides configuration snapshots.
type Source interface {
	// Load reads a fresh snapshot. It is called once per reconnect attempt.
	Load(ctx context.Context) (*Snapshot, error)
}

// SourceFunc is func type of Source.
type SourceFunc func(ctx context.Context) (*Snapshot, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// FromMap builds a snapshot from string values keyed by the Key* constants.
// Missing keys keep their zero values.
func FromMap(m map[string]string) (*Snapshot, error) {
	s := &Snapshot{
		Host:     strings.TrimSpace(m[KeyHost]),
		Greeting: m[KeyGreeting],
	}
	if v, ok := m[KeyEnabled]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", KeyEnabled, err)
		}
		s.Enabled = b
	}
	if v, ok := m[KeyPort]; ok && v != "" {
		p, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", KeyPort, err)
		}
		s.Port = uint16(p)
	}
	if v, ok := m[KeyColor]; ok {
		c, err := ParseColor(v)
		if err != nil {
			return nil, err
		}
		s.Color = c
	}
	return s, nil
}
