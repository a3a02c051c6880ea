package bridge

import (
	"flag"
	"time"

	"github.com/robotalks/sockbridge/pkg/status"
)

// Config defines the bridge tunables.
type Config struct {
	// BufferSize is the capacity of the hand-off ring in bytes. Run fails
	// with ErrNoBuffer unless it is positive.
	BufferSize int
	// ChunkSize is the maximum number of bytes pulled per write.
	ChunkSize int
	// PullTimeout bounds the wait for buffered bytes.
	PullTimeout time.Duration
	// SendBackoff is the pause after a would-block write.
	SendBackoff time.Duration
	// SocketKind is reported in connection events.
	SocketKind string
	// Marker prefixes connection-event sentences.
	Marker string
}

var defaultConfig = Config{
	BufferSize:  4096,
	ChunkSize:   1024,
	PullTimeout: 100 * time.Millisecond,
	SendBackoff: 5 * time.Millisecond,
	SocketKind:  "TCP",
	Marker:      status.DefaultMarker,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.BufferSize, "buffer-size", defaultConfig.BufferSize, "Capacity of the serial to socket buffer in bytes.")
	flag.IntVar(&defaultConfig.ChunkSize, "chunk-size", defaultConfig.ChunkSize, "Maximum bytes written to the socket at once.")
	flag.DurationVar(&defaultConfig.PullTimeout, "pull-timeout", defaultConfig.PullTimeout, "Wait for buffered bytes before polling again.")
	flag.DurationVar(&defaultConfig.SendBackoff, "send-backoff", defaultConfig.SendBackoff, "Pause after a write would block.")
	flag.StringVar(&defaultConfig.Marker, "marker", defaultConfig.Marker, "Prefix of connection-event sentences.")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// withDefaults fills unset tunables, except BufferSize.
func (c *Config) withDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultConfig.ChunkSize
	}
	if c.PullTimeout <= 0 {
		c.PullTimeout = defaultConfig.PullTimeout
	}
	if c.SendBackoff <= 0 {
		c.SendBackoff = defaultConfig.SendBackoff
	}
	if c.SocketKind == "" {
		c.SocketKind = "TCP"
	}
	if c.Marker == "" {
		c.Marker = status.DefaultMarker
	}
}
