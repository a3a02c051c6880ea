package serial

import (
	"flag"
	"os"
	"strconv"
)

// Defaults of the serial line.
const (
	DefaultDevice    = "/dev/ttyUSB0"
	DefaultBaud      = 115200
	DefaultChunkSize = 1024
)

// Config defines the serial line settings.
type Config struct {
	Device string
	Baud   int
}

var defaultConfig = Config{
	Device: DefaultDevice,
	Baud:   DefaultBaud,
}

func init() {
	if dev := os.Getenv("SOCKBRIDGE_SERIAL_DEVICE"); dev != "" {
		defaultConfig.Device = dev
	}
	if baud, err := strconv.Atoi(os.Getenv("SOCKBRIDGE_SERIAL_BAUD")); err == nil && baud > 0 {
		defaultConfig.Baud = baud
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial device, - for stdin/stdout.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate, 0 to leave the line settings untouched.")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Open opens the configured device.
func (c *Config) Open() (*Port, error) {
	if c.Device == "-" {
		return Stdio(), nil
	}
	return Open(c.Device, c.Baud)
}
