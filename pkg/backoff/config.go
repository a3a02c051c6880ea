package backoff

import (
	"flag"
	"fmt"
	"time"
)

// Config selects and parameterizes a Policy.
type Config struct {
	Kind          string
	Initial       time.Duration
	Max           time.Duration
	Factor        float64
	Step          time.Duration
	ShortAttempts int
}

var defaultConfig = Config{
	Kind:          "exponential",
	Initial:       DefaultInitial,
	Max:           DefaultMax,
	Factor:        DefaultFactor,
	Step:          DefaultInitial,
	ShortAttempts: 5,
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Kind, "backoff", defaultConfig.Kind, "Reconnect backoff policy: exponential, linear or stepped.")
	flag.DurationVar(&defaultConfig.Initial, "backoff-initial", defaultConfig.Initial, "Initial reconnect delay (short delay for stepped).")
	flag.DurationVar(&defaultConfig.Max, "backoff-max", defaultConfig.Max, "Reconnect delay ceiling (long delay for stepped).")
	flag.Float64Var(&defaultConfig.Factor, "backoff-factor", defaultConfig.Factor, "Growth factor for exponential backoff.")
	flag.DurationVar(&defaultConfig.Step, "backoff-step", defaultConfig.Step, "Increment for linear backoff.")
	flag.IntVar(&defaultConfig.ShortAttempts, "backoff-short-attempts", defaultConfig.ShortAttempts, "Number of short delays for stepped backoff.")
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewPolicy creates the Policy described by the config.
func (c *Config) NewPolicy() (Policy, error) {
	switch c.Kind {
	case "", "exponential":
		return NewExponential(c.Initial, c.Max, c.Factor), nil
	case "linear":
		return NewLinear(c.Initial, c.Step, c.Max), nil
	case "stepped":
		return NewStepped(c.Initial, c.Max, c.ShortAttempts), nil
	}
	return nil, fmt.Errorf("unknown backoff policy %q", c.Kind)
}
