// Package console provides an interactive shell to inspect the bridge and
// change its configuration while it runs.
package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"

	"github.com/robotalks/sockbridge/pkg/bridge"
	"github.com/robotalks/sockbridge/pkg/config"
	"github.com/robotalks/sockbridge/pkg/framework"
	"github.com/robotalks/sockbridge/pkg/stats"
)

// Bridge is the view of the running bridge used by the console.
type Bridge interface {
	State() bridge.State
	Current() *config.Snapshot
	Buffered() int
}

// Console is the ishell backed runtime shell.
type Console struct {
	Shell    *ishell.Shell
	Bridge   Bridge
	Counters *stats.Counters
	// Static is the mutable configuration, nil when configuration comes
	// from a file or Redis.
	Static *config.Static
}

const (
	consoleKey = "$console"
	prompt     = "sockbridge> "
)

var commands = []*ishell.Cmd{
	&StatusCmd,
	&StatsCmd,
	&ConfigCmd,
	&EnableCmd,
	&DisableCmd,
	&HostCmd,
	&PortCmd,
	&GreetingCmd,
}

// New creates a console on the process terminal.
func New(b Bridge, counters *stats.Counters, static *config.Static) *Console {
	return NewWithConfig(&readline.Config{Prompt: prompt}, b, counters, static)
}

// NewWithConfig creates a console with a custom readline config.
func NewWithConfig(conf *readline.Config, b Bridge, counters *stats.Counters, static *config.Static) *Console {
	c := &Console{
		Shell:    ishell.NewWithConfig(conf),
		Bridge:   b,
		Counters: counters,
		Static:   static,
	}
	c.Shell.Set(consoleKey, c)
	for _, cmd := range commands {
		c.Shell.AddCmd(cmd)
	}
	return c
}

// From gets Console from ishell context.
func From(c *ishell.Context) *Console {
	return c.Get(consoleKey).(*Console)
}

// Name implements framework.Named.
func (c *Console) Name() string {
	return "console"
}

// Run implements framework.Runnable. It returns when the user exits the
// shell or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	return framework.RunWithContextCancel(ctx, c.Shell.Close, func() error {
		c.Shell.Run()
		return nil
	})
}

// MustBeStatic wraps command func requires a mutable configuration.
func MustBeStatic(fn func(c *ishell.Context, static *config.Static)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		static := From(c).Static
		if static == nil {
			c.Err(fmt.Errorf("configuration is read-only"))
			return
		}
		fn(c, static)
	}
}

// FormatSnapshot prints a snapshot in one line.
func FormatSnapshot(s *config.Snapshot) string {
	if s == nil {
		return "-"
	}
	parts := []string{
		"enabled=" + strconv.FormatBool(s.Enabled),
		fmt.Sprintf("host=%s:%d", s.Host, s.Port),
	}
	if s.Greeting != "" {
		parts = append(parts, fmt.Sprintf("greeting=%q", s.Greeting))
	}
	if s.Color != 0 {
		parts = append(parts, "color="+s.Color.String())
	}
	return strings.Join(parts, " ")
}

var (
	// StatusCmd shows the lifecycle state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "show connection state",
		Func: func(c *ishell.Context) {
			b := From(c).Bridge
			c.Printf("state:    %s\n", b.State())
			c.Printf("remote:   %s\n", FormatSnapshot(b.Current()))
			c.Printf("buffered: %d\n", b.Buffered())
		},
	}

	// StatsCmd shows the counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "show traffic counters",
		Func: func(c *ishell.Context) {
			counters := From(c).Counters
			if counters == nil {
				c.Err(fmt.Errorf("no counters"))
				return
			}
			s := counters.Snapshot()
			c.Printf("ingested: %d\ndropped:  %d\nsent:     %d\nattempts: %d\nfailures: %d\nbackoff:  %s\n",
				s.Ingested, s.Dropped, s.Sent, s.Attempts, s.Failures, s.Backoff)
		},
	}

	// ConfigCmd shows the configuration used by the next attempt.
	ConfigCmd = ishell.Cmd{
		Name: "config",
		Help: "show configuration",
		Func: MustBeStatic(func(c *ishell.Context, static *config.Static) {
			snap, _ := static.Load(context.Background())
			c.Println(FormatSnapshot(snap))
		}),
	}

	// EnableCmd enables forwarding.
	EnableCmd = ishell.Cmd{
		Name: "enable",
		Help: "enable forwarding from the next attempt",
		Func: MustBeStatic(func(c *ishell.Context, static *config.Static) {
			static.Update(func(s *config.Snapshot) { s.Enabled = true })
		}),
	}

	// DisableCmd disables forwarding.
	DisableCmd = ishell.Cmd{
		Name: "disable",
		Help: "disable forwarding from the next attempt",
		Func: MustBeStatic(func(c *ishell.Context, static *config.Static) {
			static.Update(func(s *config.Snapshot) { s.Enabled = false })
		}),
	}

	// HostCmd changes the remote host.
	HostCmd = ishell.Cmd{
		Name: "host",
		Help: "HOST",
		Func: MustBeStatic(func(c *ishell.Context, static *config.Static) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: host HOST"))
				return
			}
			static.Update(func(s *config.Snapshot) { s.Host = c.Args[0] })
		}),
	}

	// PortCmd changes the remote port.
	PortCmd = ishell.Cmd{
		Name: "port",
		Help: "PORT",
		Func: MustBeStatic(func(c *ishell.Context, static *config.Static) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: port PORT"))
				return
			}
			p, err := strconv.ParseUint(c.Args[0], 10, 16)
			if err != nil {
				c.Err(fmt.Errorf("invalid port %q", c.Args[0]))
				return
			}
			static.Update(func(s *config.Snapshot) { s.Port = uint16(p) })
		}),
	}

	// GreetingCmd changes the greeting, no argument clears it.
	GreetingCmd = ishell.Cmd{
		Name: "greeting",
		Help: "[TEXT...]",
		Func: MustBeStatic(func(c *ishell.Context, static *config.Static) {
			text := strings.Join(c.Args, " ")
			if text != "" {
				text += "\r\n"
			}
			static.Update(func(s *config.Snapshot) { s.Greeting = text })
		}),
	}
)
