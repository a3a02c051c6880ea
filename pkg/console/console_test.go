package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/abiosoft/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/sockbridge/pkg/bridge"
	"github.com/robotalks/sockbridge/pkg/config"
	"github.com/robotalks/sockbridge/pkg/stats"
)

type fakeBridge struct {
	state   bridge.State
	current *config.Snapshot
}

func (b *fakeBridge) State() bridge.State       { return b.state }
func (b *fakeBridge) Current() *config.Snapshot { return b.current }
func (b *fakeBridge) Buffered() int             { return 42 }

func newTestConsole(t *testing.T, b Bridge, counters *stats.Counters, static *config.Static) (*Console, *bytes.Buffer) {
	var out bytes.Buffer
	c := NewWithConfig(&readline.Config{
		Prompt:         prompt,
		Stdin:          io.NopCloser(strings.NewReader("")),
		Stdout:         &out,
		Stderr:         &out,
		FuncIsTerminal: func() bool { return false },
	}, b, counters, static)
	c.Shell.SetOut(&out)
	return c, &out
}

func TestStatus(t *testing.T) {
	b := &fakeBridge{
		state:   bridge.StateConnected,
		current: &config.Snapshot{Enabled: true, Host: "caster.example", Port: 2101},
	}
	c, out := newTestConsole(t, b, nil, nil)
	require.NoError(t, c.Shell.Process("status"))
	assert.Contains(t, out.String(), "state:    CONNECTED")
	assert.Contains(t, out.String(), "remote:   enabled=true host=caster.example:2101")
	assert.Contains(t, out.String(), "buffered: 42")
}

func TestStats(t *testing.T) {
	var counters stats.Counters
	counters.AddSent(7)
	counters.AddDropped(3)
	c, out := newTestConsole(t, &fakeBridge{}, &counters, nil)
	require.NoError(t, c.Shell.Process("stats"))
	assert.Contains(t, out.String(), "dropped:  3")
	assert.Contains(t, out.String(), "sent:     7")

	c, _ = newTestConsole(t, &fakeBridge{}, nil, nil)
	assert.Error(t, c.Shell.Process("stats"))
}

func TestMutations(t *testing.T) {
	static := config.NewStaticWith(config.Snapshot{Enabled: true, Host: "a", Port: 1})
	c, out := newTestConsole(t, &fakeBridge{}, nil, static)

	require.NoError(t, c.Shell.Process("host", "caster.example"))
	require.NoError(t, c.Shell.Process("port", "2101"))
	require.NoError(t, c.Shell.Process("greeting", "GET", "/MNT"))
	require.NoError(t, c.Shell.Process("disable"))
	assert.Error(t, c.Shell.Process("port", "http"))
	assert.Error(t, c.Shell.Process("host"))

	snap, err := static.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &config.Snapshot{
		Enabled:  false,
		Host:     "caster.example",
		Port:     2101,
		Greeting: "GET /MNT\r\n",
	}, snap)

	require.NoError(t, c.Shell.Process("enable"))
	require.NoError(t, c.Shell.Process("config"))
	assert.Contains(t, out.String(), "enabled=true host=caster.example:2101")
}

func TestReadOnlyConfig(t *testing.T) {
	c, _ := newTestConsole(t, &fakeBridge{}, nil, nil)
	assert.EqualError(t, c.Shell.Process("enable"), "configuration is read-only")
}

func TestFormatSnapshot(t *testing.T) {
	assert.Equal(t, "-", FormatSnapshot(nil))
	assert.Equal(t, `enabled=false host=h:1 greeting="hi" color=#00ff00ff`,
		FormatSnapshot(&config.Snapshot{Host: "h", Port: 1, Greeting: "hi", Color: 0x00ff00ff}))
}
