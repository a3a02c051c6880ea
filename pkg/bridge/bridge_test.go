package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/sockbridge/pkg/backoff"
	"github.com/robotalks/sockbridge/pkg/config"
	"github.com/robotalks/sockbridge/pkg/ringbuf"
	"github.com/robotalks/sockbridge/pkg/sock"
	"github.com/robotalks/sockbridge/pkg/stats"
	"github.com/robotalks/sockbridge/pkg/status"
)

type fakeConn struct {
	lock   sync.Mutex
	data   bytes.Buffer
	calls  int
	closed bool
	// write decides the outcome of the n-th TryWrite (1-based).
	write func(p []byte, call int) (int, error)
}

func (c *fakeConn) TryWrite(p []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.calls++
	n, err := len(p), error(nil)
	if c.write != nil {
		n, err = c.write(p, c.calls)
	}
	c.data.Write(p[:n])
	return n, err
}

func (c *fakeConn) Close() error {
	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()
	return nil
}

func (c *fakeConn) Bytes() []byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]byte(nil), c.data.Bytes()...)
}

func (c *fakeConn) IsClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

type eventRecorder struct {
	lock   sync.Mutex
	events []status.Event
}

func (r *eventRecorder) Report(e status.Event) {
	r.lock.Lock()
	r.events = append(r.events, e)
	r.lock.Unlock()
}

func (r *eventRecorder) Kinds() []status.EventKind {
	r.lock.Lock()
	defer r.lock.Unlock()
	kinds := make([]status.EventKind, len(r.events))
	for n, e := range r.events {
		kinds[n] = e.Kind
	}
	return kinds
}

type backoffRecorder struct {
	stats.Collector
	lock   sync.Mutex
	delays []time.Duration
}

func (r *backoffRecorder) Backoff(d time.Duration) {
	r.lock.Lock()
	r.delays = append(r.delays, d)
	r.lock.Unlock()
}

func (r *backoffRecorder) Delays() []time.Duration {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type indicatorRecorder struct {
	lock  sync.Mutex
	calls []bool
}

func (r *indicatorRecorder) SetActive(v bool) {
	r.lock.Lock()
	r.calls = append(r.calls, v)
	r.lock.Unlock()
}

func (r *indicatorRecorder) Calls() []bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]bool(nil), r.calls...)
}

// connQueue hands out conns in order, then keeps returning the last one.
type connQueue struct {
	lock  sync.Mutex
	conns []*fakeConn
	hosts []string
}

func (q *connQueue) Dial(ctx context.Context, host string, port uint16) (sock.Conn, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.hosts = append(q.hosts, fmt.Sprintf("%s:%d", host, port))
	c := q.conns[0]
	if len(q.conns) > 1 {
		q.conns = q.conns[1:]
	}
	return c, nil
}

func (q *connQueue) Hosts() []string {
	q.lock.Lock()
	defer q.lock.Unlock()
	return append([]string(nil), q.hosts...)
}

func testConfig() *Config {
	return &Config{
		BufferSize:  4096,
		ChunkSize:   1024,
		PullTimeout: 5 * time.Millisecond,
		SendBackoff: time.Millisecond,
	}
}

func staticSource(host string, port uint16) config.Source {
	return config.NewStaticWith(config.Snapshot{Enabled: true, Host: host, Port: port})
}

func fastBackoff() backoff.Policy {
	return backoff.NewLinear(time.Millisecond, 0, time.Millisecond)
}

func startBridge(t *testing.T, b *Bridge) (cancel func()) {
	ctx, cancelFn := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancelFn()
			select {
			case err := <-done:
				assert.ErrorIs(t, err, context.Canceled)
			case <-time.After(2 * time.Second):
				t.Error("bridge did not stop")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

func waitState(t *testing.T, b *Bridge, state State) {
	require.Eventually(t, func() bool { return b.State() == state },
		2*time.Second, time.Millisecond, "waiting for %s", state)
}

func TestHandleBytesWithoutBuffer(t *testing.T) {
	var counters stats.Counters
	b := New(testConfig(), Deps{Stats: &counters})
	b.HandleBytes([]byte("lost"))
	assert.EqualValues(t, 4, counters.Dropped.Load())
	assert.EqualValues(t, 0, counters.Ingested.Load())
	assert.Equal(t, 0, b.Buffered())
}

func TestHandleBytesOverflow(t *testing.T) {
	var counters stats.Counters
	b := New(testConfig(), Deps{Stats: &counters})
	buf, err := ringbuf.New(4096)
	require.NoError(t, err)
	b.buf.Store(buf)

	start := time.Now()
	b.HandleBytes(make([]byte, 5000))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 4096, counters.Ingested.Load())
	assert.EqualValues(t, 904, counters.Dropped.Load())
	assert.Equal(t, 4096, b.Buffered())
}

func TestWriteAllResumesAfterWouldBlock(t *testing.T) {
	var counters stats.Counters
	b := New(testConfig(), Deps{Stats: &counters})
	conn := &fakeConn{write: func(p []byte, call int) (int, error) {
		switch call {
		case 1:
			return 600, nil
		case 2, 3:
			return 0, sock.ErrWouldBlock
		}
		return len(p), nil
	}}
	chunk := make([]byte, 1024)
	for n := range chunk {
		chunk[n] = byte(n)
	}
	require.NoError(t, b.writeAll(context.Background(), conn, chunk))
	assert.Equal(t, chunk, conn.Bytes())
	assert.Equal(t, 4, conn.calls)
	assert.EqualValues(t, 1024, counters.Sent.Load())
}

func TestWriteAllFatalError(t *testing.T) {
	b := New(testConfig(), Deps{})
	reset := errors.New("connection reset")
	conn := &fakeConn{write: func(p []byte, call int) (int, error) {
		if call == 1 {
			return 10, nil
		}
		return 0, reset
	}}
	err := b.writeAll(context.Background(), conn, make([]byte, 100))
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSend, se.Stage)
	assert.ErrorIs(t, err, reset)
	assert.Len(t, conn.Bytes(), 10)
}

func TestWriteAllCanceledWhileBlocked(t *testing.T) {
	b := New(testConfig(), Deps{})
	conn := &fakeConn{write: func(p []byte, call int) (int, error) {
		return 0, sock.ErrWouldBlock
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.writeAll(ctx, conn, []byte("x")), context.DeadlineExceeded)
}

func TestForwardsInOrder(t *testing.T) {
	conn := &fakeConn{}
	var counters stats.Counters
	sink := &eventRecorder{}
	ind := &indicatorRecorder{}
	b := New(testConfig(), Deps{
		Source:    staticSource("caster.example", 2101),
		Dialer:    &connQueue{conns: []*fakeConn{conn}},
		Sink:      sink,
		Indicator: ind,
		Stats:     &counters,
		Backoff:   fastBackoff(),
	})
	startBridge(t, b)
	waitState(t, b, StateConnected)

	payload := make([]byte, 100)
	for n := range payload {
		payload[n] = byte('a' + n%26)
	}
	b.HandleBytes(payload[:40])
	b.HandleBytes(payload[40:])
	require.Eventually(t, func() bool { return counters.Sent.Load() == 100 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, payload, conn.Bytes())
	assert.EqualValues(t, 100, counters.Ingested.Load())
	assert.True(t, counters.IsConnected())
	assert.Equal(t, []status.EventKind{status.EventConnecting, status.EventConnected}, sink.Kinds())
	assert.Equal(t, []bool{true}, ind.Calls())

	snap := b.Current()
	require.NotNil(t, snap)
	assert.Equal(t, "caster.example", snap.Host)
}

func TestReconnectAfterWriteError(t *testing.T) {
	broken := &fakeConn{write: func(p []byte, call int) (int, error) {
		return 0, errors.New("broken pipe")
	}}
	healthy := &fakeConn{}
	var counters stats.Counters
	sink := &eventRecorder{}
	ind := &indicatorRecorder{}
	b := New(testConfig(), Deps{
		Source:    staticSource("h", 80),
		Dialer:    &connQueue{conns: []*fakeConn{broken, healthy}},
		Sink:      sink,
		Indicator: ind,
		Stats:     &counters,
		Backoff:   fastBackoff(),
	})
	startBridge(t, b)
	waitState(t, b, StateConnected)

	b.HandleBytes([]byte("first"))
	require.Eventually(t, broken.IsClosed, 2*time.Second, time.Millisecond)
	waitState(t, b, StateConnected)
	b.HandleBytes([]byte("second"))
	require.Eventually(t, func() bool { return string(healthy.Bytes()) == "second" }, 2*time.Second, time.Millisecond)

	assert.Equal(t, []status.EventKind{
		status.EventConnecting, status.EventConnected,
		status.EventDisconnected,
		status.EventConnecting, status.EventConnected,
	}, sink.Kinds())
	assert.Equal(t, []bool{true, false, true}, ind.Calls())
	assert.EqualValues(t, 2, counters.Attempts.Load())
	assert.EqualValues(t, 1, counters.Failures.Load())

	sink.lock.Lock()
	disconnected := sink.events[2]
	sink.lock.Unlock()
	assert.Equal(t, "$PESP,SOCK,CLI,TCP,DISCONNECTED,h:80", disconnected.Sentence(""))
	assert.Error(t, disconnected.Err)
}

func TestMissingHostBacksOff(t *testing.T) {
	var lock sync.Mutex
	loads := 0
	source := config.SourceFunc(func(context.Context) (*config.Snapshot, error) {
		lock.Lock()
		defer lock.Unlock()
		loads++
		if loads <= 4 {
			return &config.Snapshot{Enabled: true}, nil
		}
		return &config.Snapshot{Enabled: true, Host: "h", Port: 1}, nil
	})
	rec := &backoffRecorder{Collector: stats.Discard}
	sink := &eventRecorder{}
	dialer := &connQueue{conns: []*fakeConn{{}}}
	b := New(testConfig(), Deps{
		Source:  source,
		Dialer:  dialer,
		Sink:    sink,
		Stats:   rec,
		Backoff: backoff.NewExponential(time.Millisecond, 4*time.Millisecond, 2),
	})
	startBridge(t, b)
	waitState(t, b, StateConnected)

	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond,
	}, rec.Delays())
	assert.Equal(t, []status.EventKind{status.EventConnecting, status.EventConnected}, sink.Kinds())
	assert.Equal(t, []string{"h:1"}, dialer.Hosts())
}

func TestBackoffResetAfterConnect(t *testing.T) {
	broken := &fakeConn{write: func(p []byte, call int) (int, error) {
		return 0, errors.New("reset")
	}}
	rec := &backoffRecorder{Collector: stats.Discard}
	b := New(testConfig(), Deps{
		Source:  staticSource("h", 1),
		Dialer:  &connQueue{conns: []*fakeConn{broken, {}}},
		Stats:   rec,
		Backoff: backoff.NewExponential(time.Millisecond, 8*time.Millisecond, 2),
	})
	startBridge(t, b)
	waitState(t, b, StateConnected)
	b.HandleBytes([]byte("x"))
	require.Eventually(t, func() bool { return len(rec.Delays()) == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, rec.Delays())
}

func TestDisabledAndReloaded(t *testing.T) {
	src := config.NewStaticWith(config.Snapshot{Enabled: false, Host: "a", Port: 1})
	dialer := &connQueue{conns: []*fakeConn{{}}}
	var counters stats.Counters
	b := New(testConfig(), Deps{
		Source:  src,
		Dialer:  dialer,
		Stats:   &counters,
		Backoff: fastBackoff(),
	})
	startBridge(t, b)
	require.Eventually(t, func() bool { return counters.Failures.Load() >= 2 }, 2*time.Second, time.Millisecond)
	assert.Empty(t, dialer.Hosts())
	assert.Equal(t, StateIdle, b.State())

	src.Update(func(s *config.Snapshot) {
		s.Enabled = true
		s.Host = "b"
		s.Port = 2
	})
	waitState(t, b, StateConnected)
	assert.Equal(t, []string{"b:2"}, dialer.Hosts())
}

func TestConnectFailureStages(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		stage string
	}{
		{"resolve", fmt.Errorf("%w: no such host", sock.ErrResolve), StageResolve},
		{"connect", fmt.Errorf("%w: refused", sock.ErrConnect), StageConnect},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &eventRecorder{}
			b := New(testConfig(), Deps{
				Source: staticSource("h", 1),
				Dialer: sock.DialFunc(func(context.Context, string, uint16) (sock.Conn, error) {
					return nil, tc.err
				}),
				Sink:    sink,
				Backoff: fastBackoff(),
			})
			snap, err := b.loadConfig(context.Background())
			require.NoError(t, err)
			_, err = b.connect(context.Background(), snap)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.stage, se.Stage)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGreeting(t *testing.T) {
	src := config.NewStaticWith(config.Snapshot{Enabled: true, Host: "h", Port: 1, Greeting: "GET /MNT HTTP/1.0\r\n\r\n"})

	t.Run("sent", func(t *testing.T) {
		conn := &fakeConn{}
		b := New(testConfig(), Deps{Source: src, Dialer: &connQueue{conns: []*fakeConn{conn}}, Backoff: fastBackoff()})
		startBridge(t, b)
		waitState(t, b, StateConnected)
		assert.Equal(t, "GET /MNT HTTP/1.0\r\n\r\n", string(conn.Bytes()))
	})

	t.Run("would block", func(t *testing.T) {
		conn := &fakeConn{write: func(p []byte, call int) (int, error) {
			if call == 1 {
				return 0, sock.ErrWouldBlock
			}
			return len(p), nil
		}}
		b := New(testConfig(), Deps{Source: src, Dialer: &connQueue{conns: []*fakeConn{conn}}, Backoff: fastBackoff()})
		startBridge(t, b)
		waitState(t, b, StateConnected)
		b.HandleBytes([]byte("data"))
		require.Eventually(t, func() bool { return string(conn.Bytes()) == "data" }, 2*time.Second, time.Millisecond)
	})

	t.Run("fatal", func(t *testing.T) {
		failing := &fakeConn{write: func(p []byte, call int) (int, error) {
			return 0, errors.New("reset by peer")
		}}
		b := New(testConfig(), Deps{Backoff: fastBackoff(), Source: src})
		snap, err := b.loadConfig(context.Background())
		require.NoError(t, err)
		b.deps.Dialer = &connQueue{conns: []*fakeConn{failing}}
		_, err = b.connect(context.Background(), snap)
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageGreeting, se.Stage)
		assert.True(t, failing.IsClosed())
	})
}

func TestConfigReadPerAttempt(t *testing.T) {
	var lock sync.Mutex
	n := 0
	source := config.SourceFunc(func(context.Context) (*config.Snapshot, error) {
		lock.Lock()
		defer lock.Unlock()
		n++
		return &config.Snapshot{Enabled: true, Host: fmt.Sprintf("host%d", n), Port: 1}, nil
	})
	broken := func() *fakeConn {
		return &fakeConn{write: func(p []byte, call int) (int, error) { return 0, errors.New("reset") }}
	}
	dialer := &connQueue{conns: []*fakeConn{broken(), broken(), {}}}
	b := New(testConfig(), Deps{Source: source, Dialer: dialer, Backoff: fastBackoff()})
	startBridge(t, b)
	waitState(t, b, StateConnected)
	for len(dialer.Hosts()) < 3 {
		b.HandleBytes([]byte("x"))
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, []string{"host1:1", "host2:1", "host3:1"}, dialer.Hosts()[:3])
}

func TestStateNotifications(t *testing.T) {
	var lock sync.Mutex
	var states []State
	notifier := StateChangedFunc(func(ctx context.Context, s State) {
		lock.Lock()
		states = append(states, s)
		lock.Unlock()
	})
	b := New(testConfig(), Deps{
		Source:   staticSource("h", 1),
		Dialer:   &connQueue{conns: []*fakeConn{{}}},
		Backoff:  fastBackoff(),
		Notifier: notifier,
	})
	stop := startBridge(t, b)
	waitState(t, b, StateConnected)
	stop()

	lock.Lock()
	defer lock.Unlock()
	assert.Equal(t, []State{StateConnecting, StateConnected, StateClosing, StateIdle}, states)
	assert.Nil(t, b.Current())
}

func TestRunFatalWithoutBuffer(t *testing.T) {
	conf := testConfig()
	conf.BufferSize = 0
	b := New(conf, Deps{Source: staticSource("h", 1)})
	assert.ErrorIs(t, b.Run(context.Background()), ErrNoBuffer)

	b = New(testConfig(), Deps{})
	assert.ErrorIs(t, b.Run(context.Background()), ErrNoSource)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "CLOSING", StateClosing.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestEndToEndOverTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	port := uint16(l.Addr().(*net.TCPAddr).Port)

	received := make(chan []byte, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 64*1024)
		n, err := io.ReadAtLeast(c, buf, len("HELLO\r\n")+3000)
		if err == nil {
			received <- buf[:n]
		}
	}()

	src := config.NewStaticWith(config.Snapshot{Enabled: true, Host: "127.0.0.1", Port: port, Greeting: "HELLO\r\n"})
	b := New(NewConfig(), Deps{Source: src, Backoff: fastBackoff()})
	startBridge(t, b)
	waitState(t, b, StateConnected)

	payload := bytes.Repeat([]byte("0123456789"), 300)
	b.HandleBytes(payload)
	select {
	case data := <-received:
		assert.Equal(t, append([]byte("HELLO\r\n"), payload...), data)
	case <-time.After(5 * time.Second):
		t.Fatal("no data received")
	}
}
