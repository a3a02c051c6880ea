package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sockbridge/pkg/backoff"
	"github.com/robotalks/sockbridge/pkg/config"
	"github.com/robotalks/sockbridge/pkg/netwait"
	"github.com/robotalks/sockbridge/pkg/ringbuf"
	"github.com/robotalks/sockbridge/pkg/sock"
	"github.com/robotalks/sockbridge/pkg/stats"
	"github.com/robotalks/sockbridge/pkg/status"
)

// Deps are the collaborators of a Bridge. Only Source is required.
type Deps struct {
	Source config.Source
	// Dialer connects the remote endpoint, a sock.TCPDialer when nil.
	Dialer sock.Dialer
	// Waiter gates every attempt on network readiness.
	Waiter netwait.Waiter
	// Sink receives connection events, status.LogSink when nil.
	Sink status.Sink
	// Indicator reflects "connected", none when nil.
	Indicator status.Indicator
	Stats     stats.Collector
	// Backoff delays every attempt, including the first.
	Backoff  backoff.Policy
	Notifier StateNotifier
}

// Bridge forwards serial bytes to a TCP endpoint.
type Bridge struct {
	conf Config
	deps Deps

	buf   atomic.Pointer[ringbuf.Buffer]
	state atomic.Int32

	lock    sync.RWMutex
	current *config.Snapshot
}

// New creates a Bridge. The buffer is allocated by Run; bytes handed in
// before that are dropped.
func New(conf *Config, deps Deps) *Bridge {
	b := &Bridge{conf: *conf, deps: deps}
	b.conf.withDefaults()
	if b.deps.Dialer == nil {
		b.deps.Dialer = sock.NewTCPDialer()
	}
	if b.deps.Waiter == nil {
		b.deps.Waiter = netwait.Ready
	}
	if b.deps.Sink == nil {
		b.deps.Sink = status.LogSink{}
	}
	if b.deps.Stats == nil {
		b.deps.Stats = stats.Discard
	}
	if b.deps.Backoff == nil {
		b.deps.Backoff = backoff.NewExponential(backoff.DefaultInitial, backoff.DefaultMax, backoff.DefaultFactor)
	}
	return b
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "bridge"
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Current returns a copy of the configuration snapshot of the current
// connection, nil when not connecting or connected.
func (b *Bridge) Current() *config.Snapshot {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.current == nil {
		return nil
	}
	snap := *b.current
	return &snap
}

// Buffered returns the number of bytes waiting to be sent.
func (b *Bridge) Buffered() int {
	if buf := b.buf.Load(); buf != nil {
		return buf.Len()
	}
	return 0
}

// Run implements framework.Runnable. It retries forever and returns only
// when ctx is done or the buffer cannot be allocated.
func (b *Bridge) Run(ctx context.Context) error {
	if b.deps.Source == nil {
		return ErrNoSource
	}
	buf, err := ringbuf.New(b.conf.BufferSize)
	if err != nil {
		glog.Errorf("allocate %d bytes buffer: %v", b.conf.BufferSize, err)
		return fmt.Errorf("%w: %v", ErrNoBuffer, err)
	}
	b.buf.Store(buf)
	defer b.buf.Store(nil)

	for {
		err := b.cycle(ctx, buf)
		if ctx.Err() != nil {
			b.setState(ctx, StateIdle)
			return ctx.Err()
		}
		b.logFailure(err)
	}
}

// cycle runs IDLE -> CONNECTING -> CONNECTED -> CLOSING once and always
// ends in StateIdle.
func (b *Bridge) cycle(ctx context.Context, buf *ringbuf.Buffer) error {
	defer b.setState(ctx, StateIdle)

	delay := b.deps.Backoff.Next()
	b.deps.Stats.Backoff(delay)
	glog.V(2).Infof("next attempt in %s", delay)
	if err := sleep(ctx, delay); err != nil {
		return err
	}
	if err := b.deps.Waiter.WaitReady(ctx); err != nil {
		return err
	}
	snap, err := b.loadConfig(ctx)
	if err != nil {
		b.deps.Stats.Failed(StageConfig)
		return err
	}
	b.setCurrent(snap)
	defer b.setCurrent(nil)

	b.setState(ctx, StateConnecting)
	b.deps.Stats.Attempt()
	b.report(status.EventConnecting, snap, nil)
	conn, err := b.connect(ctx, snap)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			b.deps.Stats.Failed(se.Stage)
		}
		return err
	}

	b.report(status.EventConnected, snap, nil)
	b.deps.Backoff.Reset()
	b.deps.Stats.Connected(true)
	if ind := b.deps.Indicator; ind != nil {
		ind.SetActive(true)
	}
	b.setState(ctx, StateConnected)

	err = b.forward(ctx, conn, buf)

	b.setState(ctx, StateClosing)
	if cerr := conn.Close(); cerr != nil {
		glog.V(2).Infof("close connection: %v", cerr)
	}
	if ind := b.deps.Indicator; ind != nil {
		ind.SetActive(false)
	}
	b.deps.Stats.Connected(false)
	if ctx.Err() == nil {
		b.deps.Stats.Failed(StageSend)
	}
	b.report(status.EventDisconnected, snap, err)
	return err
}

func (b *Bridge) loadConfig(ctx context.Context) (*config.Snapshot, error) {
	snap, err := b.deps.Source.Load(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageConfig, Err: err}
	}
	if !snap.Enabled {
		return nil, &StageError{Stage: StageConfig, Err: ErrDisabled}
	}
	if snap.Host == "" {
		return nil, &StageError{Stage: StageConfig, Err: ErrNoHost}
	}
	return snap, nil
}

func (b *Bridge) connect(ctx context.Context, snap *config.Snapshot) (sock.Conn, error) {
	conn, err := b.deps.Dialer.Dial(ctx, snap.Host, snap.Port)
	if err != nil {
		stage := StageConnect
		if errors.Is(err, sock.ErrResolve) {
			stage = StageResolve
		}
		return nil, &StageError{Stage: stage, Err: err}
	}
	if snap.Greeting == "" {
		return conn, nil
	}
	n, err := conn.TryWrite([]byte(snap.Greeting))
	switch {
	case err == nil:
		b.deps.Stats.AddSent(n)
	case errors.Is(err, sock.ErrWouldBlock):
		glog.V(2).Infof("greeting to %s:%d would block, skipped", snap.Host, snap.Port)
	default:
		conn.Close()
		return nil, &StageError{Stage: StageGreeting, Err: err}
	}
	return conn, nil
}

func (b *Bridge) logFailure(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrDisabled) {
		glog.V(1).Info("bridge disabled, waiting")
		return
	}
	glog.Warningf("connection cycle failed: %v", err)
}

func (b *Bridge) setState(ctx context.Context, state State) {
	if State(b.state.Swap(int32(state))) == state {
		return
	}
	glog.V(3).Infof("state %s", state)
	if n := b.deps.Notifier; n != nil {
		n.StateChanged(ctx, state)
	}
}

func (b *Bridge) setCurrent(snap *config.Snapshot) {
	b.lock.Lock()
	b.current = snap
	b.lock.Unlock()
}

func (b *Bridge) report(kind status.EventKind, snap *config.Snapshot, err error) {
	b.deps.Sink.Report(status.Event{
		Kind:       kind,
		SocketKind: b.conf.SocketKind,
		Host:       snap.Host,
		Port:       snap.Port,
		Err:        err,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
