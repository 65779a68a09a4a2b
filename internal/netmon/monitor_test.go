package netmon

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber returns whatever state the test last set.
type fakeProber struct {
	mu    sync.Mutex
	state State
}

func (p *fakeProber) set(st State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = st
}

func (p *fakeProber) Probe(context.Context) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

var (
	online  = State{Connected: true, Reachable: true}
	offline = State{Connected: false, Reachable: false}
)

func newTestMonitor(t *testing.T, p Prober, poll, debounce time.Duration) *Monitor {
	t.Helper()
	m := NewMonitor(p, &MonitorConfig{PollInterval: poll, Debounce: debounce})
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func waitState(t *testing.T, ch <-chan State, timeout time.Duration) State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(timeout):
		t.Fatal("timed out waiting for state notification")
		return State{}
	}
}

func TestState_Online(t *testing.T) {
	assert.True(t, State{Connected: true, Reachable: true}.Online())
	assert.False(t, State{Connected: true, Reachable: false}.Online())
	assert.False(t, State{Connected: false, Reachable: true}.Online())
	assert.False(t, State{}.Online())
}

func TestMonitor_initialCommitSkipsDebounce(t *testing.T) {
	p := &fakeProber{state: online}
	m := newTestMonitor(t, p, time.Hour, time.Hour)

	require.Eventually(t, m.IsOnline, 2*time.Second, 5*time.Millisecond,
		"first observation should commit without waiting out the debounce")
}

func TestMonitor_debouncedTransition(t *testing.T) {
	p := &fakeProber{state: offline}
	m := newTestMonitor(t, p, 5*time.Millisecond, 30*time.Millisecond)

	ch, cancel := m.Subscribe()
	defer cancel()

	p.set(online)

	st := waitState(t, ch, 2*time.Second)
	assert.True(t, st.Online())
	assert.True(t, m.IsOnline())
}

func TestMonitor_blipIsSwallowed(t *testing.T) {
	p := &fakeProber{state: online}
	m := newTestMonitor(t, p, 5*time.Millisecond, 100*time.Millisecond)

	require.Eventually(t, m.IsOnline, 2*time.Second, 5*time.Millisecond)

	ch, cancel := m.Subscribe()
	defer cancel()

	// Go offline for far less than the debounce window.
	p.set(offline)
	time.Sleep(20 * time.Millisecond)
	p.set(online)

	select {
	case st := <-ch:
		t.Fatalf("blip should not notify, got %+v", st)
	case <-time.After(300 * time.Millisecond):
	}
	assert.True(t, m.IsOnline())
}

func TestMonitor_reportHint(t *testing.T) {
	p := &fakeProber{state: offline}
	// Polling effectively disabled, only Report and debounce pokes
	// drive the monitor.
	m := newTestMonitor(t, p, time.Hour, 20*time.Millisecond)

	require.Eventually(t, func() bool { return !m.IsOnline() }, 2*time.Second, 5*time.Millisecond)

	ch, cancel := m.Subscribe()
	defer cancel()

	// The hint says online and the next confirming probe agrees.
	p.set(online)
	m.Report(true)

	st := waitState(t, ch, 2*time.Second)
	assert.True(t, st.Online())
}

func TestMonitor_reportHintOverruledByProbe(t *testing.T) {
	p := &fakeProber{state: offline}
	m := newTestMonitor(t, p, time.Hour, 20*time.Millisecond)

	require.Eventually(t, func() bool { return !m.IsOnline() }, 2*time.Second, 5*time.Millisecond)

	ch, cancel := m.Subscribe()
	defer cancel()

	// Hint claims online but the confirming probe still says offline.
	m.Report(true)

	select {
	case st := <-ch:
		t.Fatalf("unconfirmed hint should not notify, got %+v", st)
	case <-time.After(200 * time.Millisecond):
	}
	assert.False(t, m.IsOnline())
}

func TestMonitor_unsubscribeClosesChannel(t *testing.T) {
	p := &fakeProber{state: offline}
	m := newTestMonitor(t, p, time.Hour, time.Millisecond)

	ch, cancel := m.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Double cancel is safe.
	cancel()
}

func TestMonitor_startStopIdempotent(t *testing.T) {
	p := &fakeProber{state: offline}
	m := NewMonitor(p, &MonitorConfig{PollInterval: time.Hour, Debounce: time.Millisecond})

	m.Start(context.Background())
	m.Start(context.Background())
	m.Stop()
	m.Stop()

	// Restart works after a full stop.
	m.Start(context.Background())
	m.Stop()
}

func TestDialProber_reachableEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := &DialProber{
		Addrs:    []string{ln.Addr().String()},
		Timeout:  time.Second,
		LinkFunc: func() bool { return true },
	}
	st := p.Probe(context.Background())
	assert.True(t, st.Connected)
	assert.True(t, st.Reachable)
}

func TestDialProber_unreachableEndpoint(t *testing.T) {
	// Grab a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := &DialProber{
		Addrs:    []string{addr},
		Timeout:  100 * time.Millisecond,
		LinkFunc: func() bool { return true },
	}
	st := p.Probe(context.Background())
	assert.True(t, st.Connected)
	assert.False(t, st.Reachable)
}

func TestDialProber_linkDownSkipsDial(t *testing.T) {
	p := &DialProber{
		Addrs:    []string{"10.255.255.1:443"},
		Timeout:  time.Second,
		LinkFunc: func() bool { return false },
	}
	st := p.Probe(context.Background())
	assert.False(t, st.Connected)
	assert.False(t, st.Reachable)
}
