// Package netmon provides connectivity monitoring for the sync core.
// It answers one question cheaply, "are we online right now", and
// publishes debounced transitions so flapping networks do not thrash
// the sync queue.
package netmon

import (
	"context"
	"net"
	"time"
)

// State describes connectivity as last observed. Connected means the
// OS reports a usable link; Reachable means a probe endpoint actually
// answered. Being associated to an access point with no upstream is
// Connected but not Reachable.
type State struct {
	Connected bool `json:"connected"`
	Reachable bool `json:"reachable"`
}

// Online reports whether remote calls are worth attempting.
func (s State) Online() bool {
	return s.Connected && s.Reachable
}

// Prober observes current connectivity. Implementations must be safe
// for repeated calls and should bound their own latency.
type Prober interface {
	Probe(ctx context.Context) State
}

// DialProber checks the link via the OS interface table and confirms
// reachability by dialing well-known endpoints over TCP. The first
// endpoint that answers wins.
type DialProber struct {
	Addrs   []string
	Timeout time.Duration

	// LinkFunc overrides the interface check, tests use this.
	LinkFunc func() bool
}

// Probe implements Prober.
func (p *DialProber) Probe(ctx context.Context) State {
	linkUp := p.LinkFunc
	if linkUp == nil {
		linkUp = hasUpInterface
	}

	st := State{Connected: linkUp()}
	if !st.Connected {
		return st
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	for _, addr := range p.Addrs {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			st.Reachable = true
			break
		}
	}
	return st
}

// hasUpInterface reports whether any non-loopback interface is up.
func hasUpInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 {
			return true
		}
	}
	return false
}
