package netmon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Barneycle/ganapp-core/internal/logging"
)

// MonitorConfig holds connectivity monitor configuration.
type MonitorConfig struct {
	PollInterval time.Duration // how often to probe (default: 15 seconds)
	Debounce     time.Duration // how long a flip must hold before commit (default: 2 seconds)
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		PollInterval: 15 * time.Second,
		Debounce:     2 * time.Second,
	}
}

// Monitor polls a Prober and publishes debounced online/offline
// transitions. A flip must hold for the whole debounce window before
// subscribers hear about it; a brief blip in either direction is
// swallowed.
type Monitor struct {
	prober   Prober
	poll     time.Duration
	debounce time.Duration

	stopCh   chan struct{}
	pokeCh   chan struct{}
	reportCh chan State
	wg       sync.WaitGroup

	mu           sync.RWMutex
	running      bool
	state        State
	pending      *State
	pendingSince time.Time
	subs         map[int]chan State
	nextSub      int
}

// NewMonitor creates a Monitor around prober.
func NewMonitor(prober Prober, config *MonitorConfig) *Monitor {
	if config == nil {
		config = DefaultMonitorConfig()
	}
	return &Monitor{
		prober:   prober,
		poll:     config.PollInterval,
		debounce: config.Debounce,
		pokeCh:   make(chan struct{}, 1),
		reportCh: make(chan State, 1),
		subs:     make(map[int]chan State),
	}
}

// Start begins polling. The first observation commits immediately so
// callers get an answer without waiting out a debounce window.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx)

	logging.Info("connectivity monitor started",
		zap.Duration("poll_interval", m.poll),
		zap.Duration("debounce", m.debounce))
}

// Stop halts polling and waits for the worker to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)
	m.wg.Wait()

	logging.Info("connectivity monitor stopped")
}

// IsOnline returns the last committed answer without probing.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Online()
}

// State returns the last committed state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers for transition notifications. The returned
// cancel func unsubscribes and closes the channel. Slow subscribers
// never block the monitor, they just see the latest state.
func (m *Monitor) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 1)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// Report feeds an out-of-band observation, typically from an HTTP
// call that just failed or succeeded. Hints go through the same
// debounce as probes, so a single failed request cannot flip the
// monitor offline by itself.
func (m *Monitor) Report(online bool) {
	st := State{Connected: online, Reachable: online}
	select {
	case m.reportCh <- st:
	default:
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	m.mu.RLock()
	stopCh := m.stopCh
	m.mu.RUnlock()

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	m.commit(m.prober.Probe(ctx))

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.consider(m.prober.Probe(ctx))
		case obs := <-m.reportCh:
			m.consider(obs)
		case <-m.pokeCh:
			// A debounce window expired, confirm with a fresh probe.
			m.consider(m.prober.Probe(ctx))
		}
	}
}

// consider feeds one observation through the debounce. A flip is
// committed only after a confirming observation at least debounce
// after the first.
func (m *Monitor) consider(obs State) {
	m.mu.Lock()

	if obs.Online() == m.state.Online() {
		// No flip. Refresh detail bits and abandon any pending flip.
		m.state = obs
		m.pending = nil
		m.mu.Unlock()
		return
	}

	now := time.Now()
	if m.pending == nil || m.pending.Online() != obs.Online() {
		p := obs
		m.pending = &p
		m.pendingSince = now
		m.mu.Unlock()
		time.AfterFunc(m.debounce, m.poke)
		return
	}

	if held := now.Sub(m.pendingSince); held < m.debounce {
		m.mu.Unlock()
		time.AfterFunc(m.debounce-held, m.poke)
		return
	}

	m.commitLocked(obs)
	m.mu.Unlock()
}

// commit applies an observation unconditionally. Used for the initial
// observation where there is nothing to debounce against.
func (m *Monitor) commit(obs State) {
	m.mu.Lock()
	m.commitLocked(obs)
	m.mu.Unlock()
}

// commitLocked stores obs and notifies subscribers if the online
// answer changed. Callers hold m.mu.
func (m *Monitor) commitLocked(obs State) {
	flipped := obs.Online() != m.state.Online()
	m.state = obs
	m.pending = nil

	if !flipped {
		return
	}

	logging.Info("connectivity changed",
		zap.Bool("online", obs.Online()),
		zap.Bool("connected", obs.Connected),
		zap.Bool("reachable", obs.Reachable))

	for _, ch := range m.subs {
		select {
		case ch <- obs:
		default:
			// Replace the stale buffered state so the subscriber
			// wakes to the latest answer.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- obs:
			default:
			}
		}
	}
}

func (m *Monitor) poke() {
	select {
	case m.pokeCh <- struct{}{}:
	default:
	}
}
