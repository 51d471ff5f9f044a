package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Manager errors.
var (
	ErrClosed           = errors.New("connection manager closed")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

// State is the connection state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc dials once. It returns nil when the connection is up.
type ConnectFunc func(ctx context.Context) error

// Config configures a Manager.
type Config struct {
	// AutoReconnect redials after NotifyConnectionLost. Without it a lost
	// connection leaves the manager disconnected.
	AutoReconnect bool

	// DialTimeout bounds one reconnection attempt. Zero means 30s.
	DialTimeout time.Duration

	Backoff BackoffConfig

	// OnStateChange is called outside the manager lock for every transition.
	OnStateChange func(old, new State)

	Logger *slog.Logger
}

// Manager tracks one logical connection and redials it when it drops.
type Manager struct {
	mu    sync.RWMutex
	state State

	connect ConnectFunc
	cfg     Config
	backoff *Backoff
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	lost   chan struct{}
}

// NewManager creates a manager and starts its reconnect loop. Call Close to
// stop it.
func NewManager(connect ConnectFunc, cfg Config) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		connect: connect,
		cfg:     cfg,
		backoff: NewBackoff(cfg.Backoff),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		lost:    make(chan struct{}, 1),
	}
	m.wg.Add(1)
	go m.reconnectLoop()
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connected reports whether the connection is up.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Attempts returns the number of redials since the last success.
func (m *Manager) Attempts() int {
	return m.backoff.Attempts()
}

// Connect dials once, without retrying.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.mu.Unlock()

	m.transition(StateConnecting)
	if err := m.connect(ctx); err != nil {
		m.transition(StateDisconnected)
		return err
	}
	m.backoff.Reset()
	m.transition(StateConnected)
	return nil
}

// NotifyConnectionLost reports that the connection dropped. It is a no-op
// unless the manager is connected.
func (m *Manager) NotifyConnectionLost() {
	if m.State() != StateConnected {
		return
	}
	if !m.cfg.AutoReconnect {
		m.transition(StateDisconnected)
		return
	}
	m.transition(StateReconnecting)
	select {
	case m.lost <- struct{}{}:
	default:
	}
}

// Close stops reconnecting and waits for the reconnect loop to exit.
func (m *Manager) Close() {
	if m.State() == StateClosed {
		return
	}
	m.transition(StateClosed)
	m.cancel()
	m.wg.Wait()
}

// transition moves to state unless the manager is closed. It reports
// whether the state changed.
func (m *Manager) transition(state State) bool {
	m.mu.Lock()
	old := m.state
	if old == StateClosed || old == state {
		m.mu.Unlock()
		return false
	}
	m.state = state
	m.mu.Unlock()

	if m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(old, state)
	}
	return true
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.lost:
			m.redial()
		}
	}
}

// redial retries with backoff until a dial succeeds or the manager closes.
func (m *Manager) redial() {
	for m.State() == StateReconnecting {
		delay := m.backoff.Next()
		m.logger.Debug("reconnecting",
			slog.Int("attempt", m.backoff.Attempts()),
			slog.Duration("delay", delay))

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
		err := m.connect(ctx)
		cancel()
		if err != nil {
			m.logger.Debug("reconnect failed", slog.Any("error", err))
			continue
		}

		m.backoff.Reset()
		if !m.transition(StateConnected) {
			// Closed while dialing; the caller's Close tears the new
			// connection down.
			return
		}
		m.logger.Info("reconnected")
		return
	}
}
