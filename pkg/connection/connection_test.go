package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{Jitter: -1})

		expected := []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
			30 * time.Second,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("attempt %d: delay = %v, want %v", i, got, exp)
			}
		}
		if b.Attempts() != len(expected) {
			t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(expected))
		}
	})

	t.Run("JitterBounds", func(t *testing.T) {
		for range 20 {
			b := NewBackoff(BackoffConfig{Initial: time.Second})
			d := b.Next()
			if d < time.Second || d > 1200*time.Millisecond {
				t.Errorf("delay %v outside [1s, 1.2s]", d)
			}
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{Initial: 10 * time.Millisecond, Jitter: -1})
		b.Next()
		b.Next()
		b.Reset()
		if b.Attempts() != 0 {
			t.Errorf("Attempts() after Reset = %d, want 0", b.Attempts())
		}
		if got := b.Next(); got != 10*time.Millisecond {
			t.Errorf("delay after Reset = %v, want 10ms", got)
		}
	})

	t.Run("MaxBelowInitial", func(t *testing.T) {
		b := NewBackoff(BackoffConfig{Initial: time.Second, Max: time.Millisecond, Jitter: -1})
		if got := b.Next(); got != time.Second {
			t.Errorf("delay = %v, want 1s", got)
		}
		if got := b.Next(); got != time.Second {
			t.Errorf("delay = %v, want 1s", got)
		}
	})
}

func fastConfig(auto bool) Config {
	return Config{
		AutoReconnect: auto,
		DialTimeout:   time.Second,
		Backoff:       BackoffConfig{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond, Jitter: -1},
	}
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", m.State(), want)
}

func TestManager(t *testing.T) {
	t.Run("ConnectSuccess", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(context.Context) error {
			calls.Add(1)
			return nil
		}, fastConfig(false))
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if !m.Connected() {
			t.Errorf("Connected() = false, want true")
		}
		if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
		}
		if calls.Load() != 1 {
			t.Errorf("connect calls = %d, want 1", calls.Load())
		}
	})

	t.Run("ConnectFailure", func(t *testing.T) {
		dialErr := errors.New("refused")
		m := NewManager(func(context.Context) error { return dialErr }, fastConfig(true))
		defer m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, dialErr) {
			t.Errorf("Connect() error = %v, want %v", err, dialErr)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %s, want DISCONNECTED", m.State())
		}
	})

	t.Run("ConnectAfterClose", func(t *testing.T) {
		m := NewManager(func(context.Context) error { return nil }, fastConfig(false))
		m.Close()
		if err := m.Connect(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("Connect() error = %v, want ErrClosed", err)
		}
	})

	t.Run("LostWithoutAutoReconnect", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(context.Context) error {
			calls.Add(1)
			return nil
		}, fastConfig(false))
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost()
		if m.State() != StateDisconnected {
			t.Errorf("State() = %s, want DISCONNECTED", m.State())
		}
		time.Sleep(30 * time.Millisecond)
		if calls.Load() != 1 {
			t.Errorf("connect calls = %d, want 1", calls.Load())
		}
	})

	t.Run("StateCallback", func(t *testing.T) {
		var mu sync.Mutex
		var seen []State
		cfg := fastConfig(false)
		cfg.OnStateChange = func(_, s State) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}
		m := NewManager(func(context.Context) error { return nil }, cfg)
		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.Close()

		mu.Lock()
		defer mu.Unlock()
		want := []State{StateConnecting, StateConnected, StateClosed}
		if len(seen) != len(want) {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Errorf("transition %d = %s, want %s", i, seen[i], want[i])
			}
		}
	})
}

func TestManagerReconnect(t *testing.T) {
	t.Run("RetriesUntilSuccess", func(t *testing.T) {
		var calls atomic.Int32
		var failing atomic.Bool
		m := NewManager(func(context.Context) error {
			calls.Add(1)
			if failing.Load() {
				return errors.New("refused")
			}
			return nil
		}, fastConfig(true))
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}

		failing.Store(true)
		m.NotifyConnectionLost()
		if m.State() != StateReconnecting {
			t.Errorf("State() = %s, want RECONNECTING", m.State())
		}

		deadline := time.Now().Add(2 * time.Second)
		for calls.Load() < 4 && time.Now().Before(deadline) {
			time.Sleep(2 * time.Millisecond)
		}
		failing.Store(false)
		waitForState(t, m, StateConnected)

		if calls.Load() < 4 {
			t.Errorf("connect calls = %d, want at least 4", calls.Load())
		}
		if m.Attempts() != 0 {
			t.Errorf("Attempts() after reconnect = %d, want 0", m.Attempts())
		}
	})

	t.Run("CloseStopsRetrying", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(context.Context) error {
			if calls.Add(1) > 1 {
				return errors.New("refused")
			}
			return nil
		}, fastConfig(true))

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost()
		time.Sleep(20 * time.Millisecond)
		m.Close()

		after := calls.Load()
		time.Sleep(50 * time.Millisecond)
		if calls.Load() != after {
			t.Errorf("connect called %d times after Close", calls.Load()-after)
		}
		if m.State() != StateClosed {
			t.Errorf("State() = %s, want CLOSED", m.State())
		}
	})

	t.Run("NotifyWhileDisconnectedIgnored", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(context.Context) error {
			calls.Add(1)
			return nil
		}, fastConfig(true))
		defer m.Close()

		m.NotifyConnectionLost()
		time.Sleep(30 * time.Millisecond)
		if calls.Load() != 0 {
			t.Errorf("connect calls = %d, want 0", calls.Load())
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
