package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meme-go/meme/pkg/connection"
	"github.com/meme-go/meme/pkg/interaction"
	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/model"
	"github.com/meme-go/meme/pkg/transport"
	"github.com/meme-go/meme/pkg/wire"
)

// Session is one logical connection to a model service with a Model on top
// of it. With cfg.Reconnect set a dropped connection is redialed in the
// background; queries fail with ErrDisconnected until it is back while
// cached tables keep answering.
type Session struct {
	cfg    ClientConfig
	tc     *transport.Client
	mgr    *connection.Manager
	model  *model.Model
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *transport.ClientConn
	client *interaction.Client

	loops     sync.WaitGroup
	closing   atomic.Bool
	closeOnce sync.Once
	doneOnce  sync.Once
	done      chan struct{}
}

// Open connects to the model service and builds the model. With
// cfg.Initialize set both tables are fetched before Open returns.
func Open(ctx context.Context, cfg ClientConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tc, err := transport.NewClient(transport.ClientConfig{
		TLSConfig:      cfg.TLS,
		MaxMessageSize: cfg.MaxMessageSize,
		ConnectTimeout: cfg.ConnectTimeout,
		Logger:         cfg.ProtocolLogger,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		tc:     tc,
		logger: logger,
		done:   make(chan struct{}),
	}
	s.mgr = connection.NewManager(s.dial, connection.Config{
		AutoReconnect: cfg.Reconnect,
		DialTimeout:   cfg.ConnectTimeout,
		Backoff:       connection.BackoffConfig{Max: cfg.ReconnectMaxDelay},
		OnStateChange: s.onStateChange,
		Logger:        logger.With(slog.String("address", cfg.Address)),
	})
	if err := s.mgr.Connect(ctx); err != nil {
		s.mgr.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Address, err)
	}

	m, err := model.New(ctx, model.NewRPCFetcher(s, cfg.RequestTimeout), model.Config{
		Key:            cfg.Key,
		NoCaching:      cfg.NoCaching,
		Initialize:     cfg.Initialize,
		Logger:         logger,
		ProtocolLogger: cfg.ProtocolLogger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.model = m
	return s, nil
}

// dial opens one transport connection and starts its message loop.
func (s *Session) dial(ctx context.Context) error {
	conn, err := s.tc.Connect(ctx, s.cfg.Address)
	if err != nil {
		return err
	}

	client := interaction.NewClient(conn)
	if s.cfg.RequestTimeout > 0 {
		client.SetTimeout(s.cfg.RequestTimeout)
	}
	if s.cfg.ProtocolLogger != nil {
		client.SetLogger(s.cfg.ProtocolLogger, conn.ConnID())
	}

	s.mu.Lock()
	s.conn = conn
	s.client = client
	s.mu.Unlock()

	s.loops.Add(1)
	go s.runMessageLoop(conn, client)

	s.logger.Debug("connected to model service",
		slog.String("address", s.cfg.Address),
		slog.String("conn", conn.ConnID()))
	return nil
}

func (s *Session) onStateChange(old, state connection.State) {
	s.logger.Debug("session state", slog.String("from", old.String()), slog.String("to", state.String()))
	if s.cfg.ProtocolLogger == nil {
		return
	}
	s.cfg.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.ConnID(),
		Direction:    log.DirectionOut,
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		LocalRole:    log.RoleClient,
		RemoteAddr:   s.cfg.Address,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: old.String(),
			NewState: state.String(),
		},
	})
}

// Model returns the session's model.
func (s *Session) Model() *model.Model { return s.model }

// Client returns the interaction client of the current connection.
func (s *Session) Client() *interaction.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// ConnID returns the id of the current connection as used in protocol logs.
func (s *Session) ConnID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.ConnID()
}

// State returns the connection state.
func (s *Session) State() connection.State { return s.mgr.State() }

// Done is closed when the session is over: after Close, or when the
// connection drops and reconnecting is off.
func (s *Session) Done() <-chan struct{} { return s.done }

// Get requests one table over the current connection. It implements
// model.TableGetter so the model survives reconnects.
func (s *Session) Get(ctx context.Context, scheme, path string, query map[string]string) (*wire.Table, error) {
	client, err := s.current()
	if err != nil {
		return nil, err
	}
	return client.Get(ctx, scheme, path, query)
}

// Ping measures the round trip to the service.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	client, err := s.current()
	if err != nil {
		return 0, err
	}
	return client.Ping(ctx)
}

func (s *Session) current() (*interaction.Client, error) {
	select {
	case <-s.done:
		return nil, ErrSessionClosed
	default:
	}
	if !s.mgr.Connected() {
		return nil, fmt.Errorf("%w: %s", ErrDisconnected, s.mgr.State())
	}
	return s.Client(), nil
}

// Close says goodbye to the service and closes the connection. Pending
// requests fail.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.mgr.Close()

		s.mu.RLock()
		conn, client := s.conn, s.client
		s.mu.RUnlock()

		if conn != nil {
			if sendErr := conn.SendClose(); sendErr != nil && !errors.Is(sendErr, transport.ErrConnectionClosed) {
				s.logger.Debug("close message not sent", slog.Any("error", sendErr))
			}
			err = conn.Close()
			client.Close()
		}
		s.loops.Wait()
		s.finish()
	})
	return err
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// runMessageLoop reads frames of one connection and hands them to its
// interaction client until the connection closes.
func (s *Session) runMessageLoop(conn *transport.ClientConn, client *interaction.Client) {
	defer s.loops.Done()
	defer client.Close()

	for {
		data, err := conn.Receive(0)
		if err != nil {
			s.logger.Debug("receive loop ended",
				slog.String("conn", conn.ConnID()),
				slog.Any("error", err))
			break
		}
		if err := client.Dispatch(data); err != nil {
			s.logger.Debug("dropped frame", slog.Any("error", err))
		}
	}

	if s.closing.Load() {
		return
	}
	s.mgr.NotifyConnectionLost()
	if !s.cfg.Reconnect {
		s.finish()
	}
}
