package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/meme-go/meme/pkg/interaction"
	"github.com/meme-go/meme/pkg/model"
	"github.com/meme-go/meme/pkg/transport"
	"github.com/meme-go/meme/pkg/wire"
)

// TableServer serves fixture tables over the model service protocol.
type TableServer struct {
	mu sync.Mutex

	config   ServerConfig
	fixtures *Fixtures
	logger   *slog.Logger

	handler   *interaction.Server
	transport *transport.Server
	state     ServiceState

	requests map[string]int
}

// NewTableServer creates a server for fixtures.
func NewTableServer(fixtures *Fixtures, config ServerConfig) (*TableServer, error) {
	if fixtures == nil {
		return nil, fmt.Errorf("%w: fixtures are required", ErrInvalidConfig)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &TableServer{
		config:   config,
		fixtures: fixtures,
		logger:   logger,
		requests: make(map[string]int),
	}
	s.handler = interaction.NewServer(s)
	if config.ProtocolLogger != nil {
		s.handler.SetLogger(config.ProtocolLogger)
	}

	ts, err := transport.NewServer(transport.ServerConfig{
		TLSConfig:      config.TLS,
		Address:        config.Address,
		MaxMessageSize: config.MaxMessageSize,
		MaxConnections: config.MaxConnections,
		IdleTimeout:    config.IdleTimeout,
		Logger:         config.ProtocolLogger,
		OnConnect:      s.onConnect,
		OnDisconnect:   s.onDisconnect,
		OnMessage:      s.onMessage,
		OnError:        s.onError,
	})
	if err != nil {
		return nil, err
	}
	s.transport = ts
	return s, nil
}

// Start begins accepting connections.
func (s *TableServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrAlreadyStarted
	}
	if err := s.transport.Start(ctx); err != nil {
		return err
	}
	s.state = StateRunning
	s.logger.Info("table server listening",
		slog.String("address", s.transport.Addr().String()),
		slog.Any("models", s.fixtures.Models()))
	return nil
}

// Stop closes the listener and every connection.
func (s *TableServer) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopped
	s.mu.Unlock()

	return s.transport.Stop()
}

// State returns the server state.
func (s *TableServer) State() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the listen address, or nil before Start.
func (s *TableServer) Addr() net.Addr {
	return s.transport.Addr()
}

// ConnectionCount returns the number of open connections.
func (s *TableServer) ConnectionCount() int {
	return s.transport.ConnectionCount()
}

// Requests returns how many times path was requested.
func (s *TableServer) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// TotalRequests returns the number of table requests served.
func (s *TableServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.requests {
		total += n
	}
	return total
}

// Fixtures returns the fixtures currently served.
func (s *TableServer) Fixtures() *Fixtures {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixtures
}

// SetFixtures replaces the served fixtures. Requests already being answered
// finish with the old tables.
func (s *TableServer) SetFixtures(fixtures *Fixtures) {
	if fixtures == nil {
		return
	}
	s.mu.Lock()
	s.fixtures = fixtures
	s.mu.Unlock()
	s.logger.Info("fixtures replaced", slog.Any("models", fixtures.Models()))
}

// Table implements interaction.TableProvider.
func (s *TableServer) Table(_ context.Context, _ string, path string, _ map[string]string) (*wire.Table, error) {
	s.mu.Lock()
	s.requests[path]++
	fixtures := s.fixtures
	s.mu.Unlock()

	key, kind, err := model.ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interaction.ErrInvalidPath, err)
	}
	t, ok := fixtures.Table(key, kind)
	if !ok {
		return nil, fmt.Errorf("%w: no model %s", interaction.ErrTableNotFound, key.ModelName)
	}
	return t, nil
}

func (s *TableServer) onConnect(conn *transport.ServerConn) {
	s.logger.Debug("client connected",
		slog.String("conn", conn.ConnID()),
		slog.String("remote", conn.RemoteAddr().String()))
}

func (s *TableServer) onDisconnect(conn *transport.ServerConn) {
	s.logger.Debug("client disconnected", slog.String("conn", conn.ConnID()))
}

// onError is also called for accept and handshake failures, with a nil conn.
func (s *TableServer) onError(conn *transport.ServerConn, err error) {
	id := ""
	if conn != nil {
		id = conn.ConnID()
	}
	s.logger.Debug("connection error", slog.String("conn", id), slog.Any("error", err))
}

func (s *TableServer) onMessage(conn *transport.ServerConn, data []byte) {
	resp, err := s.handler.HandleFrame(context.Background(), data)
	if err != nil {
		s.logger.Warn("undecodable request", slog.String("conn", conn.ConnID()), slog.Any("error", err))
		return
	}
	if err := conn.Send(resp); err != nil {
		s.logger.Debug("response not sent", slog.String("conn", conn.ConnID()), slog.Any("error", err))
	}
}
