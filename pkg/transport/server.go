package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

const handshakeTimeout = 10 * time.Second

// Server errors.
var (
	ErrServerRunning  = errors.New("server already running")
	ErrTooManyClients = errors.New("connection limit reached")
)

// ServerConfig configures a model service listener.
type ServerConfig struct {
	// TLSConfig enables TLS when set. Nil means plain TCP.
	TLSConfig *TLSConfig

	// Address to listen on (e.g. ":5075" or "127.0.0.1:0").
	Address string

	// MaxMessageSize bounds one frame. Zero means DefaultMaxMessageSize.
	MaxMessageSize uint32

	// MaxConnections caps concurrent clients. Connections beyond it are
	// closed right after accept. Zero means unlimited.
	MaxConnections int

	// IdleTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger

	OnConnect    func(conn *ServerConn)
	OnDisconnect func(conn *ServerConn)

	// OnMessage receives every frame that is not a control message. It runs
	// on the connection's read goroutine.
	OnMessage func(conn *ServerConn, msg []byte)

	// OnError reports accept, handshake and read failures. conn is nil when
	// no connection was established.
	OnError func(conn *ServerConn, err error)
}

// Server accepts connections from model clients and runs one read loop per
// connection.
type Server struct {
	config   ServerConfig
	tlsConf  *tls.Config
	listener net.Listener

	mu    sync.RWMutex
	conns map[*ServerConn]struct{}

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer validates config and prepares a server. Nothing listens until
// Start.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.MaxConnections < 0 || config.IdleTimeout < 0 {
		return nil, fmt.Errorf("invalid server limits: connections=%d idle=%s", config.MaxConnections, config.IdleTimeout)
	}

	s := &Server{config: config, conns: make(map[*ServerConn]struct{})}
	if config.TLSConfig != nil {
		conf, err := NewServerTLSConfig(config.TLSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConf = conf
	}
	return s, nil
}

// Start listens and accepts connections in the background until Stop or
// until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.acceptLoop()
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		s.shutdown()
	}()
	return nil
}

// Stop closes the listener and every connection, then waits for their
// goroutines.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Server) shutdown() {
	s.running.Store(false)
	s.listener.Close()

	s.mu.RLock()
	conns := make([]*ServerConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// acceptLoop backs off on accept failures such as running out of file
// descriptors instead of spinning.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	var delay time.Duration
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.reportError(nil, fmt.Errorf("accept: %w", err))
			delay = min(max(2*delay, 5*time.Millisecond), time.Second)
			select {
			case <-time.After(delay):
				continue
			case <-s.ctx.Done():
				return
			}
		}
		delay = 0

		s.wg.Add(1)
		go s.serve(raw)
	}
}

func (s *Server) serve(raw net.Conn) {
	defer s.wg.Done()

	conn, err := s.handshake(raw)
	if err != nil {
		raw.Close()
		s.reportError(nil, err)
		return
	}

	c := &ServerConn{
		endpoint: newEndpoint(conn, raw.RemoteAddr(), s.config.MaxMessageSize, log.RoleServer, s.config.Logger),
		server:   s,
	}
	if !s.register(c) {
		c.Close()
		s.reportError(c, fmt.Errorf("%w (%d)", ErrTooManyClients, s.config.MaxConnections))
		return
	}

	if s.config.OnConnect != nil {
		s.config.OnConnect(c)
	}
	c.readLoop()
	c.Close()

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(c)
	}
}

func (s *Server) handshake(raw net.Conn) (net.Conn, error) {
	if s.tlsConf == nil {
		return raw, nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, handshakeTimeout)
	defer cancel()

	tlsConn := tls.Server(raw, s.tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	if err := VerifyConnection(tlsConn.ConnectionState()); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

func (s *Server) register(c *ServerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	if s.config.MaxConnections > 0 && len(s.conns) >= s.config.MaxConnections {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) reportError(conn *ServerConn, err error) {
	if s.config.OnError != nil {
		s.config.OnError(conn, err)
	}
}

// ServerConn is the server side of one client connection.
type ServerConn struct {
	*endpoint
	server *Server
}

func (c *ServerConn) readLoop() {
	idle := c.server.config.IdleTimeout
	for {
		if idle > 0 {
			c.conn.SetReadDeadline(time.Now().Add(idle))
		}
		data, err := c.framer.ReadFrame()
		if err != nil {
			if !c.isClosed() && c.server.running.Load() && !errors.Is(err, net.ErrClosed) {
				c.server.reportError(c, err)
			}
			return
		}

		if ctrl, ok := asControl(data); ok {
			c.handleControl(ctrl)
			continue
		}
		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, data)
		}
	}
}

func (c *ServerConn) handleControl(msg *wire.ControlMessage) {
	c.logControl(msg.Control, log.DirectionIn)

	switch msg.Control {
	case wire.ControlPing:
		c.sendControl(wire.ControlPong, msg.Sequence)
	case wire.ControlClose:
		c.sendControl(wire.ControlClose, 0)
		c.Close()
	}
}
