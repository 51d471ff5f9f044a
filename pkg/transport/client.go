package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

// ClientConfig configures a model service client.
type ClientConfig struct {
	// TLSConfig enables TLS when set. Nil means plain TCP.
	TLSConfig *TLSConfig

	// MaxMessageSize bounds one frame. Zero means DefaultMaxMessageSize.
	MaxMessageSize uint32

	// ConnectTimeout bounds dial and handshake when ctx has no deadline.
	// Zero means 10s.
	ConnectTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client dials model service endpoints. One Client can open any number of
// connections.
type Client struct {
	config  ClientConfig
	tlsConf *tls.Config
}

// NewClient prepares a client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	c := &Client{config: config}
	if config.TLSConfig != nil {
		conf, err := NewClientTLSConfig(config.TLSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		c.tlsConf = conf
	}
	return c, nil
}

// Connect dials address and completes the TLS handshake when configured.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	conn, state, err := c.handshake(ctx, raw, address)
	if err != nil {
		raw.Close()
		return nil, err
	}

	return &ClientConn{
		endpoint: newEndpoint(conn, raw.RemoteAddr(), c.config.MaxMessageSize, log.RoleClient, c.config.Logger),
		tlsState: state,
	}, nil
}

func (c *Client) handshake(ctx context.Context, raw net.Conn, address string) (net.Conn, *tls.ConnectionState, error) {
	if c.tlsConf == nil {
		return raw, nil, nil
	}
	conf := c.tlsConf
	if conf.ServerName == "" && !conf.InsecureSkipVerify {
		conf = conf.Clone()
		if host, _, err := net.SplitHostPort(address); err == nil {
			conf.ServerName = host
		}
	}
	tlsConn := tls.Client(raw, conf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	st := tlsConn.ConnectionState()
	if err := VerifyConnection(st); err != nil {
		return nil, nil, fmt.Errorf("connection verification failed: %w", err)
	}
	return tlsConn, &st, nil
}

// ClientConn is the client side of a model service connection.
type ClientConn struct {
	*endpoint
	tlsState *tls.ConnectionState
	readMu   sync.Mutex
}

// TLSState returns the TLS connection state. ok is false for plain TCP.
func (c *ClientConn) TLSState() (state tls.ConnectionState, ok bool) {
	if c.tlsState == nil {
		return tls.ConnectionState{}, false
	}
	return *c.tlsState, true
}

// Receive reads the next frame. A positive timeout bounds the wait.
func (c *ClientConn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.isClosed() {
		return nil, ErrConnectionClosed
	}
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	return c.framer.ReadFrame()
}

// SendPing sends a ping carrying seq.
func (c *ClientConn) SendPing(seq uint32) error {
	return c.sendControl(wire.ControlPing, seq)
}

// SendClose asks the server to close the connection.
func (c *ClientConn) SendClose() error {
	return c.sendControl(wire.ControlClose, 0)
}
