package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/model"
	"github.com/meme-go/meme/pkg/transport"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrSessionClosed  = errors.New("session closed")
	ErrDisconnected   = errors.New("not connected to model service")
)

// ServiceState represents the server state.
type ServiceState uint8

const (
	// StateIdle - server created but not started.
	StateIdle ServiceState = iota

	// StateRunning - server is accepting connections.
	StateRunning

	// StateStopped - server has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ClientConfig configures a Session.
type ClientConfig struct {
	// Address is the model service host:port.
	Address string

	// Key selects the machine model.
	Key model.Key

	// TLS enables transport security. Nil means plain TCP.
	TLS *transport.TLSConfig

	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration

	// RequestTimeout bounds one table fetch.
	RequestTimeout time.Duration

	// MaxMessageSize bounds one frame. Zero uses the transport default.
	MaxMessageSize uint32

	// NoCaching fetches the tables on every query.
	NoCaching bool

	// Initialize fetches both tables before Open returns.
	Initialize bool

	// Reconnect redials a dropped connection with exponential backoff
	// instead of ending the session.
	Reconnect bool

	// ReconnectMaxDelay caps the backoff. Zero means 30s.
	ReconnectMaxDelay time.Duration

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger captures frames, messages and state changes. Optional.
	ProtocolLogger log.Logger
}

// ServerConfig configures a TableServer.
type ServerConfig struct {
	// Address to listen on. Defaults to ":5075".
	Address string

	// TLS enables transport security. Nil means plain TCP.
	TLS *transport.TLSConfig

	// MaxMessageSize bounds one frame. Zero uses the transport default.
	MaxMessageSize uint32

	// MaxConnections caps concurrent clients. Zero means unlimited.
	MaxConnections int

	// IdleTimeout drops clients that stay silent this long. Zero disables it.
	IdleTimeout time.Duration

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger captures frames, messages and state changes. Optional.
	ProtocolLogger log.Logger
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:        fmt.Sprintf("localhost:%d", transport.DefaultPort),
		Key:            model.Key{Source: model.DefaultSource},
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address: fmt.Sprintf(":%d", transport.DefaultPort),
	}
}

// Validate checks if the client config is valid.
func (c *ClientConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if err := c.Key.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RequestTimeout < 0 || c.ConnectTimeout < 0 || c.ReconnectMaxDelay < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}
