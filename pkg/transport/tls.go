package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

const (
	// ALPNProtocol is negotiated on every TLS connection.
	ALPNProtocol = "meme/1"

	// DefaultPort is the model service port.
	DefaultPort = 5075
)

// TLS configuration errors.
var (
	ErrNoTLSConfig   = errors.New("TLSConfig is required")
	ErrNoCertificate = errors.New("server certificate is required")
)

// TLSConfig selects certificates for one end of a connection. A nil
// *TLSConfig anywhere in this package means plain TCP.
type TLSConfig struct {
	// Certificate identifies this end. Servers need one; a client that sets
	// one offers it for mutual TLS.
	Certificate tls.Certificate

	// RootCAs verifies the server (client side). Nil uses the system pool.
	RootCAs *x509.CertPool

	// ClientCAs verifies clients (server side). Setting it makes client
	// certificates mandatory.
	ClientCAs *x509.CertPool

	// ServerName overrides the host name checked against the server
	// certificate. Empty means the dialed host.
	ServerName string

	// InsecureSkipVerify accepts any server certificate. Tests only.
	InsecureSkipVerify bool
}

func (c *TLSConfig) hasCertificate() bool { return len(c.Certificate.Certificate) > 0 }

// tls13 pins the version and protocol shared by both ends.
func tls13() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,
		NextProtos: []string{ALPNProtocol},
	}
}

// NewServerTLSConfig builds the listener side configuration. Session
// tickets are off so every connection runs a full handshake and client
// certificates are checked each time.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrNoTLSConfig
	}
	if !cfg.hasCertificate() {
		return nil, ErrNoCertificate
	}

	out := tls13()
	out.Certificates = []tls.Certificate{cfg.Certificate}
	out.SessionTicketsDisabled = true
	if cfg.ClientCAs != nil {
		out.ClientCAs = cfg.ClientCAs
		out.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return out, nil
}

// NewClientTLSConfig builds the dialing side configuration.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrNoTLSConfig
	}

	out := tls13()
	out.RootCAs = cfg.RootCAs
	out.ServerName = cfg.ServerName
	out.InsecureSkipVerify = cfg.InsecureSkipVerify
	if cfg.hasCertificate() {
		out.Certificates = []tls.Certificate{cfg.Certificate}
	}
	return out, nil
}

// VerifyConnection rejects a completed handshake that did not settle on
// TLS 1.3 with the meme ALPN protocol.
func VerifyConnection(state tls.ConnectionState) error {
	switch {
	case state.Version != tls.VersionTLS13:
		return fmt.Errorf("TLS 1.3 required, got version 0x%04x", state.Version)
	case state.NegotiatedProtocol != ALPNProtocol:
		return fmt.Errorf("unexpected ALPN protocol %q (want %q)", state.NegotiatedProtocol, ALPNProtocol)
	}
	return nil
}
