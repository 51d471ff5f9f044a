// Package config loads the settings shared by the meme command line tools.
//
// Settings come from, in increasing precedence: built-in defaults, an
// optional YAML file, and MEME_* environment variables. Nested keys map to
// environment variables by joining with underscores, so tls.ca_file is
// MEME_TLS_CA_FILE.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/meme-go/meme/pkg/connection"
	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/model"
	"github.com/meme-go/meme/pkg/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MEME"

// Default values.
const (
	DefaultAddress        = "localhost:5075"
	DefaultListen         = ":5075"
	DefaultRequestTimeout = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultLogLevel       = "info"

	DefaultReconnectMaxDelay = connection.DefaultMaxBackoff
)

// Config is the complete tool configuration.
type Config struct {
	// Model selects the machine model to query.
	Model model.Key `mapstructure:"model" yaml:"model"`

	// Address is the model service host:port.
	Address string `mapstructure:"address" yaml:"address"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// NoCaching fetches the model tables on every query.
	NoCaching bool `mapstructure:"no_caching" yaml:"no_caching"`

	// Initialize fetches both tables at startup.
	Initialize bool `mapstructure:"initialize" yaml:"initialize"`

	// Reconnect redials a dropped service connection with backoff.
	Reconnect bool `mapstructure:"reconnect" yaml:"reconnect"`

	// ReconnectMaxDelay caps the redial backoff.
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay" yaml:"reconnect_max_delay"`

	// MaxMessageSize bounds one frame. Zero uses the transport default.
	MaxMessageSize int `mapstructure:"max_message_size" yaml:"max_message_size"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// ProtocolLog is an optional .mlog capture file.
	ProtocolLog string `mapstructure:"protocol_log" yaml:"protocol_log"`

	// TraceProtocol also writes every protocol event to the operational
	// log at debug level.
	TraceProtocol bool `mapstructure:"trace_protocol" yaml:"trace_protocol"`

	TLS    TLS    `mapstructure:"tls" yaml:"tls"`
	Server Server `mapstructure:"server" yaml:"server"`
}

// TLS configures transport security. With Enabled false the connection is
// plain TCP.
type TLS struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
	CertFile           string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile            string `mapstructure:"key_file" yaml:"key_file"`
	CAFile             string `mapstructure:"ca_file" yaml:"ca_file"`
	ServerName         string `mapstructure:"server_name" yaml:"server_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// Server configures the fixture table server.
type Server struct {
	Listen   string `mapstructure:"listen" yaml:"listen"`
	Fixtures string `mapstructure:"fixtures" yaml:"fixtures"`

	// MaxConnections caps concurrent clients. Zero means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections"`

	// IdleTimeout drops silent clients. Zero disables it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:             model.Key{Source: model.DefaultSource},
		Address:           DefaultAddress,
		RequestTimeout:    DefaultRequestTimeout,
		ConnectTimeout:    DefaultConnectTimeout,
		ReconnectMaxDelay: DefaultReconnectMaxDelay,
		LogLevel:          DefaultLogLevel,
		Server:            Server{Listen: DefaultListen},
	}
}

// newViper registers defaults for every key so that environment overrides
// apply even when the file does not mention a key.
func newViper() *viper.Viper {
	d := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("model.model_name", d.Model.ModelName)
	v.SetDefault("model.source", d.Model.Source)
	v.SetDefault("model.use_design", d.Model.UseDesign)
	v.SetDefault("address", d.Address)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("no_caching", d.NoCaching)
	v.SetDefault("initialize", d.Initialize)
	v.SetDefault("reconnect", d.Reconnect)
	v.SetDefault("reconnect_max_delay", d.ReconnectMaxDelay)
	v.SetDefault("max_message_size", d.MaxMessageSize)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("protocol_log", d.ProtocolLog)
	v.SetDefault("trace_protocol", d.TraceProtocol)
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.ca_file", "")
	v.SetDefault("tls.server_name", "")
	v.SetDefault("tls.insecure_skip_verify", false)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.fixtures", d.Server.Fixtures)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	return v
}

// Load reads the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// FrameLimit returns MaxMessageSize as a transport frame limit. Frame
// lengths are 32-bit, so larger values are rejected rather than truncated.
func (c *Config) FrameLimit() (uint32, error) {
	if c.MaxMessageSize < 0 || uint64(c.MaxMessageSize) > math.MaxUint32 {
		return 0, fmt.Errorf("max_message_size must be between 0 and %d, got %d", uint64(math.MaxUint32), c.MaxMessageSize)
	}
	return uint32(c.MaxMessageSize), nil
}

// Validate checks the settings a client needs.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connect_timeout must not be negative, got %s", c.ConnectTimeout))
	}
	if c.ReconnectMaxDelay < 0 {
		errs = append(errs, fmt.Errorf("reconnect_max_delay must not be negative, got %s", c.ReconnectMaxDelay))
	}
	if _, err := c.FrameLimit(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Server.MaxConnections < 0 || c.Server.IdleTimeout < 0 {
		errs = append(errs, errors.New("server limits must not be negative"))
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}
	return errors.Join(errs...)
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// NewLogger builds the text logger the tools write to stderr.
func (c *Config) NewLogger() *slog.Logger {
	return c.LoggerTo(os.Stderr)
}

// LoggerTo builds a text logger writing to w at the configured level.
func (c *Config) LoggerTo(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ProtocolLogger combines the configured protocol sinks: the capture file
// and, with TraceProtocol, a debug-level adapter on logger. It returns nil
// when neither is configured. The close function flushes and closes the
// capture file and is never nil.
func (c *Config) ProtocolLogger(logger *slog.Logger) (log.Logger, func() error, error) {
	var (
		sinks []log.Logger
		done  = func() error { return nil }
	)
	if c.ProtocolLog != "" {
		fl, err := log.NewFileLogger(c.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("open protocol log: %w", err)
		}
		sinks = append(sinks, fl)
		done = fl.Close
	}
	if c.TraceProtocol {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	return log.Tee(sinks...), done, nil
}

// ClientTLS returns the client transport security, or nil when TLS is
// disabled.
func (c *Config) ClientTLS() (*transport.TLSConfig, error) {
	if !c.TLS.Enabled {
		return nil, nil
	}
	out := &transport.TLSConfig{
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	if c.TLS.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		out.Certificate = cert
	}
	if c.TLS.CAFile != "" {
		pool, err := loadPool(c.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		out.RootCAs = pool
	}
	return out, nil
}

// ServerTLS returns the server transport security, or nil when TLS is
// disabled. A CA file turns on client certificate verification.
func (c *Config) ServerTLS() (*transport.TLSConfig, error) {
	if !c.TLS.Enabled {
		return nil, nil
	}
	if c.TLS.CertFile == "" {
		return nil, errors.New("tls.cert_file is required to serve TLS")
	}
	cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}
	out := &transport.TLSConfig{Certificate: cert}
	if c.TLS.CAFile != "" {
		if out.ClientCAs, err = loadPool(c.TLS.CAFile); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return pool, nil
}
