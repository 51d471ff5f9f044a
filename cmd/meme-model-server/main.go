// Command meme-model-server serves machine model tables from a fixture file.
//
// It answers every source and both LIVE and DESIGN requests for the models
// in the file, which makes it a stand-in for the real model service in
// tests and demos. With -watch the file is reloaded when it changes.
//
// Usage:
//
//	meme-model-server [flags]
//
// Examples:
//
//	# Serve the test fixtures on the default port
//	meme-model-server -fixtures pkg/service/testdata/fixtures.yaml
//
//	# Serve over TLS and capture the traffic for meme-log
//	meme-model-server -fixtures models.yaml -tls-cert server.pem -tls-key server.key -protocol-log server.mlog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/meme-go/meme/pkg/config"
	"github.com/meme-go/meme/pkg/service"
)

var (
	configFile  = flag.String("config", "", "Configuration file path")
	listen      = flag.String("listen", "", "Listen address (default :5075)")
	fixtures    = flag.String("fixtures", "", "Fixture file (YAML)")
	watch       = flag.Bool("watch", false, "Reload the fixture file when it changes")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "Write a protocol capture to this file")
	trace       = flag.Bool("trace", false, "Log every protocol event at debug level")
	maxConns    = flag.Int("max-connections", 0, "Maximum concurrent clients (0 = unlimited)")
	idle        = flag.Duration("idle-timeout", 0, "Drop clients idle for this long (0 = never)")
	tlsCert     = flag.String("tls-cert", "", "Server certificate (enables TLS)")
	tlsKey      = flag.String("tls-key", "", "Server private key")
	clientCA    = flag.String("client-ca", "", "Require client certificates signed by this CA")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Server.Listen = *listen
		case "fixtures":
			cfg.Server.Fixtures = *fixtures
		case "log-level":
			cfg.LogLevel = *logLevel
		case "protocol-log":
			cfg.ProtocolLog = *protocolLog
		case "trace":
			cfg.TraceProtocol = *trace
		case "max-connections":
			cfg.Server.MaxConnections = *maxConns
		case "idle-timeout":
			cfg.Server.IdleTimeout = *idle
		case "tls-cert":
			cfg.TLS.Enabled = true
			cfg.TLS.CertFile = *tlsCert
		case "tls-key":
			cfg.TLS.KeyFile = *tlsKey
		case "client-ca":
			cfg.TLS.CAFile = *clientCA
		}
	})

	if cfg.Server.Fixtures == "" {
		return errors.New("a fixture file is required (-fixtures or server.fixtures)")
	}
	if _, err := config.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	fx, err := service.LoadFixtures(cfg.Server.Fixtures)
	if err != nil {
		return err
	}

	tlsCfg, err := cfg.ServerTLS()
	if err != nil {
		return err
	}
	frameLimit, err := cfg.FrameLimit()
	if err != nil {
		return err
	}

	serverCfg := service.DefaultServerConfig()
	serverCfg.Address = cfg.Server.Listen
	serverCfg.TLS = tlsCfg
	serverCfg.MaxMessageSize = frameLimit
	serverCfg.Logger = logger

	serverCfg.MaxConnections = cfg.Server.MaxConnections
	serverCfg.IdleTimeout = cfg.Server.IdleTimeout

	plog, closeLog, err := cfg.ProtocolLogger(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLog(); err != nil {
			logger.Warn("close protocol log", slog.Any("error", err))
		}
	}()
	serverCfg.ProtocolLogger = plog
	if cfg.ProtocolLog != "" {
		logger.Info("protocol logging enabled", slog.String("file", cfg.ProtocolLog))
	}

	server, err := service.NewTableServer(fx, serverCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		return err
	}

	if *watch {
		w, err := service.WatchFixtures(cfg.Server.Fixtures, server, logger)
		if err != nil {
			_ = server.Stop()
			return err
		}
		go w.Run(ctx)
		logger.Info("watching fixture file", slog.String("file", cfg.Server.Fixtures))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down",
		slog.String("signal", sig.String()),
		slog.Int("requests", server.TotalRequests()))

	return server.Stop()
}
