// Command meme-model queries a machine model through the model service.
//
// Usage:
//
//	meme-model [flags] <command> [args]
//	meme-model [flags] -interactive
//
// Commands:
//
//	rmat [-from DEV] DEV...   Transfer matrix to each DEV
//	zpos DEV...               Beamline position of each DEV
//	twiss DEV...              Twiss parameters of each DEV
//	attr NAME DEV...          One Twiss attribute of each DEV
//	refresh [rmat|twiss|all]  Fetch the model tables again
//	ping                      Check the model service
//
// Settings are read from the -config file and MEME_* environment variables;
// flags override both.
//
// Examples:
//
//	# Transfer matrix between two devices on the live CU_HXR model
//	meme-model -model CU_HXR rmat -from QUAD:IN20:121 BPMS:IN20:221
//
//	# Twiss parameters from the design model as YAML
//	meme-model -model CU_HXR -design twiss -format yaml QUAD:IN20:121
//
//	# Interactive session with a protocol capture for meme-log
//	meme-model -model CU_HXR -protocol-log session.mlog -interactive
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

	"github.com/meme-go/meme/cmd/meme-model/commands"
	"github.com/meme-go/meme/cmd/meme-model/interactive"
	"github.com/meme-go/meme/pkg/config"
	"github.com/meme-go/meme/pkg/model"
	"github.com/meme-go/meme/pkg/service"
)

var (
	configFile     = flag.String("config", "", "Configuration file path")
	address        = flag.String("address", "", "Model service host:port")
	modelName      = flag.String("model", "", "Machine model name, e.g. CU_HXR")
	source         = flag.String("source", "", "Model source (default BMAD)")
	design         = flag.Bool("design", false, "Use the design model instead of the live one")
	noCaching      = flag.Bool("no-caching", false, "Fetch the tables on every query")
	initialize     = flag.Bool("initialize", false, "Fetch both tables at startup")
	reconnect      = flag.Bool("reconnect", false, "Redial the service when the connection drops")
	reconnectMax   = flag.Duration("reconnect-max-delay", 0, "Longest wait between redials")
	timeout        = flag.Duration("timeout", 0, "Request timeout")
	logLevel       = flag.String("log-level", "", "Log level: debug, info, warn, error")
	protocolLog    = flag.String("protocol-log", "", "Write a protocol capture to this file")
	trace          = flag.Bool("trace", false, "Log every protocol event at debug level")
	useTLS         = flag.Bool("tls", false, "Connect with TLS")
	caFile         = flag.String("ca-file", "", "CA certificate for the service (implies -tls)")
	insecure       = flag.Bool("insecure", false, "Skip TLS certificate verification")
	half           = flag.String("half", "1", "Default half for split elements: 1 or 2")
	ignoreBadNames = flag.Bool("ignore-bad-names", false, "Return NaN for names not in the model")
	interactiveFlg = flag.Bool("interactive", false, "Start an interactive session")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: meme-model [flags] <rmat|zpos|twiss|attr|refresh|ping> [args]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(); err != nil {
		if !errors.Is(err, commands.ErrUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !*interactiveFlg && flag.NArg() == 0 {
		flag.Usage()
		return commands.ErrUsage
	}

	defaultHalf, err := model.ParseHalf(*half)
	if err != nil {
		return err
	}
	runner := &commands.Runner{
		Out:            os.Stdout,
		Half:           defaultHalf,
		IgnoreBadNames: *ignoreBadNames,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.NewLogger()
	var shell *interactive.Shell
	if *interactiveFlg {
		shell, err = interactive.New(runner)
		if err != nil {
			return err
		}
		// Log output goes through readline so it does not garble the prompt.
		logger = cfg.LoggerTo(shell.Stdout())
	}
	slog.SetDefault(logger)

	clientCfg, closeLog, err := clientConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	sess, err := service.Open(ctx, clientCfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	runner.Model = sess.Model()
	runner.Pinger = sess

	if shell == nil {
		reqCtx, reqCancel := context.WithTimeout(ctx, cfg.RequestTimeout*2)
		defer reqCancel()
		return runner.Execute(reqCtx, flag.Arg(0), flag.Args()[1:])
	}

	shell.SetStatus(func() string {
		return fmt.Sprintf("Address:          %s\nConnection:       %s (%s)", cfg.Address, sess.ConnID(), sess.State())
	})
	go shell.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", slog.String("signal", sig.String()))
	case <-sess.Done():
		logger.Warn("model service closed the connection")
	case <-ctx.Done():
	}
	return nil
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "address":
			cfg.Address = *address
		case "model":
			cfg.Model.ModelName = *modelName
		case "source":
			cfg.Model.Source = *source
		case "design":
			cfg.Model.UseDesign = *design
		case "no-caching":
			cfg.NoCaching = *noCaching
		case "initialize":
			cfg.Initialize = *initialize
		case "reconnect":
			cfg.Reconnect = *reconnect
		case "reconnect-max-delay":
			cfg.ReconnectMaxDelay = *reconnectMax
		case "timeout":
			cfg.RequestTimeout = *timeout
		case "log-level":
			cfg.LogLevel = *logLevel
		case "protocol-log":
			cfg.ProtocolLog = *protocolLog
		case "trace":
			cfg.TraceProtocol = *trace
		case "tls":
			cfg.TLS.Enabled = *useTLS
		case "ca-file":
			cfg.TLS.Enabled = true
			cfg.TLS.CAFile = *caFile
		case "insecure":
			cfg.TLS.InsecureSkipVerify = *insecure
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// clientConfig builds the session configuration. The returned function
// closes the protocol log, if one was opened.
func clientConfig(cfg *config.Config, logger *slog.Logger) (service.ClientConfig, func(), error) {
	tlsCfg, err := cfg.ClientTLS()
	if err != nil {
		return service.ClientConfig{}, nil, err
	}
	frameLimit, err := cfg.FrameLimit()
	if err != nil {
		return service.ClientConfig{}, nil, err
	}

	out := service.ClientConfig{
		Address:           cfg.Address,
		Key:               cfg.Model,
		TLS:               tlsCfg,
		ConnectTimeout:    cfg.ConnectTimeout,
		RequestTimeout:    cfg.RequestTimeout,
		MaxMessageSize:    frameLimit,
		NoCaching:         cfg.NoCaching,
		Initialize:        cfg.Initialize,
		Reconnect:         cfg.Reconnect,
		ReconnectMaxDelay: cfg.ReconnectMaxDelay,
		Logger:            logger,
	}

	plog, closeFile, err := cfg.ProtocolLogger(logger)
	if err != nil {
		return service.ClientConfig{}, nil, err
	}
	out.ProtocolLogger = plog
	closeLog := func() {
		if err := closeFile(); err != nil {
			logger.Warn("close protocol log", slog.Any("error", err))
		}
	}
	if cfg.ProtocolLog != "" {
		logger.Info("protocol logging enabled", slog.String("file", cfg.ProtocolLog))
	}
	return out, closeLog, nil
}
