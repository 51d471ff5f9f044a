// Package interactive provides the interactive command-line interface
// for meme-model.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/meme-go/meme/cmd/meme-model/commands"
	"github.com/meme-go/meme/pkg/model"
)

// Shell reads commands from the terminal and runs them against one model.
type Shell struct {
	runner *commands.Runner
	rl     *readline.Instance

	// status describes the connection for the status command.
	status func() string
}

// New creates a shell. runner.Out is replaced by the readline output.
func New(runner *commands.Runner) (*Shell, error) {
	attrs := make([]readline.PrefixCompleterInterface, 0, len(model.Attributes()))
	for _, a := range model.Attributes() {
		attrs = append(attrs, readline.PcItem(a.String()))
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(commands.Names())+4)
	for _, name := range commands.Names() {
		if name == "attr" {
			items = append(items, readline.PcItem(name, attrs...))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	items = append(items,
		readline.PcItem("set",
			readline.PcItem("half", readline.PcItem("1"), readline.PcItem("2")),
			readline.PcItem("ignore-bad-names", readline.PcItem("on"), readline.PcItem("off")),
		),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "model> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	runner.Out = rl.Stdout()
	return &Shell{runner: runner, rl: rl}, nil
}

// SetStatus sets the connection summary printed by the status command.
func (s *Shell) SetStatus(status func() string) {
	s.status = status
}

// Stdout returns a writer that coordinates with the readline prompt. Use it
// for log output so messages do not garble the input line.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run reads and executes commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "set":
			s.cmdSet(args)

		case "status":
			s.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			s.execute(ctx, cmd, args)
		}
	}
}

func (s *Shell) execute(ctx context.Context, cmd string, args []string) {
	err := s.runner.Execute(ctx, cmd, args)
	switch {
	case err == nil, errors.Is(err, commands.ErrUsage):
	case errors.Is(err, commands.ErrUnknownCommand):
		fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
	default:
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Model Commands:
  Queries:
    rmat [-from DEV] DEV...           - Transfer matrix to each DEV (from start by default)
    zpos DEV...                       - Beamline position of each DEV
    twiss [-format yaml] DEV...       - Twiss parameters of each DEV
    attr NAME DEV...                  - One Twiss attribute (e.g. beta_x) of each DEV

  Cache:
    refresh [rmat|twiss|all]          - Fetch the model tables again

  Settings:
    set half 1|2                      - Default half for split elements
    set ignore-bad-names on|off       - Return NaN for unknown names

  General:
    ping                              - Check the model service
    status                            - Show connection and settings
    help                              - Show this help
    quit                              - Exit

  Names are element names (QM01, QM01#2) or device names (QUAD:IN20:151).`)
}

func (s *Shell) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set half 1|2 | set ignore-bad-names on|off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "half":
		h, err := model.ParseHalf(args[1])
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
		s.runner.Half = h
		fmt.Fprintf(s.rl.Stdout(), "half = %s\n", h)
	case "ignore-bad-names", "ignore":
		switch strings.ToLower(args[1]) {
		case "on", "true", "1":
			s.runner.IgnoreBadNames = true
		case "off", "false", "0":
			s.runner.IgnoreBadNames = false
		default:
			fmt.Fprintln(s.rl.Stdout(), "Usage: set ignore-bad-names on|off")
			return
		}
		fmt.Fprintf(s.rl.Stdout(), "ignore-bad-names = %t\n", s.runner.IgnoreBadNames)
	default:
		fmt.Fprintf(s.rl.Stdout(), "Unknown setting: %s\n", args[0])
	}
}

func (s *Shell) cmdStatus() {
	out := s.rl.Stdout()
	fmt.Fprintf(out, "Model:            %s\n", s.runner.Model.Key())
	if s.status != nil {
		fmt.Fprintln(out, s.status())
	}
	fmt.Fprintf(out, "Half:             %s\n", s.runner.Half)
	fmt.Fprintf(out, "Ignore bad names: %t\n", s.runner.IgnoreBadNames)
}
