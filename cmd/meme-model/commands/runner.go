// Package commands implements the meme-model query commands. The same
// commands run once from the command line or repeatedly from the
// interactive shell.
package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meme-go/meme/pkg/model"
)

// ErrUsage is returned when a command is called with bad arguments. The
// usage text has already been written to the output.
var ErrUsage = errors.New("usage error")

// ErrUnknownCommand is returned for a command name Execute does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Pinger checks service liveness.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Runner executes commands against one model.
type Runner struct {
	Model  *model.Model
	Pinger Pinger
	Out    io.Writer

	// Defaults applied to every command; per-command flags override them.
	Half           model.Half
	IgnoreBadNames bool
}

// Names lists the commands Execute accepts, for completion.
func Names() []string {
	return []string{"rmat", "zpos", "twiss", "attr", "refresh", "ping"}
}

// Execute runs the named command.
func (r *Runner) Execute(ctx context.Context, name string, args []string) error {
	switch strings.ToLower(name) {
	case "rmat", "r":
		return r.cmdRmat(ctx, args)
	case "zpos", "z":
		return r.cmdZpos(ctx, args)
	case "twiss", "t":
		return r.cmdTwiss(ctx, args)
	case "attr", "a":
		return r.cmdAttr(ctx, args)
	case "refresh":
		return r.cmdRefresh(ctx, args)
	case "ping":
		return r.cmdPing(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

// halfFlag adapts model.Half to flag.Value.
type halfFlag struct{ h *model.Half }

func (f halfFlag) String() string {
	if f.h == nil {
		return model.FirstHalf.String()
	}
	return f.h.String()
}

func (f halfFlag) Set(s string) error {
	h, err := model.ParseHalf(s)
	if err != nil {
		return err
	}
	*f.h = h
	return nil
}

func (r *Runner) flagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.Out)
	fs.Usage = func() {
		fmt.Fprintf(r.Out, "Usage: %s %s\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and requires at least one positional name.
func parse(fs *flag.FlagSet, args []string, minNames int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, ErrUsage
	}
	if fs.NArg() < minNames {
		fs.Usage()
		return nil, ErrUsage
	}
	return fs.Args(), nil
}

func (r *Runner) cmdRmat(ctx context.Context, args []string) error {
	fs := r.flagSet("rmat", "[-from DEV] [-from-half H] [-to-half H] DEV...")
	opts := model.RmatOptions{FromHalf: r.Half, ToHalf: r.Half, IgnoreBadNames: r.IgnoreBadNames}
	from := fs.String("from", "", "Origin element or device (default: start of machine)")
	fs.Var(halfFlag{&opts.FromHalf}, "from-half", "Half of a split origin element (1, 2)")
	fs.Var(halfFlag{&opts.ToHalf}, "to-half", "Half of a split destination element (1, 2)")
	fs.BoolVar(&opts.IgnoreBadNames, "ignore-bad-names", opts.IgnoreBadNames, "Return NaN for unknown names")

	names, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	var fromNames []string
	if *from != "" {
		fromNames = []string{*from}
	}
	mats, err := r.Model.Rmat(ctx, fromNames, names, opts)
	if err != nil {
		return err
	}

	origin := *from
	if origin == "" {
		origin = "start"
	}
	for i, m := range mats {
		fmt.Fprintf(r.Out, "%s -> %s:\n%s\n", origin, names[i], m)
	}
	return nil
}

func (r *Runner) gatherOptions(fs *flag.FlagSet) *model.Options {
	opts := &model.Options{Half: r.Half, IgnoreBadNames: r.IgnoreBadNames}
	fs.Var(halfFlag{&opts.Half}, "half", "Half of a split element (1, 2)")
	fs.BoolVar(&opts.IgnoreBadNames, "ignore-bad-names", opts.IgnoreBadNames, "Return NaN for unknown names")
	return opts
}

func (r *Runner) cmdZpos(ctx context.Context, args []string) error {
	fs := r.flagSet("zpos", "[-half H] DEV...")
	opts := r.gatherOptions(fs)

	names, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	z, err := r.Model.ZPositions(ctx, names, *opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
	for i, name := range names {
		fmt.Fprintf(tw, "%s\t%.6f\n", name, z[i])
	}
	return tw.Flush()
}

func (r *Runner) cmdTwiss(ctx context.Context, args []string) error {
	fs := r.flagSet("twiss", "[-half H] [-format text|yaml] DEV...")
	opts := r.gatherOptions(fs)
	format := fs.String("format", "text", "Output format (text, yaml)")

	names, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	records, err := r.Model.Twiss(ctx, names, *opts)
	if err != nil {
		return err
	}

	switch *format {
	case "yaml":
		out := make(map[string]model.Twiss, len(names))
		for i, name := range names {
			out[name] = records[i]
		}
		enc := yaml.NewEncoder(r.Out)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		tw := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
		fmt.Fprint(tw, "NAME")
		for _, a := range model.Attributes() {
			fmt.Fprintf(tw, "\t%s", a.Column())
		}
		fmt.Fprintln(tw)
		for i, name := range names {
			fmt.Fprint(tw, name)
			for _, a := range model.Attributes() {
				fmt.Fprintf(tw, "\t%.6g", records[i].Get(a))
			}
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format: %s (supported: text, yaml)", *format)
	}
}

func (r *Runner) cmdAttr(ctx context.Context, args []string) error {
	fs := r.flagSet("attr", "[-half H] ATTRIBUTE DEV...")
	opts := r.gatherOptions(fs)

	rest, err := parse(fs, args, 2)
	if err != nil {
		return err
	}
	attr, err := model.ParseAttribute(rest[0])
	if err != nil {
		return err
	}
	names := rest[1:]

	values, err := r.Model.TwissAttribute(ctx, names, attr, *opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
	for i, name := range names {
		fmt.Fprintf(tw, "%s\t%s\t%.6g\n", name, attr, values[i])
	}
	return tw.Flush()
}

func (r *Runner) cmdRefresh(ctx context.Context, args []string) error {
	which := "all"
	if len(args) > 0 {
		which = strings.ToLower(args[0])
	}

	var err error
	switch which {
	case "rmat":
		err = r.Model.RefreshRmatData(ctx)
	case "twiss":
		err = r.Model.RefreshTwissData(ctx)
	case "all":
		err = r.Model.RefreshAll(ctx)
	default:
		fmt.Fprintln(r.Out, "Usage: refresh [rmat|twiss|all]")
		return ErrUsage
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "Refreshed %s tables of %s\n", which, r.Model.Key())
	return nil
}

func (r *Runner) cmdPing(ctx context.Context) error {
	if r.Pinger == nil {
		return errors.New("ping: not connected")
	}
	rtt, err := r.Pinger.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "pong in %s\n", rtt.Round(time.Microsecond))
	return nil
}
