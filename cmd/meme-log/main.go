// Command meme-log views and analyzes model service protocol log files.
//
// Log files are written by meme-model and meme-model-server when run with the
// -protocol-log flag.
//
// Usage:
//
//	meme-log <command> [flags] <file.mlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only table replacements
//	meme-log view -category state model.mlog
//
//	# View traffic for one table
//	meme-log view -path BMAD:SYS0:1:CU_HXR:LIVE:RMAT model.mlog
//
//	# Export one connection to CSV
//	meme-log export -format csv -conn-id 3f2a9c1e-... -o model.csv model.mlog
//
//	# Keep only one model's events
//	meme-log filter -model CU_HXR -o hxr.mlog model.mlog
//
//	# Show statistics
//	meme-log stats model.mlog
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/meme-go/meme/cmd/meme-log/commands"
)

type command struct {
	name    string
	summary string
	args    string
	run     func(fs *flag.FlagSet, args []string) error
}

var commandTable = []command{
	{"view", "View log file in human-readable format", "[flags] <file.mlog>", runView},
	{"export", "Export log file to JSON or CSV format", "[flags] <file.mlog>", runExport},
	{"filter", "Filter log file and write to new file", "-o <out.mlog> [flags] <file.mlog>", runFilter},
	{"stats", "Show statistics about the log file", "<file.mlog>", runStats},
}

func usage() {
	fmt.Fprint(os.Stderr, "meme-log - Model Service Log Analyzer\n\nUsage:\n  meme-log <command> [flags] <file.mlog>\n\nCommands:\n")
	for _, c := range commandTable {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprint(os.Stderr, "\nUse \"meme-log <command> -help\" for more information about a command.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	name := os.Args[1]
	if slices.Contains([]string{"-h", "-help", "--help", "help"}, name) {
		usage()
		return
	}
	i := slices.IndexFunc(commandTable, func(c command) bool { return c.name == name })
	if i < 0 {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		usage()
		os.Exit(1)
	}

	c := commandTable[i]
	fs := flag.NewFlagSet(c.name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "meme-log %s - %s\n\nUsage:\n  meme-log %s %s\n\nFlags:\n", c.name, c.summary, c.name, c.args)
		fs.PrintDefaults()
	}
	if err := c.run(fs, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parse parses args and returns the single positional log path.
func parse(fs *flag.FlagSet, args []string) string {
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(fs *flag.FlagSet, args []string) error {
	var sel commands.Selector
	sel.Register(fs)
	path := parse(fs, args)

	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(fs *flag.FlagSet, args []string) error {
	var sel commands.Selector
	sel.Register(fs)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)

	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output, filter)
}

func runFilter(fs *flag.FlagSet, args []string) error {
	var sel commands.Selector
	sel.Register(fs)
	output := fs.String("o", "", "Output file (required)")
	path := parse(fs, args)

	if *output == "" {
		fs.Usage()
		return fmt.Errorf("output file (-o) required")
	}
	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	n, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
	return nil
}

func runStats(fs *flag.FlagSet, args []string) error {
	return commands.RunStats(parse(fs, args), os.Stdout)
}
