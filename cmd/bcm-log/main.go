// Command bcm-log is a tool for viewing and analyzing BCM capture
// files.
//
// Capture files are created by bcm-monitor and bcmctl with the
// -capture flag; every protocol event is appended in CBOR.
//
// Usage:
//
//	bcm-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSON or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	bcm-log view bus.cbor
//
//	# View only inbound messages
//	bcm-log view -direction in bus.cbor
//
//	# Export to JSONL
//	bcm-log export -format jsonl bus.cbor
//
//	# Keep one identifier's traffic in a new file
//	bcm-log filter -id 0x222 -o filtered.cbor bus.cbor
//
//	# Show statistics
//	bcm-log stats bus.cbor
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/canbcm/bcm-go/cmd/bcm-log/commands"
)

const usage = `bcm-log - BCM Capture Analyzer

Usage:
  bcm-log <command> [flags] <file.cbor>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSON or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "bcm-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `bcm-log view - View capture file in human-readable format

Usage:
  bcm-log view [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	direction := fs.String("direction", "", "Filter by direction (in, out, none)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	id := fs.String("id", "", "Filter by task identifier")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	var filter commands.ViewFilter

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fatal(err)
		}
		filter.Direction = &d
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fatal(err)
		}
		filter.Category = &c
	}

	if *id != "" {
		parsed, err := strconv.ParseUint(*id, 0, 32)
		if err != nil {
			fatal(fmt.Errorf("invalid identifier: %w", err))
		}
		u := uint32(parsed)
		filter.ID = &u
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `bcm-log export - Export capture file to JSON or CSV format

Usage:
  bcm-log export [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunExport(fs.Arg(0), *format, *output); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `bcm-log filter - Filter capture file and write to new file

Usage:
  bcm-log filter [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	channelID := fs.String("channel-id", "", "Filter by channel ID")
	iface := fs.String("interface", "", "Filter by bus interface")
	id := fs.String("id", "", "Filter by task identifier")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	direction := fs.String("direction", "", "Filter by direction (in, out, none)")
	category := fs.String("category", "", "Filter by category (message, state, error)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:    *output,
		ChannelID: *channelID,
		Interface: *iface,
		ID:        *id,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Direction: *direction,
		Category:  *category,
	}

	if err := commands.RunFilter(fs.Arg(0), opts, os.Stdout); err != nil {
		fatal(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `bcm-log stats - Show statistics about the capture file

Usage:
  bcm-log stats <file.cbor>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
