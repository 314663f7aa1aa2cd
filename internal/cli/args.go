// Package cli parses command-line arguments for ctshift.
package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/tis24dev/ctshift/internal/logging"
)

// Options holds the parsed command line.
type Options struct {
	// CurrentID and NewID are the optional positional arguments. Empty
	// strings mean "ask interactively".
	CurrentID string
	NewID     string

	Verbose     bool
	ForceText   bool
	LogFile     string
	ShowVersion bool
}

// Parse reads the command line. args excludes the program name.
func Parse(args []string, errOut io.Writer) (*Options, error) {
	opts := &Options{LogFile: logging.DefaultLogPath}

	fs := flag.NewFlagSet("ctshift", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { printUsage(errOut, fs) }

	fs.BoolVar(&opts.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&opts.Verbose, "v", false, "enable debug logging (shorthand)")
	fs.BoolVar(&opts.ForceText, "cli", false, "use plain-text prompts instead of the interactive screen")
	fs.StringVar(&opts.LogFile, "log-file", logging.DefaultLogPath, "append the run log to this file")
	fs.BoolVar(&opts.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	switch len(rest) {
	case 0:
	case 1:
		opts.CurrentID = rest[0]
	case 2:
		opts.CurrentID = rest[0]
		opts.NewID = rest[1]
	default:
		fs.Usage()
		return nil, fmt.Errorf("too many arguments: %v", rest[2:])
	}
	return opts, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: ctshift [options] [current-id] [new-id]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Changes the identifier of a Proxmox container or virtual machine by")
	fmt.Fprintln(w, "backing it up and restoring it under the new identifier.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Options:")
	fs.PrintDefaults()
}
