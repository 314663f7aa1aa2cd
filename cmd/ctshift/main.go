// ctshift changes the identifier of a Proxmox VE container or virtual
// machine: stop, back up, restore under the new identifier, verify, destroy
// the old entity.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/tis24dev/ctshift/internal/capacity"
	"github.com/tis24dev/ctshift/internal/cli"
	"github.com/tis24dev/ctshift/internal/input"
	"github.com/tis24dev/ctshift/internal/inventory"
	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/migrate"
	"github.com/tis24dev/ctshift/internal/pve"
	"github.com/tis24dev/ctshift/internal/storage"
	"github.com/tis24dev/ctshift/internal/tui"
	"github.com/tis24dev/ctshift/internal/types"
	"github.com/tis24dev/ctshift/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := cli.Parse(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return types.ExitSuccess.Int()
		}
		return types.ExitValidationError.Int()
	}
	if opts.ShowVersion {
		fmt.Println(version.Full())
		return types.ExitSuccess.Int()
	}

	level := types.LogLevelInfo
	if opts.Verbose {
		level = types.LogLevelDebug
	}
	useColor := term.IsTerminal(int(os.Stdout.Fd()))

	logger, cleanup, err := logging.StartFileLogger(opts.LogFile, level, useColor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctshift: %v\n", err)
		return types.ExitOperationalError.Int()
	}
	defer cleanup()

	// Ctrl+C / SIGTERM cancel the run context; the TUI (if any) stops with it.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	tui.SetAbortContext(ctx)

	logger.Info("%s starting", version.Full())

	if err := pve.CheckTools(); err != nil {
		logger.Error("%v", err)
		return types.ExitValidationError.Int()
	}

	client := pve.NewClient(logger)

	selector := inventory.NewSelector(client, logger)
	selector.ForceText = opts.ForceText

	workflow := migrate.NewWorkflow(
		selector,
		storage.NewResolver(client, logger),
		capacity.NewChecker(client, logger),
		migrate.NewExecutor(client, logger),
		logger,
	)

	_, err = workflow.Run(ctx, opts.CurrentID, opts.NewID)
	switch {
	case err == nil:
	case input.IsAborted(err):
		logger.Warning("Aborted by user")
	default:
		logger.Error("%v", err)
	}
	return migrate.ExitCodeFor(err).Int()
}
