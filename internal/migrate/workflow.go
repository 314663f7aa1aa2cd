package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/tis24dev/ctshift/internal/capacity"
	"github.com/tis24dev/ctshift/internal/input"
	"github.com/tis24dev/ctshift/internal/inventory"
	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/pve"
	"github.com/tis24dev/ctshift/internal/types"
	"github.com/tis24dev/ctshift/pkg/utils"
)

// EntitySelector resolves the migration pair and validates identifiers.
type EntitySelector interface {
	Select(ctx context.Context, currentArg, newArg string) (inventory.Selection, error)
	ValidateNewID(ctx context.Context, current, newID int) error
}

// StorageResolver locates the entity's storage and a backup-capable one.
type StorageResolver interface {
	ResolveEntityStorage(ctx context.Context, e pve.Entity) (pve.Storage, error)
	ResolveBackupStorage(ctx context.Context, entityStorage pve.Storage) (pve.Storage, error)
}

// CapacityChecker gates storage backends on the run's space requirement.
type CapacityChecker interface {
	Requirement(ctx context.Context, e pve.Entity) (capacity.Requirement, error)
	Ensure(ctx context.Context, st pve.Storage, req capacity.Requirement) error
}

// Migrator runs the state machine. preRestore is called between the backup
// and the restore so the caller can re-check the destination once the
// archive actually occupies space.
type Migrator interface {
	Run(ctx context.Context, e pve.Entity, newID int, backupStorage, destStorage pve.Storage, preRestore Gate) (Result, error)
}

// Report summarizes a finished run.
type Report struct {
	Entity        pve.Entity
	NewID         int
	ArchivePath   string
	ArchiveReused bool
	Elapsed       time.Duration
	CleanupFailed bool
}

// Workflow wires selector, resolver, capacity gates and executor into one
// run and prints the final report.
type Workflow struct {
	selector EntitySelector
	resolver StorageResolver
	checker  CapacityChecker
	migrator Migrator
	logger   *logging.Logger

	now func() time.Time
}

// NewWorkflow assembles a workflow from its components.
func NewWorkflow(selector EntitySelector, resolver StorageResolver, checker CapacityChecker, migrator Migrator, logger *logging.Logger) *Workflow {
	return &Workflow{
		selector: selector,
		resolver: resolver,
		checker:  checker,
		migrator: migrator,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs one full migration. Capacity is gated on both the backup and
// the destination storage before any destructive step, and the new
// identifier is re-checked live right before the executor starts.
func (w *Workflow) Run(ctx context.Context, currentArg, newArg string) (Report, error) {
	start := w.now()

	sel, err := w.selector.Select(ctx, currentArg, newArg)
	if err != nil {
		return Report{}, err
	}
	w.logger.Info("Migrating %s to identifier %d", sel.Entity.Label(), sel.NewID)

	entityStorage, err := w.resolver.ResolveEntityStorage(ctx, sel.Entity)
	if err != nil {
		return Report{}, err
	}
	backupStorage, err := w.resolver.ResolveBackupStorage(ctx, entityStorage)
	if err != nil {
		return Report{}, err
	}

	req, err := w.checker.Requirement(ctx, sel.Entity)
	if err != nil {
		return Report{}, err
	}
	w.logger.Info("Space requirement: %s", req)
	if err := w.checker.Ensure(ctx, backupStorage, req); err != nil {
		return Report{}, err
	}
	if err := w.checker.Ensure(ctx, entityStorage, req); err != nil {
		return Report{}, err
	}

	// The identifier may have been taken while prompts and capacity checks
	// were running. Last call before anything destructive happens.
	if err := w.selector.ValidateNewID(ctx, sel.Entity.ID, sel.NewID); err != nil {
		return Report{}, err
	}

	// Writing the archive may consume space on the destination filesystem
	// (the backup location can be carved out of the entity's own storage),
	// so the destination is measured again right before the restore.
	preRestore := func(ctx context.Context) error {
		return w.checker.Ensure(ctx, entityStorage, req)
	}

	result, runErr := w.migrator.Run(ctx, sel.Entity, sel.NewID, backupStorage, entityStorage, preRestore)
	report := Report{
		Entity:        sel.Entity,
		NewID:         sel.NewID,
		ArchivePath:   result.ArchivePath,
		ArchiveReused: result.Reused,
		Elapsed:       w.now().Sub(start),
	}
	if errors.Is(runErr, ErrCleanupFailed) {
		report.CleanupFailed = true
		w.printReport(report)
		return report, runErr
	}
	if runErr != nil {
		return report, runErr
	}
	w.printReport(report)
	return report, nil
}

func (w *Workflow) printReport(r Report) {
	w.logger.Info("Migration finished: %s is now %d", r.Entity.Label(), r.NewID)
	w.logger.Info("Archive: %s (reused: %v)", r.ArchivePath, r.ArchiveReused)
	w.logger.Info("Elapsed: %s", utils.FormatDuration(r.Elapsed))
	if r.CleanupFailed {
		w.logger.Warning("Old entity %s still exists and must be removed manually", r.Entity.Label())
	}
}

// ExitCodeFor maps a workflow error to the process exit code: user and
// input errors exit 1, everything else operational exits 2.
func ExitCodeFor(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitSuccess
	case errors.Is(err, inventory.ErrInvalidSelection),
		errors.Is(err, inventory.ErrNoEntities),
		input.IsAborted(err):
		return types.ExitValidationError
	default:
		return types.ExitOperationalError
	}
}
