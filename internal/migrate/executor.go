// Package migrate drives the identifier change: stop, back up, restore
// under the new identifier, verify, then destroy the old entity.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/pve"
	"github.com/tis24dev/ctshift/internal/types"
	"github.com/tis24dev/ctshift/pkg/utils"
)

// State tracks how far the executor has progressed. Any failure leaves the
// machine in its last reached state with the old entity intact.
type State int

const (
	StateIdle State = iota
	StateStopped
	StateBackedUp
	StateRestored
	StateStarted
	StateVerified
	StateOldDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStopped:
		return "stopped"
	case StateBackedUp:
		return "backed-up"
	case StateRestored:
		return "restored"
	case StateStarted:
		return "started"
	case StateVerified:
		return "verified"
	case StateOldDestroyed:
		return "old-destroyed"
	default:
		return "unknown"
	}
}

// ErrCleanupFailed marks a run where the new entity is verified running but
// the old one could not be destroyed. The migration itself succeeded.
var ErrCleanupFailed = errors.New("migration succeeded but the old entity could not be destroyed")

const (
	verifyAttempts = 10
	verifyDelay    = 2 * time.Second
)

// Platform is the slice of the platform client the executor needs.
type Platform interface {
	Status(ctx context.Context, e pve.Entity) (types.EntityStatus, error)
	StatusByID(ctx context.Context, id int, kind types.EntityKind) (types.EntityStatus, error)
	Stop(ctx context.Context, e pve.Entity) error
	Start(ctx context.Context, id int, kind types.EntityKind) error
	Destroy(ctx context.Context, id int, kind types.EntityKind) error
	CreateArchive(ctx context.Context, e pve.Entity, storageName string) (string, error)
	FindArchive(e pve.Entity, st pve.Storage) (string, error)
	Restore(ctx context.Context, newID int, archive, storageName string, unprivileged bool, kind types.EntityKind) error
}

// Result reports what a run produced.
type Result struct {
	NewID       int
	ArchivePath string
	Reused      bool
}

// Executor runs the migration state machine.
type Executor struct {
	platform Platform
	logger   *logging.Logger

	state    State
	sleep    func(time.Duration)
	checksum func(path string) (string, error)
}

// NewExecutor creates an executor in the idle state.
func NewExecutor(platform Platform, logger *logging.Logger) *Executor {
	return &Executor{
		platform: platform,
		logger:   logger,
		state:    StateIdle,
		sleep:    time.Sleep,
		checksum: utils.ComputeChecksum,
	}
}

// State returns the last state the machine reached.
func (x *Executor) State() State {
	return x.state
}

// Gate is invoked between the backup and the restore. A non-nil error
// aborts the run with the old entity intact.
type Gate func(ctx context.Context) error

// Run executes the full migration for one entity. backupStorage hosts the
// archive; destStorage receives the restored disks. preRestore (optional)
// runs once the archive exists and before the restore starts: the archive
// may share a filesystem with the destination, so earlier free-space
// measurements can be stale by now. On any failure before verification the
// old entity is preserved; a destroy failure afterwards returns
// ErrCleanupFailed together with the successful result.
func (x *Executor) Run(ctx context.Context, e pve.Entity, newID int, backupStorage, destStorage pve.Storage, preRestore Gate) (Result, error) {
	x.state = StateIdle
	result := Result{NewID: newID}

	if err := x.stop(ctx, e); err != nil {
		return result, err
	}
	x.state = StateStopped

	archive, reused, err := x.backup(ctx, e, backupStorage)
	if err != nil {
		return result, err
	}
	result.ArchivePath = archive
	result.Reused = reused
	x.state = StateBackedUp

	if preRestore != nil {
		if err := preRestore(ctx); err != nil {
			return result, fmt.Errorf("destination check after backup failed, %s is preserved: %w", e.Label(), err)
		}
	}

	x.logger.Step("Restoring %s as %d on storage %q", e.Label(), newID, destStorage.Name)
	if err := x.platform.Restore(ctx, newID, archive, destStorage.Name, e.Unprivileged, e.Kind); err != nil {
		return result, fmt.Errorf("restore as %d failed, %s is preserved: %w", newID, e.Label(), err)
	}
	x.state = StateRestored

	x.logger.Step("Starting %d", newID)
	if err := x.platform.Start(ctx, newID, e.Kind); err != nil {
		return result, fmt.Errorf("start of %d failed, %s is preserved: %w", newID, e.Label(), err)
	}
	x.state = StateStarted

	x.logger.Step("Verifying %d is running", newID)
	if err := x.verify(ctx, newID, e.Kind); err != nil {
		return result, fmt.Errorf("verification of %d failed, %s is preserved: %w", newID, e.Label(), err)
	}
	x.state = StateVerified

	x.logger.Step("Destroying old entity %s", e.Label())
	if err := x.platform.Destroy(ctx, e.ID, e.Kind); err != nil {
		x.logger.Warning("Could not destroy %s: %v", e.Label(), err)
		return result, ErrCleanupFailed
	}
	x.state = StateOldDestroyed
	return result, nil
}

// stop brings the entity down. A stopped entity is skipped: the stop call
// must not be issued twice.
func (x *Executor) stop(ctx context.Context, e pve.Entity) error {
	status, err := x.platform.Status(ctx, e)
	if err != nil {
		return fmt.Errorf("query status of %s: %w", e.Label(), err)
	}
	if status == types.StatusStopped {
		x.logger.Skip("%s is already stopped", e.Label())
		return nil
	}
	x.logger.Step("Stopping %s", e.Label())
	if err := x.platform.Stop(ctx, e); err != nil {
		return fmt.Errorf("stop %s: %w", e.Label(), err)
	}
	return nil
}

// backup reuses the newest still-present archive for the entity or creates
// a fresh one. The archive checksum is logged either way.
func (x *Executor) backup(ctx context.Context, e pve.Entity, st pve.Storage) (string, bool, error) {
	if archive, err := x.platform.FindArchive(e, st); err == nil && archive != "" {
		x.logger.Skip("Reusing existing archive %s", archive)
		x.logChecksum(archive)
		return archive, true, nil
	}

	x.logger.Step("Creating backup of %s on storage %q", e.Label(), st.Name)
	archive, err := x.platform.CreateArchive(ctx, e, st.Name)
	if err != nil {
		return "", false, fmt.Errorf("backup of %s failed, entity left stopped but untouched: %w", e.Label(), err)
	}
	x.logChecksum(archive)
	return archive, false, nil
}

func (x *Executor) logChecksum(archive string) {
	sum, err := x.checksum(archive)
	if err != nil {
		x.logger.Debug("Checksum of %s unavailable: %v", archive, err)
		return
	}
	if size, err := utils.GetFileSize(archive); err == nil {
		x.logger.Info("Archive %s (%s) blake2b-256 %s", archive, utils.FormatBytes(size), sum)
		return
	}
	x.logger.Info("Archive %s blake2b-256 %s", archive, sum)
}

// verify polls until the new entity reports running. A bounded number of
// attempts keeps a wedged restore from hanging the run forever.
func (x *Executor) verify(ctx context.Context, id int, kind types.EntityKind) error {
	var last types.EntityStatus
	for attempt := 1; attempt <= verifyAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := x.platform.StatusByID(ctx, id, kind)
		if err == nil && status == types.StatusRunning {
			return nil
		}
		if err != nil {
			x.logger.Debug("Status of %d not readable on attempt %d: %v", id, attempt, err)
			last = types.StatusUnknown
		} else {
			last = status
		}
		if attempt < verifyAttempts {
			x.sleep(verifyDelay)
		}
	}
	return fmt.Errorf("entity %d never reached running state (last status %q)", id, last)
}
