package migrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tis24dev/ctshift/internal/capacity"
	"github.com/tis24dev/ctshift/internal/input"
	"github.com/tis24dev/ctshift/internal/inventory"
	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/pve"
	"github.com/tis24dev/ctshift/internal/types"
)

type fakeComponents struct {
	trace []string

	selection    inventory.Selection
	selectErr    error
	recheckErr   error
	resolveErr   error
	ensureErr    error
	ensureCalls  int
	failEnsureAt int // 1-based Ensure call index that starts failing, 0 = never
	migrateErr   error
	migrateRes   Result
	entityStore  pve.Storage
	backupStore  pve.Storage
}

func (f *fakeComponents) Select(ctx context.Context, currentArg, newArg string) (inventory.Selection, error) {
	f.trace = append(f.trace, "select")
	return f.selection, f.selectErr
}

func (f *fakeComponents) ValidateNewID(ctx context.Context, current, newID int) error {
	f.trace = append(f.trace, "recheck")
	return f.recheckErr
}

func (f *fakeComponents) ResolveEntityStorage(ctx context.Context, e pve.Entity) (pve.Storage, error) {
	f.trace = append(f.trace, "resolve-entity")
	return f.entityStore, f.resolveErr
}

func (f *fakeComponents) ResolveBackupStorage(ctx context.Context, st pve.Storage) (pve.Storage, error) {
	f.trace = append(f.trace, "resolve-backup")
	return f.backupStore, nil
}

func (f *fakeComponents) Requirement(ctx context.Context, e pve.Entity) (capacity.Requirement, error) {
	f.trace = append(f.trace, "requirement")
	return capacity.Requirement{Bytes: 12 << 30, Source: "live usage"}, nil
}

func (f *fakeComponents) Ensure(ctx context.Context, st pve.Storage, req capacity.Requirement) error {
	f.ensureCalls++
	f.trace = append(f.trace, "ensure "+st.Name)
	if f.failEnsureAt != 0 && f.ensureCalls >= f.failEnsureAt {
		return fmt.Errorf("storage filled up")
	}
	return f.ensureErr
}

func (f *fakeComponents) Run(ctx context.Context, e pve.Entity, newID int, backupStorage, destStorage pve.Storage, preRestore Gate) (Result, error) {
	f.trace = append(f.trace, "migrate")
	if preRestore != nil {
		if err := preRestore(ctx); err != nil {
			return f.migrateRes, err
		}
	}
	return f.migrateRes, f.migrateErr
}

func newTestWorkflow() (*Workflow, *fakeComponents) {
	logger := logging.New(types.LogLevelDebug, false)
	logger.SetOutput(&bytes.Buffer{})
	f := &fakeComponents{
		selection: inventory.Selection{
			Entity: pve.Entity{ID: 105, Kind: types.KindContainer, Name: "web", Storage: "local-zfs"},
			NewID:  205,
		},
		entityStore: pve.Storage{Name: "local-zfs", Class: types.StorageZFS, Pool: "rpool/data"},
		backupStore: pve.Storage{Name: "backup", Class: types.StorageDir, Path: "/backup"},
		migrateRes:  Result{NewID: 205, ArchivePath: "/backup/dump/vzdump-lxc-105.tar.zst"},
	}
	return NewWorkflow(f, f, f, f, logger), f
}

func indexOf(t *testing.T, trace []string, step string) int {
	t.Helper()
	for i, s := range trace {
		if s == step {
			return i
		}
	}
	t.Fatalf("step %q missing from trace %v", step, trace)
	return -1
}

func TestWorkflowOrdering(t *testing.T) {
	w, f := newTestWorkflow()

	report, err := w.Run(context.Background(), "105", "205")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.NewID != 205 || report.ArchivePath == "" {
		t.Errorf("report = %+v", report)
	}

	// Capacity gates run before the executor, the live identifier
	// re-check comes last before it.
	ensureBackup := indexOf(t, f.trace, "ensure backup")
	ensureEntity := indexOf(t, f.trace, "ensure local-zfs")
	recheck := indexOf(t, f.trace, "recheck")
	migrate := indexOf(t, f.trace, "migrate")
	if !(ensureBackup < migrate && ensureEntity < migrate) {
		t.Errorf("capacity gate must precede migration: %v", f.trace)
	}
	if !(ensureBackup < recheck && ensureEntity < recheck && recheck < migrate) {
		t.Errorf("identifier re-check must be the last step before migration: %v", f.trace)
	}
}

func TestWorkflowCapacityGateBlocksMigration(t *testing.T) {
	w, f := newTestWorkflow()
	f.ensureErr = fmt.Errorf("storage full")

	_, err := w.Run(context.Background(), "105", "205")
	if err == nil {
		t.Fatalf("expected capacity error")
	}
	for _, s := range f.trace {
		if s == "migrate" {
			t.Errorf("migration must not run when capacity is insufficient")
		}
	}
	if ExitCodeFor(err) != types.ExitOperationalError {
		t.Errorf("capacity failure must be operational, got %v", ExitCodeFor(err))
	}
}

func TestWorkflowReChecksDestinationDuringMigration(t *testing.T) {
	w, f := newTestWorkflow()
	// First two Ensure calls (backup, destination) pass; the third is the
	// post-backup destination re-check, which sees the archive's footprint.
	f.failEnsureAt = 3

	_, err := w.Run(context.Background(), "105", "205")
	if err == nil {
		t.Fatalf("expected in-flight capacity error")
	}
	if f.ensureCalls != 3 {
		t.Errorf("ensure calls = %d; want 3 (backup, destination, post-backup re-check)", f.ensureCalls)
	}
	migrate := indexOf(t, f.trace, "migrate")
	last := -1
	for i, s := range f.trace {
		if s == "ensure local-zfs" {
			last = i
		}
	}
	if last < migrate {
		t.Errorf("destination must be re-measured once the migration is underway: %v", f.trace)
	}
}

func TestWorkflowRecheckBlocksMigration(t *testing.T) {
	w, f := newTestWorkflow()
	f.recheckErr = fmt.Errorf("%w: identifier 205 is already in use", inventory.ErrInvalidSelection)

	_, err := w.Run(context.Background(), "105", "205")
	if err == nil {
		t.Fatalf("expected collision error")
	}
	for _, s := range f.trace {
		if s == "migrate" {
			t.Errorf("migration must not run after a failed identifier re-check")
		}
	}
	if ExitCodeFor(err) != types.ExitValidationError {
		t.Errorf("collision must be a validation error, got %v", ExitCodeFor(err))
	}
}

func TestWorkflowCleanupFailure(t *testing.T) {
	w, f := newTestWorkflow()
	f.migrateErr = ErrCleanupFailed
	f.migrateRes = Result{NewID: 205, ArchivePath: "/backup/a.tar.zst"}

	report, err := w.Run(context.Background(), "105", "205")
	if !errors.Is(err, ErrCleanupFailed) {
		t.Fatalf("expected ErrCleanupFailed, got %v", err)
	}
	if !report.CleanupFailed {
		t.Errorf("report must flag the failed cleanup: %+v", report)
	}
	if ExitCodeFor(err) != types.ExitOperationalError {
		t.Errorf("cleanup failure exits operational, got %v", ExitCodeFor(err))
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want types.ExitCode
	}{
		{nil, types.ExitSuccess},
		{inventory.ErrNoEntities, types.ExitValidationError},
		{fmt.Errorf("%w: bad id", inventory.ErrInvalidSelection), types.ExitValidationError},
		{input.ErrInputAborted, types.ExitValidationError},
		{context.Canceled, types.ExitValidationError},
		{errors.New("pvesm blew up"), types.ExitOperationalError},
		{ErrCleanupFailed, types.ExitOperationalError},
	}
	for _, tt := range tests {
		if got := ExitCodeFor(tt.err); got != tt.want {
			t.Errorf("ExitCodeFor(%v) = %v; want %v", tt.err, got, tt.want)
		}
	}
}
