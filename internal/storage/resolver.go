// Package storage resolves entity storage backends and provisions backup
// storage when no capable backend is registered.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/pve"
	"github.com/tis24dev/ctshift/internal/types"
)

// ErrNoBackupStorage is returned when every provisioning strategy has been
// exhausted. The operation must fail rather than silently downgrade to an
// unchecked location.
var ErrNoBackupStorage = errors.New("no usable backup storage could be located or provisioned")

// Platform is the slice of the platform client the resolver needs.
type Platform interface {
	ListStorages(ctx context.Context) ([]pve.Storage, error)
	AddDirStorage(ctx context.Context, name, path string) error
	CreateZFSDataset(ctx context.Context, dataset string) (string, error)
	NFSMountPath(st pve.Storage) string
}

const (
	probeAttempts = 5
	probeBackoff  = 250 * time.Millisecond
)

var classTitle = cases.Title(language.English)

// Resolver locates the storage backend behind an entity's primary disk and
// finds or provisions a backup-capable backend.
type Resolver struct {
	platform Platform
	logger   *logging.Logger

	mkdirAll func(string, os.FileMode) error
	stat     func(string) (os.FileInfo, error)
	sleep    func(time.Duration)
	now      func() time.Time
}

// NewResolver creates a storage resolver.
func NewResolver(platform Platform, logger *logging.Logger) *Resolver {
	return &Resolver{
		platform: platform,
		logger:   logger,
		mkdirAll: os.MkdirAll,
		stat:     os.Stat,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// ResolveEntityStorage returns the registered storage backend behind the
// entity's primary disk. An unregistered storage name is a configuration
// error: the operation exits instead of retrying.
func (r *Resolver) ResolveEntityStorage(ctx context.Context, e pve.Entity) (pve.Storage, error) {
	if e.Storage == "" {
		return pve.Storage{}, fmt.Errorf("no primary disk storage found in config of %s", e.Label())
	}

	storages, err := r.platform.ListStorages(ctx)
	if err != nil {
		return pve.Storage{}, err
	}
	for _, st := range storages {
		if st.Name == e.Storage {
			r.logger.Debug("Entity storage %q resolved: class=%s active=%v avail=%d",
				st.Name, st.Class, st.Active, st.AvailBytes)
			if !st.Active {
				return pve.Storage{}, fmt.Errorf("storage %q backing %s is not active", st.Name, e.Label())
			}
			return st, nil
		}
	}
	return pve.Storage{}, fmt.Errorf("storage %q referenced by %s is not registered with the platform", e.Storage, e.Label())
}

// ResolveBackupStorage locates or provisions a backup-capable storage
// backend, trying strategies from highest to lowest preference:
//
//  1. reuse any active storage already advertising backup content;
//  2. if the entity's storage is ZFS-backed, a fresh dataset under the same
//     pool, registered as a directory-class backup store;
//  3. if directory- or NFS-backed, a timestamped subdirectory, registered
//     the same way;
//  4. the same subdirectory/dataset strategy on every other active storage;
//  5. fatal error.
func (r *Resolver) ResolveBackupStorage(ctx context.Context, entityStorage pve.Storage) (pve.Storage, error) {
	storages, err := r.platform.ListStorages(ctx)
	if err != nil {
		return pve.Storage{}, err
	}

	// Strategy 1: reuse an existing backup-capable storage.
	for _, st := range storages {
		if !st.Backup || st.Disabled || !st.Active {
			continue
		}
		path := r.accessPath(st)
		if path == "" {
			continue
		}
		if err := r.probeReady(path); err != nil {
			r.logger.Warning("Backup-capable storage %q failed readiness probe: %v", st.Name, err)
			continue
		}
		r.logger.Info("Reusing %s storage %q for backups (path %s)",
			classTitle.String(st.Class.String()), st.Name, path)
		return st, nil
	}

	// Strategy 2/3: provision next to the entity's own storage.
	if provisioned, err := r.provisionOn(ctx, entityStorage); err == nil {
		return provisioned, nil
	} else if !errors.Is(err, errUnprovisionable) {
		r.logger.Warning("Provisioning on entity storage %q failed: %v", entityStorage.Name, err)
	}

	// Strategy 4: scan all other active storages.
	for _, st := range storages {
		if st.Name == entityStorage.Name || st.Disabled || !st.Active {
			continue
		}
		provisioned, err := r.provisionOn(ctx, st)
		if err != nil {
			if !errors.Is(err, errUnprovisionable) {
				r.logger.Warning("Provisioning on storage %q failed: %v", st.Name, err)
			}
			continue
		}
		return provisioned, nil
	}

	return pve.Storage{}, ErrNoBackupStorage
}

// errUnprovisionable marks storages whose class cannot host a directory
// backup store (no path and no pool).
var errUnprovisionable = errors.New("storage class cannot host a backup directory")

// provisionOn creates a backup location on the given storage and registers
// it as a directory-class backup store.
func (r *Resolver) provisionOn(ctx context.Context, st pve.Storage) (pve.Storage, error) {
	stamp := r.now().Format("20060102-150405")
	name := fmt.Sprintf("ctshift-bk-%s", stamp)

	var path string
	switch st.Class {
	case types.StorageZFS:
		if st.Pool == "" {
			return pve.Storage{}, errUnprovisionable
		}
		dataset := fmt.Sprintf("%s/ctshift-backup-%s", st.Pool, stamp)
		r.logger.Info("Creating ZFS dataset %s for backup storage", dataset)
		mountpoint, err := r.platform.CreateZFSDataset(ctx, dataset)
		if err != nil {
			return pve.Storage{}, fmt.Errorf("create dataset %s: %w", dataset, err)
		}
		path = mountpoint
	case types.StorageDir, types.StorageNFS:
		base := r.accessPath(st)
		if base == "" {
			return pve.Storage{}, errUnprovisionable
		}
		path = filepath.Join(base, fmt.Sprintf("ctshift-backup-%s", stamp))
		r.logger.Info("Creating backup directory %s on %s storage %q",
			path, classTitle.String(st.Class.String()), st.Name)
		if err := r.mkdirAll(path, 0o755); err != nil {
			return pve.Storage{}, fmt.Errorf("create backup directory %s: %w", path, err)
		}
	default:
		return pve.Storage{}, errUnprovisionable
	}

	if err := r.probeReady(path); err != nil {
		return pve.Storage{}, fmt.Errorf("provisioned path %s never became ready: %w", path, err)
	}

	if err := r.platform.AddDirStorage(ctx, name, path); err != nil {
		return pve.Storage{}, fmt.Errorf("register backup storage %q at %s: %w", name, path, err)
	}

	// Return the registered view so live status (active flag, free space)
	// comes from the platform, not from assumptions.
	storages, err := r.platform.ListStorages(ctx)
	if err != nil {
		return pve.Storage{}, err
	}
	for _, registered := range storages {
		if registered.Name == name {
			r.logger.Info("Backup storage %q registered at %s", name, path)
			return registered, nil
		}
	}
	return pve.Storage{}, fmt.Errorf("backup storage %q was registered but did not appear in the storage list", name)
}

// accessPath returns the filesystem path used to reach the storage for
// probing and provisioning.
func (r *Resolver) accessPath(st pve.Storage) string {
	switch st.Class {
	case types.StorageNFS:
		return r.platform.NFSMountPath(st)
	default:
		return st.Path
	}
}

// probeReady confirms the path is resolvable and is a mounted directory,
// retrying with linear backoff. Network mounts can take a moment to appear
// after registration.
func (r *Resolver) probeReady(path string) error {
	var lastErr error
	for attempt := 1; attempt <= probeAttempts; attempt++ {
		info, err := r.stat(path)
		if err == nil && info.IsDir() {
			if attempt > 1 {
				r.logger.Debug("Path %s became ready on attempt %d", path, attempt)
			}
			return nil
		}
		if err == nil {
			lastErr = fmt.Errorf("path %s exists but is not a directory", path)
		} else {
			lastErr = err
		}
		if attempt < probeAttempts {
			r.sleep(time.Duration(attempt) * probeBackoff)
		}
	}
	return fmt.Errorf("readiness probe failed after %d attempts: %w", probeAttempts, lastErr)
}
