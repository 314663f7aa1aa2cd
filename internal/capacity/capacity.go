// Package capacity computes how much space a migration needs and verifies
// that a storage backend can hold it before any destructive step runs.
package capacity

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/pve"
	"github.com/tis24dev/ctshift/internal/types"
	"github.com/tis24dev/ctshift/pkg/utils"
)

const (
	// defaultSizeBytes is assumed when neither live usage nor a configured
	// size is available.
	defaultSizeBytes = 10 << 30

	// safetyFactor pads the requirement: archives carry metadata and
	// restores need scratch space beyond the raw payload.
	safetyFactor = 1.2
)

// Platform is the slice of the platform client the checker needs.
type Platform interface {
	DiskUsage(ctx context.Context, e pve.Entity) (int64, error)
	ZFSGet(ctx context.Context, dataset, property string) (int64, error)
	ZFSSetQuota(ctx context.Context, dataset string, bytes int64) error
	NFSMountPath(st pve.Storage) string
}

// Requirement is the padded space requirement for one migration run.
type Requirement struct {
	Bytes  int64
	Source string
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s (from %s, incl. safety margin)", utils.FormatBytes(r.Bytes), r.Source)
}

// Checker measures requirements and free space.
type Checker struct {
	platform Platform
	logger   *logging.Logger

	statfs func(path string) (int64, error)
}

// NewChecker creates a capacity checker.
func NewChecker(platform Platform, logger *logging.Logger) *Checker {
	return &Checker{
		platform: platform,
		logger:   logger,
		statfs:   statfsAvail,
	}
}

func statfsAvail(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail) * st.Bsize, nil
}

// Requirement computes the padded space requirement for the entity. Live
// usage wins over the configured disk size, which wins over a conservative
// default. Computed once per run and reused for every gate.
func (c *Checker) Requirement(ctx context.Context, e pve.Entity) (Requirement, error) {
	base := int64(0)
	source := ""

	usage, err := c.platform.DiskUsage(ctx, e)
	if err != nil {
		c.logger.Debug("Live usage unavailable for %s: %v", e.Label(), err)
	}
	switch {
	case usage > 0:
		base, source = usage, "live usage"
	case e.SizeBytes > 0:
		base, source = e.SizeBytes, "configured disk size"
	default:
		base, source = defaultSizeBytes, "default estimate"
	}

	req := Requirement{
		Bytes:  int64(float64(base) * safetyFactor),
		Source: source,
	}
	c.logger.Debug("Space requirement for %s: %s", e.Label(), req)
	return req, nil
}

// Available returns the free bytes on a storage backend, measured the way
// its class demands.
func (c *Checker) Available(ctx context.Context, st pve.Storage) (int64, error) {
	switch st.Class {
	case types.StorageDir:
		if st.Path == "" {
			return 0, fmt.Errorf("storage %q has no path to measure", st.Name)
		}
		return c.statfs(st.Path)
	case types.StorageNFS:
		// Registry metadata may omit the mount point; the live mount
		// table is authoritative.
		return c.statfs(c.platform.NFSMountPath(st))
	case types.StorageZFS:
		if st.Pool == "" {
			return 0, fmt.Errorf("ZFS storage %q has no dataset registered", st.Name)
		}
		avail, err := c.platform.ZFSGet(ctx, st.Pool, "available")
		if err == nil {
			return avail, nil
		}
		root := poolRoot(st.Pool)
		if root == st.Pool {
			return 0, err
		}
		c.logger.Debug("Dataset %s not measurable (%v), falling back to pool %s", st.Pool, err, root)
		return c.platform.ZFSGet(ctx, root, "available")
	default:
		if st.AvailBytes > 0 {
			return st.AvailBytes, nil
		}
		return 0, fmt.Errorf("cannot measure free space on %q (class %s)", st.Name, st.Class)
	}
}

// Ensure verifies the storage can hold the requirement. For ZFS-backed
// storages with a quota below the requirement it raises the quota when the
// parent pool has headroom, then re-measures.
func (c *Checker) Ensure(ctx context.Context, st pve.Storage, req Requirement) error {
	avail, err := c.Available(ctx, st)
	if err != nil {
		return err
	}
	if avail >= req.Bytes {
		c.logger.Debug("Storage %q has %s available, requirement %s met",
			st.Name, utils.FormatBytes(avail), utils.FormatBytes(req.Bytes))
		return nil
	}

	if st.Class == types.StorageZFS && st.Pool != "" {
		raised, raiseErr := c.tryRaiseQuota(ctx, st, req)
		if raiseErr != nil {
			c.logger.Warning("Quota raise on %s failed: %v", st.Pool, raiseErr)
		} else if raised {
			avail, err = c.Available(ctx, st)
			if err != nil {
				return err
			}
			if avail >= req.Bytes {
				return nil
			}
		}
	}

	return fmt.Errorf("storage %q has %s available but %s is required",
		st.Name, utils.FormatBytes(avail), utils.FormatBytes(req.Bytes))
}

// tryRaiseQuota lifts a dataset quota when the quota is the limiting factor
// and the pool itself has headroom. A quota bounds the dataset's total
// consumption, so the target must cover what the dataset already holds plus
// the requirement, or the re-measure could never pass on a non-empty
// dataset. Returns true when a quota was changed.
func (c *Checker) tryRaiseQuota(ctx context.Context, st pve.Storage, req Requirement) (bool, error) {
	quota, err := c.platform.ZFSGet(ctx, st.Pool, "quota")
	if err != nil {
		return false, err
	}
	if quota == 0 {
		return false, nil
	}
	used, err := c.platform.ZFSGet(ctx, st.Pool, "used")
	if err != nil {
		return false, err
	}
	target := used + req.Bytes
	if quota >= target {
		return false, nil
	}

	poolAvail, err := c.platform.ZFSGet(ctx, poolRoot(st.Pool), "available")
	if err != nil {
		return false, err
	}
	if poolAvail < req.Bytes {
		return false, fmt.Errorf("pool %s has only %s free", poolRoot(st.Pool), utils.FormatBytes(poolAvail))
	}

	c.logger.Info("Raising quota on %s from %s to %s",
		st.Pool, utils.FormatBytes(quota), utils.FormatBytes(target))
	if err := c.platform.ZFSSetQuota(ctx, st.Pool, target); err != nil {
		return false, err
	}
	return true, nil
}

func poolRoot(dataset string) string {
	if i := strings.IndexByte(dataset, '/'); i > 0 {
		return dataset[:i]
	}
	return dataset
}
