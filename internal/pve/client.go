package pve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/types"
)

const (
	lxcConfigDir  = "/etc/pve/lxc"
	qemuConfigDir = "/etc/pve/qemu-server"
	storageCfg    = "/etc/pve/storage.cfg"
	procMounts    = "/proc/mounts"
)

// Entity is a container or virtual machine known to the platform.
type Entity struct {
	ID           int
	Kind         types.EntityKind
	Name         string
	Status       types.EntityStatus
	Unprivileged bool
	Storage      string // storage name of the primary disk
	SizeBytes    int64  // configured disk size, 0 when unknown
}

// Label returns a short human-readable handle used in logs and menus.
func (e Entity) Label() string {
	kind := "CT"
	if e.Kind == types.KindVM {
		kind = "VM"
	}
	if e.Name == "" {
		return fmt.Sprintf("%s %d", kind, e.ID)
	}
	return fmt.Sprintf("%s %d (%s)", kind, e.ID, e.Name)
}

// ConfigPath returns the platform config file backing this entity.
func (e Entity) ConfigPath() string {
	if e.Kind == types.KindVM {
		return filepath.Join(qemuConfigDir, fmt.Sprintf("%d.conf", e.ID))
	}
	return filepath.Join(lxcConfigDir, fmt.Sprintf("%d.conf", e.ID))
}

// Storage is a named storage pool registered with the platform.
type Storage struct {
	Name       string
	Class      types.StorageClass
	Active     bool
	Disabled   bool
	Backup     bool  // advertises backup content capability
	AvailBytes int64 // live free space, 0 when the storage is inactive
	Path       string
	Pool       string // zfspool class only
	Server     string // nfs class only
	Export     string // nfs class only
}

// DumpDir returns the directory vzdump archives land in for this storage.
func (s Storage) DumpDir() string {
	if s.Path == "" {
		return ""
	}
	return filepath.Join(s.Path, "dump")
}

// Client drives the Proxmox VE CLI surface. All output parsing is delegated
// to the pure functions in parse.go.
type Client struct {
	runner   CommandRunner
	logger   *logging.Logger
	readFile func(string) ([]byte, error)
	readDir  func(string) ([]os.DirEntry, error)
	stat     func(string) (os.FileInfo, error)
}

// NewClient creates a platform client using exec-based command execution.
func NewClient(logger *logging.Logger) *Client {
	return NewClientWithRunner(logger, osCommandRunner{})
}

// NewClientWithRunner creates a platform client with an injected runner
// (used by tests to drive the client against canned output).
func NewClientWithRunner(logger *logging.Logger, runner CommandRunner) *Client {
	return &Client{
		runner:   runner,
		logger:   logger,
		readFile: os.ReadFile,
		readDir:  os.ReadDir,
		stat:     os.Stat,
	}
}

func (c *Client) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	c.logger.Debug("exec: %s %s", name, strings.Join(args, " "))
	output, err := c.runner.Run(ctx, name, args...)
	if err != nil {
		return output, fmt.Errorf("%s %s: %w (output: %s)",
			name, strings.Join(args, " "), err, tail(output, 400))
	}
	return output, nil
}

func tail(output []byte, n int) string {
	s := strings.TrimSpace(string(output))
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func (c *Client) ctl(kind types.EntityKind) string {
	if kind == types.KindVM {
		return "qm"
	}
	return "pct"
}

// ListContainers enumerates LXC containers via `pct list`.
func (c *Client) ListContainers(ctx context.Context) ([]Entity, error) {
	output, err := c.run(ctx, "pct", "list")
	if err != nil {
		return nil, err
	}
	return parseCTList(output), nil
}

// ListVMs enumerates QEMU virtual machines via `qm list`.
func (c *Client) ListVMs(ctx context.Context) ([]Entity, error) {
	output, err := c.run(ctx, "qm", "list")
	if err != nil {
		return nil, err
	}
	return parseVMList(output), nil
}

// Describe fills the entity's configuration-derived fields (name, primary
// storage token, configured size, unprivileged flag) from its config file.
func (c *Client) Describe(ctx context.Context, e *Entity) error {
	data, err := c.readFile(e.ConfigPath())
	if err != nil {
		return fmt.Errorf("read config for %s: %w", e.Label(), err)
	}
	cfg := parseEntityConfig(data, e.Kind)
	if e.Name == "" {
		e.Name = cfg.Name
	}
	e.Storage = cfg.Storage
	e.SizeBytes = cfg.SizeBytes
	e.Unprivileged = cfg.Unprivileged
	return nil
}

// Exists reports whether any container or VM currently uses the identifier.
// The check is live: both namespaces are re-enumerated on every call.
func (c *Client) Exists(ctx context.Context, id int) (bool, error) {
	containers, err := c.ListContainers(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range containers {
		if e.ID == id {
			return true, nil
		}
	}
	vms, err := c.ListVMs(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range vms {
		if e.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// Status queries the live lifecycle status of the entity.
func (c *Client) Status(ctx context.Context, e Entity) (types.EntityStatus, error) {
	output, err := c.run(ctx, c.ctl(e.Kind), "status", strconv.Itoa(e.ID))
	if err != nil {
		return types.StatusUnknown, err
	}
	return parseStatus(output), nil
}

// StatusByID queries the status of an arbitrary identifier of the given kind.
func (c *Client) StatusByID(ctx context.Context, id int, kind types.EntityKind) (types.EntityStatus, error) {
	return c.Status(ctx, Entity{ID: id, Kind: kind})
}

// Stop stops the entity and waits for the command to complete.
func (c *Client) Stop(ctx context.Context, e Entity) error {
	_, err := c.run(ctx, c.ctl(e.Kind), "stop", strconv.Itoa(e.ID))
	return err
}

// Start starts the entity with the given identifier.
func (c *Client) Start(ctx context.Context, id int, kind types.EntityKind) error {
	_, err := c.run(ctx, c.ctl(kind), "start", strconv.Itoa(id))
	return err
}

// Destroy removes the entity with the given identifier from the platform.
func (c *Client) Destroy(ctx context.Context, id int, kind types.EntityKind) error {
	_, err := c.run(ctx, c.ctl(kind), "destroy", strconv.Itoa(id))
	return err
}

// CreateArchive creates a compressed snapshot of the entity on the named
// storage via vzdump and returns the archive path reported by vzdump itself.
func (c *Client) CreateArchive(ctx context.Context, e Entity, storageName string) (string, error) {
	output, err := c.run(ctx, "vzdump", strconv.Itoa(e.ID),
		"--storage", storageName,
		"--mode", "stop",
		"--compress", "zstd")
	if err != nil {
		return "", err
	}
	path := parseVzdumpArchivePath(output)
	if path == "" {
		return "", fmt.Errorf("vzdump did not report an archive path (output: %s)", tail(output, 400))
	}
	return path, nil
}

// archiveExtensions are the suffixes vzdump archives can carry.
var archiveExtensions = []string{
	".tar.zst", ".tar.gz", ".tar.lzo", ".tgz", ".tar",
	".vma.zst", ".vma.gz", ".vma.lzo", ".vma",
}

// FindArchive returns the newest still-present archive for the entity on the
// given storage, or "" when none exists. A directory entry that vanishes
// between listing and stat is treated as absent, not as an error.
func (c *Client) FindArchive(e Entity, st Storage) (string, error) {
	dumpDir := st.DumpDir()
	if dumpDir == "" {
		return "", nil
	}
	entries, err := c.readDir(dumpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("list archives in %s: %w", dumpDir, err)
	}

	archiveKind := "lxc"
	if e.Kind == types.KindVM {
		archiveKind = "qemu"
	}
	prefix := fmt.Sprintf("vzdump-%s-%d-", archiveKind, e.ID)

	var newest string
	var newestMod int64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !hasArchiveExtension(name) {
			continue
		}
		path := filepath.Join(dumpDir, name)
		info, err := c.stat(path)
		if err != nil {
			continue // vanished or unreadable: treat as absent
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = path
			newestMod = mod
		}
	}
	return newest, nil
}

func hasArchiveExtension(name string) bool {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Restore restores an archive under a new identifier on the named storage.
// The unprivileged flag is propagated for containers only: omitting it for
// an originally unprivileged container would silently produce a privileged
// one.
func (c *Client) Restore(ctx context.Context, newID int, archive, storageName string, unprivileged bool, kind types.EntityKind) error {
	if kind == types.KindVM {
		_, err := c.run(ctx, "qmrestore", archive, strconv.Itoa(newID), "--storage", storageName)
		return err
	}
	args := []string{"restore", strconv.Itoa(newID), archive, "--storage", storageName}
	if unprivileged {
		args = append(args, "--unprivileged", "1")
	}
	_, err := c.run(ctx, "pct", args...)
	return err
}

// ListStorages merges the storage registrations from storage.cfg with the
// live view from `pvesm status` (active flag, available bytes).
func (c *Client) ListStorages(ctx context.Context) ([]Storage, error) {
	data, err := c.readFile(storageCfg)
	if err != nil {
		return nil, fmt.Errorf("read storage registrations: %w", err)
	}
	storages := parseStorageCfg(data)

	output, err := c.run(ctx, "pvesm", "status")
	if err != nil {
		return nil, err
	}
	live := parsePvesmStatus(output)

	for i := range storages {
		if row, ok := live[storages[i].Name]; ok {
			storages[i].Active = row.Active
			storages[i].AvailBytes = row.AvailBytes
		}
	}
	return storages, nil
}

// AddDirStorage registers a directory-class storage with backup content
// capability at the given path.
func (c *Client) AddDirStorage(ctx context.Context, name, path string) error {
	_, err := c.run(ctx, "pvesm", "add", "dir", name,
		"--path", path,
		"--content", "backup")
	return err
}

// CreateZFSDataset creates a dataset (with parents) and returns its
// mountpoint.
func (c *Client) CreateZFSDataset(ctx context.Context, dataset string) (string, error) {
	if _, err := c.run(ctx, "zfs", "create", "-p", dataset); err != nil {
		return "", err
	}
	output, err := c.run(ctx, "zfs", "get", "-Hpo", "value", "mountpoint", dataset)
	if err != nil {
		return "", err
	}
	mountpoint := strings.TrimSpace(string(output))
	if mountpoint == "" || mountpoint == "none" || mountpoint == "legacy" {
		return "", fmt.Errorf("dataset %s has no usable mountpoint (%q)", dataset, mountpoint)
	}
	return mountpoint, nil
}

// ZFSGet reads a numeric ZFS property (-Hpo value gives machine-readable
// bytes). "none" maps to 0.
func (c *Client) ZFSGet(ctx context.Context, dataset, property string) (int64, error) {
	output, err := c.run(ctx, "zfs", "get", "-Hpo", "value", property, dataset)
	if err != nil {
		return 0, err
	}
	return parseZFSValue(output)
}

// ZFSSetQuota raises (or sets) the quota of a dataset.
func (c *Client) ZFSSetQuota(ctx context.Context, dataset string, bytes int64) error {
	_, err := c.run(ctx, "zfs", "set", fmt.Sprintf("quota=%d", bytes), dataset)
	return err
}

// DiskUsage returns the live disk usage of the entity in bytes. Only
// containers expose usage via `pct df`; VMs return 0 so callers fall back to
// the configured size.
func (c *Client) DiskUsage(ctx context.Context, e Entity) (int64, error) {
	if e.Kind == types.KindVM {
		return 0, nil
	}
	output, err := c.run(ctx, "pct", "df", strconv.Itoa(e.ID))
	if err != nil {
		return 0, err
	}
	return parsePctDF(output)
}

// NFSMountPath resolves the live mount point of an NFS storage from the
// mount table, falling back to the registered path and finally the
// conventional /mnt/pve location.
func (c *Client) NFSMountPath(st Storage) string {
	if data, err := c.readFile(procMounts); err == nil {
		if mount := parseProcMounts(data, st.Server, st.Export); mount != "" {
			return mount
		}
	}
	if st.Path != "" {
		return st.Path
	}
	return filepath.Join("/mnt/pve", st.Name)
}
