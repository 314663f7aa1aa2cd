package pve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tis24dev/ctshift/internal/types"
	"github.com/tis24dev/ctshift/pkg/utils"
)

// parseCTList parses `pct list` output.
//
//	VMID       Status     Lock         Name
//	105        running                 web01
func parseCTList(output []byte) []Entity {
	var entities []Entity
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id <= 0 {
			continue // header or malformed line
		}
		e := Entity{
			ID:     id,
			Kind:   types.KindContainer,
			Status: normalizeStatus(fields[1]),
		}
		// The Lock column is blank for unlocked containers, so the name is
		// the last field when more than two columns are present.
		if len(fields) >= 3 {
			e.Name = fields[len(fields)-1]
		}
		entities = append(entities, e)
	}
	return entities
}

// parseVMList parses `qm list` output.
//
//	VMID NAME                 STATUS     MEM(MB)    BOOTDISK(GB) PID
//	 100 vm01                 running    2048              32.00 1234
func parseVMList(output []byte) []Entity {
	var entities []Entity
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id <= 0 {
			continue
		}
		entities = append(entities, Entity{
			ID:     id,
			Kind:   types.KindVM,
			Name:   fields[1],
			Status: normalizeStatus(fields[2]),
		})
	}
	return entities
}

// parseStatus parses `pct status <id>` / `qm status <id>` output:
//
//	status: running
func parseStatus(output []byte) types.EntityStatus {
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if value, ok := strings.CutPrefix(line, "status:"); ok {
			return normalizeStatus(strings.TrimSpace(value))
		}
	}
	return types.StatusUnknown
}

func normalizeStatus(s string) types.EntityStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running":
		return types.StatusRunning
	case "stopped":
		return types.StatusStopped
	default:
		return types.StatusUnknown
	}
}

// vmDiskBuses are the bus prefixes recognized as primary disk candidates in
// a VM configuration, in preference order.
var vmDiskBuses = []string{"scsi", "virtio", "sata", "ide"}

// EntityConfig holds the configuration fields the migration needs.
type EntityConfig struct {
	Name         string
	Storage      string // storage name token of the primary disk
	SizeBytes    int64  // configured disk size, 0 when absent
	Unprivileged bool
}

// parseEntityConfig extracts the relevant fields from an entity's config
// file (/etc/pve/lxc/<id>.conf or /etc/pve/qemu-server/<id>.conf).
func parseEntityConfig(data []byte, kind types.EntityKind) EntityConfig {
	var cfg EntityConfig
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Snapshot sections repeat config keys; stop at the first one.
		if strings.HasPrefix(line, "[") {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case key == "hostname" || key == "name":
			if cfg.Name == "" {
				cfg.Name = utils.TrimQuotes(value)
			}
		case key == "unprivileged":
			cfg.Unprivileged = value == "1"
		case kind == types.KindContainer && key == "rootfs":
			cfg.Storage, cfg.SizeBytes = parseDiskValue(value)
		case kind == types.KindVM && cfg.Storage == "" && isVMDiskKey(key) && !isCDROMValue(value):
			cfg.Storage, cfg.SizeBytes = parseDiskValue(value)
		}
	}
	return cfg
}

func isVMDiskKey(key string) bool {
	for _, bus := range vmDiskBuses {
		rest, ok := strings.CutPrefix(key, bus)
		if !ok || rest == "" {
			continue
		}
		if _, err := strconv.Atoi(rest); err == nil {
			return true
		}
	}
	return false
}

// isCDROMValue reports whether a bus-prefixed VM config line describes a
// CD-ROM drive (or an empty one) rather than a disk. Those lines share the
// disk syntax ("ide2: none,media=cdrom", "ide2: local:iso/x.iso,media=cdrom")
// but carry no storage the migration should resolve.
func isCDROMValue(value string) bool {
	volume, opts, _ := strings.Cut(value, ",")
	if strings.TrimSpace(volume) == "none" {
		return true
	}
	for _, opt := range strings.Split(opts, ",") {
		if strings.TrimSpace(opt) == "media=cdrom" {
			return true
		}
	}
	return false
}

// parseDiskValue splits a disk line value such as
//
//	local-zfs:subvol-105-disk-0,size=8G
//
// into the storage name token and the parsed size (0 when absent).
func parseDiskValue(value string) (storage string, sizeBytes int64) {
	volume, opts, _ := strings.Cut(value, ",")
	storage, _, ok := strings.Cut(volume, ":")
	if !ok {
		storage = strings.TrimSpace(volume)
	}
	storage = strings.TrimSpace(storage)

	for _, opt := range strings.Split(opts, ",") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(opt), "size="); ok {
			if parsed, err := ParseSize(v); err == nil {
				sizeBytes = parsed
			}
		}
	}
	return storage, sizeBytes
}

// ParseSize parses a size string with an optional K/M/G/T unit suffix
// (binary units, as used by Proxmox config files and pct df output).
// A bare number is taken as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multiplier := int64(1)
	switch suffix := s[len(s)-1]; suffix {
	case 'K', 'k':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'G', 'g':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	case 'T', 't':
		multiplier = 1 << 40
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return int64(value * float64(multiplier)), nil
}

// vzdumpArchiveRe extracts the produced archive path from vzdump output.
// The tool's own reported path is authoritative; the filename convention is
// never assumed.
var vzdumpArchiveRe = regexp.MustCompile(`creating vzdump archive '([^']+)'`)

// parseVzdumpArchivePath returns the archive path reported by vzdump, or ""
// when the output contains none.
func parseVzdumpArchivePath(output []byte) string {
	match := vzdumpArchiveRe.FindSubmatch(output)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// parseStorageCfg parses /etc/pve/storage.cfg-style registrations:
//
//	dir: local
//	        path /var/lib/vz
//	        content iso,vztmpl,backup
//
//	zfspool: local-zfs
//	        pool rpool/data
//	        content rootdir,images
func parseStorageCfg(data []byte) []Storage {
	var storages []Storage
	var current *Storage

	flush := func() {
		if current != nil {
			storages = append(storages, *current)
			current = nil
		}
	}

	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indented := line != trimmed
		if !indented {
			// Section header: "<type>: <name>"
			flush()
			classToken, name, ok := strings.Cut(trimmed, ":")
			if !ok {
				continue
			}
			current = &Storage{
				Name:  strings.TrimSpace(name),
				Class: normalizeStorageClass(strings.TrimSpace(classToken)),
			}
			continue
		}

		if current == nil {
			continue
		}
		key, value, ok := strings.Cut(trimmed, " ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "path":
			current.Path = value
		case "pool":
			current.Pool = value
		case "server":
			current.Server = value
		case "export":
			current.Export = value
		case "content":
			for _, c := range strings.Split(value, ",") {
				if strings.TrimSpace(c) == "backup" {
					current.Backup = true
				}
			}
		case "disable":
			if value == "1" {
				current.Disabled = true
			}
		}
	}
	flush()
	return storages
}

func normalizeStorageClass(s string) types.StorageClass {
	switch s {
	case "dir":
		return types.StorageDir
	case "zfspool":
		return types.StorageZFS
	case "nfs":
		return types.StorageNFS
	default:
		return types.StorageUnknown
	}
}

// pvesmStatusRow is the live view of a storage from `pvesm status`.
type pvesmStatusRow struct {
	Active     bool
	AvailBytes int64
}

// parsePvesmStatus parses `pvesm status` output. Sizes are reported in KiB:
//
//	Name             Type     Status           Total            Used       Available        %
//	local             dir     active        98497656        8511688        84935920    8.64%
func parsePvesmStatus(output []byte) map[string]pvesmStatusRow {
	rows := make(map[string]pvesmStatusRow)
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || fields[0] == "Name" {
			continue
		}
		availKiB, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil {
			continue
		}
		rows[fields[0]] = pvesmStatusRow{
			Active:     fields[2] == "active",
			AvailBytes: availKiB << 10,
		}
	}
	return rows
}

// parseProcMounts scans /proc/mounts content for the mount point of the
// given NFS export. Registry metadata may omit the mount path, so the live
// mount table is the source of truth.
func parseProcMounts(data []byte, server, export string) string {
	want := server + ":" + export
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if !strings.HasPrefix(fields[2], "nfs") {
			continue
		}
		if fields[0] == want || fields[0] == strings.TrimSuffix(want, "/") {
			return fields[1]
		}
	}
	return ""
}

// parsePctDF extracts the used bytes of the rootfs mount point from
// `pct df <id>` output:
//
//	MP         Volume                         Size Used Avail Use%
//	rootfs     local-zfs:subvol-105-disk-0    8.0G 2.1G  5.9G  26%
func parsePctDF(output []byte) (int64, error) {
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "rootfs" {
			continue
		}
		return ParseSize(fields[3])
	}
	return 0, fmt.Errorf("rootfs row not found in pct df output")
}

// parseZFSValue parses the value column of `zfs get -Hpo value <prop>`.
// "none" and "-" map to 0 (no quota / not applicable).
func parseZFSValue(output []byte) (int64, error) {
	value := strings.TrimSpace(string(output))
	if value == "" || value == "none" || value == "-" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid zfs property value %q: %w", value, err)
	}
	return parsed, nil
}
