package types

// EntityKind represents the kind of a managed Proxmox entity.
type EntityKind string

const (
	// KindContainer - LXC container managed via pct.
	KindContainer EntityKind = "container"

	// KindVM - QEMU virtual machine managed via qm.
	KindVM EntityKind = "vm"
)

// String returns the string representation of the entity kind.
func (k EntityKind) String() string {
	return string(k)
}

// EntityStatus represents the lifecycle status of an entity.
type EntityStatus string

const (
	// StatusRunning - Entity is running.
	StatusRunning EntityStatus = "running"

	// StatusStopped - Entity is stopped.
	StatusStopped EntityStatus = "stopped"

	// StatusUnknown - Status could not be determined.
	StatusUnknown EntityStatus = "unknown"
)

// String returns the string representation of the status.
func (s EntityStatus) String() string {
	return string(s)
}

// StorageClass represents the class of a registered storage backend.
type StorageClass string

const (
	// StorageDir - Plain directory storage.
	StorageDir StorageClass = "dir"

	// StorageZFS - ZFS pool/dataset storage.
	StorageZFS StorageClass = "zfspool"

	// StorageNFS - NFS-mounted storage.
	StorageNFS StorageClass = "nfs"

	// StorageUnknown - Any other storage type.
	StorageUnknown StorageClass = "unknown"
)

// String returns the string representation of the storage class.
func (s StorageClass) String() string {
	return string(s)
}

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug - Debug logs (maximum detail)
	LogLevelDebug LogLevel = 5

	// LogLevelInfo - General information
	LogLevelInfo LogLevel = 4

	// LogLevelWarning - Warnings
	LogLevelWarning LogLevel = 3

	// LogLevelError - Errors
	LogLevelError LogLevel = 2

	// LogLevelCritical - Critical errors
	LogLevelCritical LogLevel = 1

	// LogLevelNone - No logs
	LogLevelNone LogLevel = 0
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	case LogLevelCritical:
		return "CRITICAL"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}
