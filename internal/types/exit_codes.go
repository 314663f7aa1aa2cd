// Package types defines shared application data types.
package types

// ExitCode represents the application's exit codes.
//
// The split between validation and operational failures matters to calling
// automation: operational failures may be retried, validation failures
// require operator input.
type ExitCode int

const (
	// ExitSuccess - Migration completed successfully.
	ExitSuccess ExitCode = 0

	// ExitValidationError - Bad input, cancelled selection, unknown entity,
	// already-taken new identifier, or missing required external tools.
	ExitValidationError ExitCode = 1

	// ExitOperationalError - Storage, capacity, backup/restore or start
	// failure. Also used for the post-success destroy warning.
	ExitOperationalError ExitCode = 2
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitValidationError:
		return "validation error"
	case ExitOperationalError:
		return "operational error"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as an integer.
func (e ExitCode) Int() int {
	return int(e)
}
