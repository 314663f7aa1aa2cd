// Package pve is the single adapter between the migration workflow and the
// Proxmox VE command-line surface (pct, qm, vzdump, qmrestore, pvesm, zfs).
//
// Every piece of free-text output parsing lives in this package so the
// fragility of text-based protocols stays isolated and swappable.
package pve

import (
	"context"
	"os/exec"
)

// CommandRunner executes platform commands and returns their combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type osCommandRunner struct{}

func (osCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// lookPath is an indirection over exec.LookPath for tool-availability checks.
var lookPath = exec.LookPath

// RequiredTools are the platform binaries the migration depends on.
var RequiredTools = []string{"pct", "qm", "vzdump", "pvesm"}

// CheckTools verifies that every required platform binary is resolvable.
// A missing tool is a validation problem, not an operational one: the host
// is simply not a PVE node (or PATH is broken) and retrying cannot help.
func CheckTools() error {
	for _, tool := range RequiredTools {
		if _, err := lookPath(tool); err != nil {
			return &MissingToolError{Tool: tool}
		}
	}
	return nil
}

// MissingToolError reports an unresolvable platform binary.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return "required platform tool not found in PATH: " + e.Tool
}
