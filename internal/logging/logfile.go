package logging

import (
	"fmt"
	"path/filepath"

	"github.com/tis24dev/ctshift/internal/types"
	"github.com/tis24dev/ctshift/pkg/utils"
)

// DefaultLogPath is the fixed location of the persistent migration log.
// The file is append-only across runs: each invocation adds to the same
// history so post-mortem diagnosis can reconstruct earlier migrations.
const DefaultLogPath = "/var/log/ctshift.log"

// StartFileLogger builds the application logger and attaches the persistent
// log file at logPath (DefaultLogPath when empty). The caller receives the
// configured logger and a cleanup function to invoke when the run completes.
func StartFileLogger(logPath string, level types.LogLevel, useColor bool) (*Logger, func(), error) {
	if logPath == "" {
		logPath = DefaultLogPath
	}

	if err := utils.EnsureDir(filepath.Dir(logPath)); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	appending := utils.FileExists(logPath)

	logger := New(level, useColor)
	if err := logger.OpenLogFile(logPath); err != nil {
		return nil, nil, err
	}
	if appending {
		logger.Debug("Appending to existing log %s", logPath)
	}

	cleanup := func() {
		_ = logger.CloseLogFile()
	}

	return logger, cleanup, nil
}
