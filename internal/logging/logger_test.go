package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tis24dev/ctshift/internal/types"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelWarning, false)
	logger.SetOutput(&buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warning("warning message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Errorf("debug message should be filtered at warning level")
	}
	if strings.Contains(out, "info message") {
		t.Errorf("info message should be filtered at warning level")
	}
	if !strings.Contains(out, "warning message") {
		t.Errorf("warning message missing from output: %q", out)
	}
	if !strings.Contains(out, "error message") {
		t.Errorf("error message missing from output: %q", out)
	}
}

func TestLoggerTimestampedLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)

	logger.Info("hello")

	line := buf.String()
	if !strings.HasPrefix(line, "[") {
		t.Fatalf("expected timestamped line, got %q", line)
	}
	if !strings.Contains(line, "INFO") {
		t.Errorf("expected INFO level in line, got %q", line)
	}
}

func TestLoggerFileMirrorWithoutColors(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, true)
	logger.SetOutput(&buf)

	if err := logger.OpenLogFile(logPath); err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	logger.Info("mirrored line")
	if err := logger.CloseLogFile(); err != nil {
		t.Fatalf("CloseLogFile: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "mirrored line") {
		t.Errorf("log file missing message: %q", content)
	}
	if strings.Contains(content, "\033[") {
		t.Errorf("log file must not contain ANSI colors: %q", content)
	}
	if !strings.Contains(buf.String(), "\033[") {
		t.Errorf("console output should contain ANSI colors when enabled")
	}
}

func TestLoggerAppendsAcrossOpens(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "append.log")

	for i := 0; i < 2; i++ {
		logger := New(types.LogLevelInfo, false)
		logger.SetOutput(&bytes.Buffer{})
		if err := logger.OpenLogFile(logPath); err != nil {
			t.Fatalf("OpenLogFile: %v", err)
		}
		logger.Info("run %d", i)
		logger.CloseLogFile()
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "run 0") || !strings.Contains(string(data), "run 1") {
		t.Errorf("log file should retain both runs: %q", string(data))
	}
}

func TestStepAndSkipLabels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)

	logger.Step("stop container %d", 105)
	logger.Skip("container %d already stopped", 105)

	out := buf.String()
	if !strings.Contains(out, "STEP") {
		t.Errorf("expected STEP label: %q", out)
	}
	if !strings.Contains(out, "SKIP") {
		t.Errorf("expected SKIP label: %q", out)
	}
}

func TestWarningAndErrorCounters(t *testing.T) {
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&bytes.Buffer{})

	if logger.HasWarnings() || logger.HasErrors() {
		t.Fatalf("fresh logger should have no warnings or errors")
	}

	logger.Warning("w")
	if !logger.HasWarnings() {
		t.Errorf("expected HasWarnings after Warning")
	}
	logger.Error("e")
	if !logger.HasErrors() {
		t.Errorf("expected HasErrors after Error")
	}
}

func TestFatalUsesExitFunc(t *testing.T) {
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&bytes.Buffer{})

	exitCode := -1
	logger.SetExitFunc(func(code int) { exitCode = code })
	logger.Fatal(types.ExitOperationalError, "boom")

	if exitCode != types.ExitOperationalError.Int() {
		t.Errorf("exit code = %d; want %d", exitCode, types.ExitOperationalError.Int())
	}
}

func TestStartFileLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "nested", "ctshift.log")

	logger, cleanup, err := StartFileLogger(logPath, types.LogLevelInfo, false)
	if err != nil {
		t.Fatalf("StartFileLogger: %v", err)
	}
	defer cleanup()

	logger.SetOutput(&bytes.Buffer{})
	logger.Info("session started")

	if got := logger.GetLogFilePath(); got != logPath {
		t.Errorf("GetLogFilePath() = %q; want %q", got, logPath)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "session started") {
		t.Errorf("log file missing session line: %q", string(data))
	}
}
