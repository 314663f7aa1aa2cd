package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tis24dev/ctshift/internal/logging"
)

func TestParseDefaults(t *testing.T) {
	opts, err := Parse(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.CurrentID != "" || opts.NewID != "" {
		t.Errorf("positionals should default empty: %+v", opts)
	}
	if opts.Verbose || opts.ForceText || opts.ShowVersion {
		t.Errorf("flags should default false: %+v", opts)
	}
	if opts.LogFile != logging.DefaultLogPath {
		t.Errorf("LogFile = %q", opts.LogFile)
	}
}

func TestParsePositionals(t *testing.T) {
	opts, err := Parse([]string{"105", "205"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.CurrentID != "105" || opts.NewID != "205" {
		t.Errorf("positionals = %q %q", opts.CurrentID, opts.NewID)
	}
}

func TestParseSinglePositional(t *testing.T) {
	opts, err := Parse([]string{"105"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.CurrentID != "105" || opts.NewID != "" {
		t.Errorf("positionals = %q %q", opts.CurrentID, opts.NewID)
	}
}

func TestParseFlags(t *testing.T) {
	opts, err := Parse([]string{"-v", "--cli", "--log-file", "/tmp/run.log", "105", "205"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !opts.Verbose || !opts.ForceText {
		t.Errorf("flags not parsed: %+v", opts)
	}
	if opts.LogFile != "/tmp/run.log" {
		t.Errorf("LogFile = %q", opts.LogFile)
	}
	if opts.CurrentID != "105" || opts.NewID != "205" {
		t.Errorf("positionals = %q %q", opts.CurrentID, opts.NewID)
	}
}

func TestParseVersionFlag(t *testing.T) {
	opts, err := Parse([]string{"--version"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !opts.ShowVersion {
		t.Errorf("ShowVersion not set")
	}
}

func TestParseTooManyArguments(t *testing.T) {
	out := &bytes.Buffer{}
	if _, err := Parse([]string{"1", "2", "3"}, out); err == nil {
		t.Fatalf("expected error for extra arguments")
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("usage not printed:\n%s", out.String())
	}
}

func TestParseUnknownFlag(t *testing.T) {
	if _, err := Parse([]string{"--bogus"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}
