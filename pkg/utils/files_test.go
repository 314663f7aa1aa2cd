package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileAndDirExists(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Errorf("FileExists(%q) = false", file)
	}
	if FileExists(tmpDir) {
		t.Errorf("FileExists on a directory should be false")
	}
	if !DirExists(tmpDir) {
		t.Errorf("DirExists(%q) = false", tmpDir)
	}
	if DirExists(file) {
		t.Errorf("DirExists on a file should be false")
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b")
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if !DirExists(nested) {
		t.Errorf("directory not created")
	}
	// Second call is a no-op.
	if err := EnsureDir(nested); err != nil {
		t.Errorf("EnsureDir on existing dir: %v", err)
	}
}

func TestComputeChecksum(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "archive.tar.zst")
	if err := os.WriteFile(file, []byte("archive content"), 0o640); err != nil {
		t.Fatal(err)
	}

	sum1, err := ComputeChecksum(file)
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	if len(sum1) != 64 {
		t.Errorf("checksum length = %d; want 64 hex chars", len(sum1))
	}

	sum2, err := ComputeChecksum(file)
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	if sum1 != sum2 {
		t.Errorf("checksum not deterministic: %q vs %q", sum1, sum2)
	}

	if _, err := ComputeChecksum(filepath.Join(tmpDir, "missing")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestGetFileSize(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "f")
	if err := os.WriteFile(file, make([]byte, 1234), 0o640); err != nil {
		t.Fatal(err)
	}
	size, err := GetFileSize(file)
	if err != nil {
		t.Fatalf("GetFileSize: %v", err)
	}
	if size != 1234 {
		t.Errorf("size = %d; want 1234", size)
	}
}
