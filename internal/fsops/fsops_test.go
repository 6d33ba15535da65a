package fsops

import (
	"testing"

	"github.com/spf13/afero"
)

func TestEnsureDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	path := "/test/nested/dir"
	if err := EnsureDir(fs, path, 0755); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	if !IsDir(fs, path) {
		t.Error("expected directory to exist and be a directory")
	}
}

func TestCheckWritable(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/writable", 0755)

	if err := CheckWritable(fs, "/writable"); err != nil {
		t.Errorf("CheckWritable() error = %v", err)
	}

	if err := CheckWritable(afero.NewReadOnlyFs(fs), "/writable"); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}

func TestExists(t *testing.T) {
	fs := afero.NewMemMapFs()

	// Create a test file
	afero.WriteFile(fs, "/test.txt", []byte("test"), 0644)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing file", "/test.txt", true},
		{"non-existing file", "/nonexistent.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exists(fs, tt.path)
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestCopyFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	// Create source file
	srcContent := []byte("test content")
	afero.WriteFile(fs, "/src.txt", srcContent, 0644)

	// Copy file
	if err := CopyFile(fs, "/src.txt", "/dst.txt"); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	// Verify destination
	dstContent, err := afero.ReadFile(fs, "/dst.txt")
	if err != nil {
		t.Fatalf("failed to read destination: %v", err)
	}

	if string(dstContent) != string(srcContent) {
		t.Errorf("copied content = %q, want %q", dstContent, srcContent)
	}
}

func TestDirSize(t *testing.T) {
	fs := afero.NewMemMapFs()

	afero.WriteFile(fs, "/pkg/usr/bin/tool", make([]byte, 100), 0755)
	afero.WriteFile(fs, "/pkg/etc/tool.conf", make([]byte, 50), 0644)

	size, count := DirSize(fs, "/pkg")
	if size != 150 {
		t.Errorf("DirSize() size = %d, want 150", size)
	}
	if count != 2 {
		t.Errorf("DirSize() count = %d, want 2", count)
	}

	size, count = DirSize(fs, "/missing")
	if size != 0 || count != 0 {
		t.Errorf("DirSize() on missing path = (%d, %d), want (0, 0)", size, count)
	}
}
