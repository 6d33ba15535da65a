package fsops

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// CheckWritable checks if a path is writable
func CheckWritable(afs afero.Fs, path string) error {
	testFile := path + "/.write_test"
	f, err := afs.Create(testFile)
	if err != nil {
		return fmt.Errorf("path not writable: %w", err)
	}
	f.Close()
	afs.Remove(testFile)
	return nil
}

// EnsureDir ensures a directory exists with the given permissions
func EnsureDir(afs afero.Fs, path string, perm os.FileMode) error {
	if err := afs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	return nil
}

// Exists checks if a path exists
func Exists(afs afero.Fs, path string) bool {
	_, err := afs.Stat(path)
	return err == nil
}

// IsDir checks if a path is a directory
func IsDir(afs afero.Fs, path string) bool {
	info, err := afs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CopyFile copies a file from src to dst
func CopyFile(afs afero.Fs, src, dst string) error {
	content, err := afero.ReadFile(afs, src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	if err := afero.WriteFile(afs, dst, content, 0644); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}

	return nil
}

// DirSize sums the sizes of the regular files under path. A missing path
// counts as zero.
func DirSize(afs afero.Fs, path string) (int64, int) {
	var totalSize int64
	var fileCount int

	info, err := afs.Stat(path)
	if err != nil {
		return 0, 0
	}
	if !info.IsDir() {
		return info.Size(), 1
	}

	afero.Walk(afs, path, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
			fileCount++
		}
		return nil
	})

	return totalSize, fileCount
}
