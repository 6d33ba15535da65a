package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateExtractPath guards against archive entries escaping the target
// directory (Zip Slip). extractedPath is the entry's relative name as it
// appears in the archive.
func ValidateExtractPath(targetDir, extractedPath string) error {
	cleanPath := filepath.Clean(extractedPath)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains ..: %s", extractedPath)
	}

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("absolute path not allowed: %s", extractedPath)
	}

	// Resolve both sides and verify containment.
	destPath := filepath.Join(targetDir, cleanPath)

	cleanDest, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("failed to resolve target directory: %w", err)
	}

	cleanTarget, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("failed to resolve destination path: %w", err)
	}

	if !strings.HasPrefix(cleanTarget, cleanDest+string(filepath.Separator)) &&
		cleanTarget != cleanDest {
		return fmt.Errorf("path escapes destination directory: %s", extractedPath)
	}

	return nil
}

// ValidateSymlink ensures a symlink written at linkPath cannot point outside
// the target directory.
func ValidateSymlink(targetDir, linkPath, linkTarget string) error {
	// Resolve the target relative to where the link lives.
	linkDir := filepath.Dir(linkPath)
	resolvedTarget := filepath.Join(linkDir, linkTarget)

	cleanTarget, err := filepath.Abs(resolvedTarget)
	if err != nil {
		return fmt.Errorf("failed to resolve symlink target: %w", err)
	}

	cleanDest, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("failed to resolve target directory: %w", err)
	}

	if !strings.HasPrefix(cleanTarget, cleanDest+string(filepath.Separator)) &&
		cleanTarget != cleanDest {
		return fmt.Errorf("symlink target escapes destination: %s -> %s", linkPath, linkTarget)
	}

	return nil
}

// ValidatePath performs general path validation
func ValidatePath(path string) error {
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("path contains null bytes: %s", path)
	}

	if len(path) > 4096 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}

	return nil
}
