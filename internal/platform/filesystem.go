package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirectoryPermissions is applied to directories created for a run.
const DirectoryPermissions os.FileMode = 0o750

// LocalFileSystem operates on the local disk.
type LocalFileSystem struct{}

// CreateDirectory creates path and any missing parents.
func (*LocalFileSystem) CreateDirectory(path string) error {
	if err := os.MkdirAll(filepath.Clean(path), DirectoryPermissions); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	return nil
}

// CreateTempDirectory creates a new uniquely named directory inside parent.
// The pattern follows os.MkdirTemp.
func (*LocalFileSystem) CreateTempDirectory(parent, pattern string) (string, error) {
	path, err := os.MkdirTemp(filepath.Clean(parent), pattern)
	if err != nil {
		return "", fmt.Errorf("create temporary directory: %w", err)
	}

	return path, nil
}

// DeleteFile removes a single file, a missing file is not an error.
func (*LocalFileSystem) DeleteFile(path string) error {
	err := os.Remove(filepath.Clean(path))
	if err == nil || os.IsNotExist(err) {
		return nil
	}

	return fmt.Errorf("delete file: %w", err)
}

// DeleteDirectory removes path with its contents, a missing directory is not an error.
func (*LocalFileSystem) DeleteDirectory(path string) error {
	if err := os.RemoveAll(filepath.Clean(path)); err != nil {
		return fmt.Errorf("delete directory: %w", err)
	}

	return nil
}
