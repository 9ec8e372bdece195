// Package fsutil provides small filesystem helpers over afero.Fs.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

// EnsureDir creates a directory and all necessary parent directories with default permissions if they don't exist.
// Returns an error if the directory cannot be created or if the path exists but is not a directory.
func EnsureDir(fsys afero.Fs, path string) error {
	if err := fsys.MkdirAll(path, DirModeDefault); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(fsys afero.Fs, path string) (bool, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// FileSize returns the size of the regular file at path. The boolean is false
// when nothing exists at path. A directory at path is an error.
func FileSize(fsys afero.Fs, path string) (int64, bool, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if info.IsDir() {
		return 0, true, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), true, nil
}
