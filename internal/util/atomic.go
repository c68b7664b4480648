// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AtomicWriteFile writes data to path through a synced temp file in the
// same directory followed by a rename, so readers see either the old file
// or the complete new one. Missing parent directories are created 0755.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return AtomicWriteFileWithDir(path, data, perm, 0755)
}

// AtomicWriteFileWithDir is AtomicWriteFile with an explicit permission for
// created parent directories.
func AtomicWriteFileWithDir(path string, data []byte, filePerm, dirPerm os.FileMode) (err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve path")
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errors.Wrap(err, "create parent directory")
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tempPath := f.Name()

	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return errors.Wrap(err, "write data")
	}
	if err = f.Sync(); err != nil {
		return errors.Wrap(err, "sync data to disk")
	}
	// Close before rename; Windows refuses to rename open files.
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err = os.Chmod(tempPath, filePerm); err != nil {
		return errors.Wrap(err, "set file permissions")
	}
	if err = os.Rename(tempPath, absPath); err != nil {
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}
