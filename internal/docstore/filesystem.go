package docstore

import (
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to a temporary file in path's directory and
// renames it over path. A concurrent open of path therefore never observes
// a partially written blob, even if the writer crashes mid-write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	// CreateTemp uses 0600; stored blobs should be world-readable like any
	// other file the service writes.
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	// The temp file lives in the destination directory, so the rename never
	// crosses filesystems.
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return nil
}
