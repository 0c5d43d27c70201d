// Package atomicfile replaces files without ever exposing a partial write.
//
// Record files and checkpoint slots are both written through this package:
// a run that is killed mid-write leaves either the old content or the new
// content on disk, never a torn mix that a resumed run could mistake for a
// valid file.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to path by writing a temporary file in the same
// directory, syncing it, and renaming it over path.
//
// If perm is 0 the mode of an existing file is preserved, falling back to 0644.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if perm == 0 {
		perm = existingMode(path)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	// Some filesystems refuse chmod; the default mode is acceptable there.
	_ = tmp.Chmod(perm)

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// On Windows, renaming over an existing file fails. Remove first (not atomic).
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename temp file: %w", err)
		}
	}

	committed = true
	return nil
}

// WriteString is WriteFile for text content.
func WriteString(path, content string, perm os.FileMode) error {
	return WriteFile(path, []byte(content), perm)
}

// IsTemp reports whether name looks like a temporary file left behind by an
// interrupted WriteFile. Directory scans skip these.
func IsTemp(name string) bool {
	if len(name) < 2 || name[0] != '.' {
		return false
	}
	matched, _ := filepath.Match(".*.tmp-*", name)
	return matched
}

func existingMode(path string) os.FileMode {
	if st, err := os.Stat(path); err == nil {
		return st.Mode().Perm()
	}
	return 0o644
}
