package registry

import (
	"fmt"
	"os"
	"path/filepath"
)

// atomicWriteFile implements the temp-file-plus-rename pattern used for
// every durable document this package owns: write to a sibling temp file,
// fsync it, then rename over the live path. The previous live file (if any)
// is preserved as a single ".bak" backup before being replaced.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("registry: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("registry: closing temp file: %w", err)
	}

	backup := path + ".bak"
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(backup)
		if err := os.Rename(path, backup); err != nil {
			log.Warnf("registry: could not rotate backup for %s: %v", path, err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("registry: renaming temp file into place: %w", err)
	}
	return nil
}

// readWithBackupFallback reads path; on any read or parse failure (reported
// via the parse callback) it falls back to path+".bak" once. If both are
// unreadable it returns the last error so the caller can log a critical
// error and start from an empty state rather than crash.
func readWithBackupFallback(path string, parse func([]byte) error) error {
	raw, err := os.ReadFile(path)
	if err == nil {
		if perr := parse(raw); perr == nil {
			return nil
		} else {
			log.Errorf("registry: %s is corrupt, falling back to backup: %v", path, perr)
			err = perr
		}
	}

	backupRaw, berr := os.ReadFile(path + ".bak")
	if berr != nil {
		return fmt.Errorf("primary unreadable (%v) and backup unreadable (%v)", err, berr)
	}
	if perr := parse(backupRaw); perr != nil {
		return fmt.Errorf("primary unreadable (%v) and backup corrupt (%v)", err, perr)
	}
	log.Warnf("registry: recovered %s from backup after primary was unreadable", path)
	return nil
}
