package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// entryLock guards the entry file at path across processes working on
// the same project.
func entryLock(path string) *flock.Flock { return flock.New(path + ".lock") }

// withLock runs fn while holding the exclusive lock for path.
func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	lock := entryLock(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()
	return fn()
}

// writeEntry stages data next to path and renames it over the old entry.
// A reader sees either the previous entry or the new one in full.
func writeEntry(path string, data []byte) (err error) {
	staged, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to stage cache entry: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(staged.Name())
		}
	}()

	_, err = staged.Write(data)
	if err == nil {
		err = staged.Sync()
	}
	if cerr := staged.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to stage cache entry: %w", err)
	}
	if err = os.Rename(staged.Name(), path); err != nil {
		return fmt.Errorf("failed to replace cache entry %s: %w", path, err)
	}
	return nil
}
