package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SchemaVersion identifies the layout of every store kept in the cache folder.
// Bump it whenever an indexer changes what it persists.
const SchemaVersion = "phptype-index/1"

const schemaFileName = "schema"

// PrepareCache makes sure cacheDir holds stores of the current schema. A missing,
// unreadable or outdated marker wipes the folder. It reports whether the stores have
// to be rebuilt from scratch.
func PrepareCache(cacheDir string) (bool, error) {
	marker := filepath.Join(cacheDir, schemaFileName)

	data, err := os.ReadFile(marker)
	switch {
	case err == nil && strings.TrimSpace(string(data)) == SchemaVersion:
		return false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("failed to read cache schema: %w", err)
	}

	if err := wipeDir(cacheDir); err != nil {
		return false, fmt.Errorf("failed to clear cache: %w", err)
	}
	if err := os.WriteFile(marker, []byte(SchemaVersion), 0o644); err != nil {
		return false, fmt.Errorf("failed to write cache schema: %w", err)
	}
	return true, nil
}

func wipeDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
