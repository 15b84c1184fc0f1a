package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareCache(t *testing.T) {
	testCases := []struct {
		name    string
		marker  string
		rebuilt bool
	}{
		{name: "fresh folder", rebuilt: true},
		{name: "current schema", marker: SchemaVersion, rebuilt: false},
		{name: "current schema with newline", marker: SchemaVersion + "\n", rebuilt: false},
		{name: "outdated schema", marker: "phptype-index/0", rebuilt: true},
		{name: "garbage", marker: "???", rebuilt: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if tc.marker != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, schemaFileName), []byte(tc.marker), 0o644))
			}
			store := filepath.Join(dir, "php_classes.db")
			require.NoError(t, os.WriteFile(store, []byte("data"), 0o644))

			rebuilt, err := PrepareCache(dir)
			require.NoError(t, err)
			assert.Equal(t, tc.rebuilt, rebuilt)

			_, err = os.Stat(store)
			if tc.rebuilt {
				assert.True(t, os.IsNotExist(err))
			} else {
				assert.NoError(t, err)
			}

			marker, err := os.ReadFile(filepath.Join(dir, schemaFileName))
			require.NoError(t, err)
			assert.Contains(t, string(marker), SchemaVersion)
		})
	}
}

func TestPrepareCacheCreatesMissingFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	rebuilt, err := PrepareCache(dir)
	require.NoError(t, err)
	assert.True(t, rebuilt)

	rebuilt, err = PrepareCache(dir)
	require.NoError(t, err)
	assert.False(t, rebuilt)
}
