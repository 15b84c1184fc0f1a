package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

func newTestScanner(t *testing.T, root string) (*FileScanner, *mockIndexer) {
	t.Helper()
	fs, err := NewFileScanner(root, filepath.Join(t.TempDir(), "files.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	mock := &mockIndexer{indexedFiles: make(map[string]bool), rootKinds: make(map[string]string)}
	fs.AddIndexer(mock)
	return fs, mock
}

func TestFileScanner_IndexFiles_SkipDirs(t *testing.T) {
	tempDir := t.TempDir()
	createTestFiles(t, tempDir)

	fs, mockIndexer := newTestScanner(t, tempDir)

	var files []string
	err := filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".php" {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, fs.IndexFiles(context.Background(), files))

	for path := range mockIndexer.indexedFiles {
		relPath, err := filepath.Rel(tempDir, path)
		require.NoError(t, err)

		for _, part := range strings.Split(relPath, string(os.PathSeparator)) {
			assert.False(t, defaultSkipDirs[part], "File in excluded directory was indexed: %s", path)
		}
	}

	regularFile := filepath.Join(tempDir, "regular", "file.php")
	assert.True(t, mockIndexer.indexed(regularFile), "Regular file was not indexed")
	assert.Equal(t, "program", mockIndexer.rootKinds[regularFile])

	excludedFiles := []string{
		filepath.Join(tempDir, "node_modules", "file.php"),
		filepath.Join(tempDir, "vendor-bin", "file.php"),
		filepath.Join(tempDir, "tests", "file.php"),
		filepath.Join(tempDir, "nested", "node_modules", "file.php"),
	}

	for _, file := range excludedFiles {
		assert.False(t, mockIndexer.indexed(file), "Excluded file was indexed: %s", file)
	}
}

func TestFileScanner_IndexAll_SkipsUnchangedFiles(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "src", "Product.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("<?php\nclass Product {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "src", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "src", "tool.phar.php"), []byte("<?php"), 0o644))

	fs, mock := newTestScanner(t, tempDir)

	files, err := fs.CollectFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)

	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 1, mock.calls(path))
	assert.True(t, fs.KnownFile(path, []byte("<?php\nclass Product {}\n")))

	// unchanged size and mtime
	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 1, mock.calls(path))

	// new mtime, same content
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 1, mock.calls(path))

	// new content
	require.NoError(t, os.WriteFile(path, []byte("<?php\nclass Product { public int $id; }\n"), 0o644))
	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 2, mock.calls(path))
	assert.False(t, fs.KnownFile(path, []byte("<?php\nclass Product {}\n")))
}

func TestFileScanner_RemoveFilesAndClear(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "A.php")
	require.NoError(t, os.WriteFile(path, []byte("<?php\nclass A {}\n"), 0o644))

	fs, mock := newTestScanner(t, tempDir)
	updates := 0
	fs.SetOnUpdate(func() { updates++ })

	require.NoError(t, fs.IndexAll(context.Background()))
	require.True(t, mock.indexed(path))

	require.NoError(t, fs.RemoveFiles(context.Background(), []string{path}))
	assert.False(t, mock.indexed(path))
	assert.False(t, fs.KnownFile(path, []byte("<?php\nclass A {}\n")))

	require.NoError(t, fs.IndexAll(context.Background()))
	require.NoError(t, fs.ClearHashes())
	assert.True(t, mock.cleared)
	require.NoError(t, fs.IndexAll(context.Background()))
	assert.Equal(t, 3, mock.calls(path))
	assert.Equal(t, 4, updates)
}

// Helper function to create test files
func createTestFiles(t *testing.T, baseDir string) {
	dirs := []string{
		"regular",
		"node_modules",
		"vendor-bin",
		"tests",
		filepath.Join("nested", "node_modules"),
	}

	for _, dir := range dirs {
		err := os.MkdirAll(filepath.Join(baseDir, dir), 0755)
		require.NoError(t, err)

		filePath := filepath.Join(baseDir, dir, "file.php")
		err = os.WriteFile(filePath, []byte("<?php\n// Test file\n"), 0644)
		require.NoError(t, err)
	}
}

type mockIndexer struct {
	mu           sync.Mutex
	indexedFiles map[string]bool
	rootKinds    map[string]string
	indexCalls   map[string]int
	cleared      bool
}

func (m *mockIndexer) Index(path string, node *tree_sitter.Node, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexCalls == nil {
		m.indexCalls = map[string]int{}
	}
	m.indexedFiles[path] = true
	m.rootKinds[path] = node.Kind()
	m.indexCalls[path]++
	return nil
}

func (m *mockIndexer) RemovedFiles(paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range paths {
		delete(m.indexedFiles, path)
	}
	return nil
}

func (m *mockIndexer) indexed(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexedFiles[path]
}

func (m *mockIndexer) calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexCalls[path]
}

func (m *mockIndexer) ID() string {
	return "mock"
}

func (m *mockIndexer) Close() error {
	return nil
}

func (m *mockIndexer) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = true
	m.indexedFiles = map[string]bool{}
	return nil
}
