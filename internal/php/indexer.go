package php

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var skipDirs = map[string]bool{
	"node_modules": true,
	"var":          true,
	"vendor-bin":   true,
	"bin":          true,
	"cache":        true,
	".git":         true,
	".github":      true,
}

// Locator finds the file declaring a class or function without loading the whole
// project. The persistent ClassIndexer implements it.
type Locator interface {
	ClassFile(name string) (string, bool)
	FunctionFile(name string) (string, bool)
}

// Index holds the parsed PHP files of a project in memory and answers class and
// function lookups. Files missing from memory are loaded through the Locator.
type Index struct {
	mu        sync.RWMutex
	classes   map[string]*PHPClass
	functions map[string]*PHPFunction
	files     map[string]*File
	attempted map[string]bool
	locator   Locator
	logger    *zap.Logger
}

func NewIndex(logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		classes:   map[string]*PHPClass{},
		functions: map[string]*PHPFunction{},
		files:     map[string]*File{},
		attempted: map[string]bool{},
		logger:    logger,
	}
}

// SetLocator enables lazy loading of classes and functions that are not in memory.
func (idx *Index) SetLocator(locator Locator) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.locator = locator
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "\\"))
}

// AddFile registers the declarations of f, replacing a previous version of the same path.
func (idx *Index) AddFile(f *File) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addFileLocked(f)
}

func (idx *Index) addFileLocked(f *File) {
	idx.removeFileLocked(f.Path)
	idx.files[f.Path] = f
	for _, class := range f.Classes {
		idx.classes[normalizeName(class.Name)] = class
	}
	for _, fn := range f.Functions {
		idx.functions[normalizeName(fn.Name)] = fn
	}
}

// RemoveFile drops the declarations of path and releases its syntax tree.
func (idx *Index) RemoveFile(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeFileLocked(path)
}

func (idx *Index) removeFileLocked(path string) {
	old, ok := idx.files[path]
	if !ok {
		return
	}
	for _, class := range old.Classes {
		key := normalizeName(class.Name)
		if idx.classes[key] == class {
			delete(idx.classes, key)
		}
	}
	for _, fn := range old.Functions {
		key := normalizeName(fn.Name)
		if idx.functions[key] == fn {
			delete(idx.functions, key)
		}
	}
	delete(idx.files, path)
	old.Close()
}

// AddSource parses content and registers it under path.
func (idx *Index) AddSource(path string, content []byte) (*File, error) {
	f, err := ParseSource(path, content)
	if err != nil {
		return nil, err
	}
	idx.AddFile(f)
	return f, nil
}

// LoadDir parses every .php file below root, skipping dependency and cache folders.
func (idx *Index) LoadDir(ctx context.Context, root string) error {
	var phpFiles []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			relPath, err := filepath.Rel(root, path)
			if err == nil {
				pathParts := strings.Split(relPath, string(os.PathSeparator))
				if len(pathParts) == 1 && skipDirs[pathParts[0]] {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if filepath.Ext(path) != ".php" || strings.HasSuffix(path, ".phar.php") {
			return nil
		}

		phpFiles = append(phpFiles, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk project directory: %w", err)
	}

	return idx.LoadFiles(ctx, phpFiles)
}

// LoadFiles parses the given files in parallel, one parser per worker.
func (idx *Index) LoadFiles(ctx context.Context, paths []string) error {
	startTime := time.Now()

	workerCount := runtime.NumCPU() + 2
	if workerCount > 16 {
		workerCount = 16
	}

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		loadErr error
	)
	fileChan := make(chan string, 100)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Create a new parser for each goroutine to avoid concurrent access
			workerParser, err := NewParser()
			if err != nil {
				errMu.Lock()
				loadErr = multierr.Append(loadErr, err)
				errMu.Unlock()
				for range fileChan {
				}
				return
			}
			defer workerParser.Close()

			for path := range fileChan {
				content, err := os.ReadFile(path)
				if err != nil {
					errMu.Lock()
					loadErr = multierr.Append(loadErr, fmt.Errorf("failed to read %s: %w", path, err))
					errMu.Unlock()
					continue
				}
				idx.AddFile(ParseFile(workerParser, path, content))
			}
		}()
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		fileChan <- path
	}
	close(fileChan)
	wg.Wait()

	idx.mu.RLock()
	classCount := len(idx.classes)
	idx.mu.RUnlock()

	idx.logger.Info("Finished loading PHP files",
		zap.Int("files", len(paths)),
		zap.Int("classes", classCount),
		zap.Duration("took", time.Since(startTime)))

	return multierr.Append(loadErr, ctx.Err())
}

// GetClass looks up a class, interface, trait or enum by its fully qualified name.
func (idx *Index) GetClass(className string) *PHPClass {
	key := normalizeName(className)
	idx.mu.RLock()
	class, ok := idx.classes[key]
	locator := idx.locator
	idx.mu.RUnlock()
	if ok || locator == nil {
		return class
	}

	path, found := locator.ClassFile(className)
	if !found {
		return nil
	}
	idx.loadPath(path)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.classes[key]
}

// GetFunction looks up a free function by its fully qualified name.
func (idx *Index) GetFunction(name string) *PHPFunction {
	key := normalizeName(name)
	idx.mu.RLock()
	fn, ok := idx.functions[key]
	locator := idx.locator
	idx.mu.RUnlock()
	if ok || locator == nil {
		return fn
	}

	path, found := locator.FunctionFile(name)
	if !found {
		return nil
	}
	idx.loadPath(path)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.functions[key]
}

func (idx *Index) loadPath(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.attempted[path] {
		return
	}
	idx.attempted[path] = true

	content, err := os.ReadFile(path)
	if err != nil {
		idx.logger.Debug("Cannot load located file", zap.String("path", path), zap.Error(err))
		return
	}
	f, err := ParseSource(path, content)
	if err != nil {
		idx.logger.Debug("Cannot parse located file", zap.String("path", path), zap.Error(err))
		return
	}
	idx.addFileLocked(f)
}

// GetClassNames returns the names of all loaded classes, sorted.
func (idx *Index) GetClassNames() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	classNames := make([]string, 0, len(idx.classes))
	for _, class := range idx.classes {
		classNames = append(classNames, class.Name)
	}
	slices.Sort(classNames)
	return classNames
}

// File returns the loaded file at path.
func (idx *Index) File(path string) *File {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.files[path]
}

// Close releases all syntax trees.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for path, f := range idx.files {
		f.Close()
		delete(idx.files, path)
	}
	idx.classes = map[string]*PHPClass{}
	idx.functions = map[string]*PHPFunction{}
	return nil
}
