package indexer

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"go.etcd.io/bbolt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var defaultSkipDirs = map[string]bool{
	"node_modules": true,
	"var":          true,
	"vendor-bin":   true,
	"bin":          true,
	"cache":        true,
	".git":         true,
	".github":      true,
	".gitlab":      true,
	".run":         true,
	".idea":        true,
	".vscode":      true,
	"tests":        true,
	"public":       true,
}

var fileHashesBucket = []byte("file_hashes")

// size, mtime and content hash, little endian
const fileStateSize = 24

const debounceDelay = 200 * time.Millisecond

// FileScanner scans the project for PHP files, feeds changed files to the registered
// indexers and remembers what it has seen so unchanged files are skipped next time.
type FileScanner struct {
	projectRoot string
	db          *bbolt.DB
	indexer     []Indexer
	logger      *zap.Logger
	watcher     *fsnotify.Watcher
	watcherCtx  context.Context
	cancel      context.CancelFunc
	watcherWg   sync.WaitGroup
	onUpdate    func()
}

// NewFileScanner creates a new file scanner
func NewFileScanner(projectRoot string, dbPath string, logger *zap.Logger) (*FileScanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Ensure parent directory exists for the DB file
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout:         time.Second,
		NoSync:          true,
		FreelistType:    bbolt.FreelistMapType,
		InitialMmapSize: 1024 * 1024 * 10,
		PageSize:        4096,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(fileHashesBucket); err != nil {
			return fmt.Errorf("failed to create file hashes bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileScanner{
		projectRoot: projectRoot,
		db:          db,
		indexer:     []Indexer{},
		logger:      logger,
		watcherCtx:  ctx,
		cancel:      cancel,
	}, nil
}

func (fs *FileScanner) SetOnUpdate(onUpdate func()) {
	fs.onUpdate = onUpdate
}

func (fs *FileScanner) AddIndexer(indexer Indexer) {
	fs.indexer = append(fs.indexer, indexer)
}

func (fs *FileScanner) isSkipped(path string) bool {
	relPath, err := filepath.Rel(fs.projectRoot, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(relPath, string(os.PathSeparator)) {
		if defaultSkipDirs[part] {
			return true
		}
	}
	return false
}

func isScannedFile(path string) bool {
	if strings.HasSuffix(path, ".phar.php") {
		return false
	}
	return slices.Contains(scannedFileTypes, strings.ToLower(filepath.Ext(path)))
}

// StartWatcher starts watching for file changes in the project directory
func (fs *FileScanner) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	fs.watcher = watcher
	fs.watcherWg.Add(1)

	go func() {
		defer fs.watcherWg.Done()
		defer func() {
			_ = watcher.Close()
		}()

		pendingAdds := make(map[string]bool)
		pendingRemoves := make(map[string]bool)
		debounceTimer := time.NewTimer(time.Hour)
		debounceTimer.Stop()

		resetTimer := func() {
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(debounceDelay)
		}

		processChanges := func() {
			if len(pendingAdds) > 0 {
				filesToAdd := make([]string, 0, len(pendingAdds))
				for file := range pendingAdds {
					filesToAdd = append(filesToAdd, file)
				}
				pendingAdds = make(map[string]bool)

				fs.logger.Info("Processing changed files", zap.Int("count", len(filesToAdd)))
				if err := fs.IndexFiles(context.Background(), filesToAdd); err != nil {
					fs.logger.Error("Error indexing files", zap.Error(err))
				}
			}

			if len(pendingRemoves) > 0 {
				filesToRemove := make([]string, 0, len(pendingRemoves))
				for file := range pendingRemoves {
					filesToRemove = append(filesToRemove, file)
				}
				pendingRemoves = make(map[string]bool)

				fs.logger.Info("Processing deleted files", zap.Int("count", len(filesToRemove)))
				if err := fs.RemoveFiles(context.Background(), filesToRemove); err != nil {
					fs.logger.Error("Error removing files", zap.Error(err))
				}
			}
		}

		for {
			select {
			case <-fs.watcherCtx.Done():
				processChanges()
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if fs.isSkipped(event.Name) {
					continue
				}

				fileInfo, err := os.Stat(event.Name)
				if err != nil {
					// File might have been deleted
					if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && isScannedFile(event.Name) {
						pendingRemoves[event.Name] = true
						delete(pendingAdds, event.Name)
						resetTimer()
					}
					continue
				}

				if fileInfo.IsDir() {
					if event.Op&fsnotify.Create != 0 {
						if err := fs.addDirectoryToWatcher(event.Name); err != nil {
							fs.logger.Warn("Error adding directory to watcher", zap.String("dir", event.Name), zap.Error(err))
						}
					}
					continue
				}

				if !isScannedFile(event.Name) {
					continue
				}

				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					fs.logger.Debug("File changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
					pendingAdds[event.Name] = true
					delete(pendingRemoves, event.Name)
				} else if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					fs.logger.Debug("File removed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
					pendingRemoves[event.Name] = true
					delete(pendingAdds, event.Name)
				}
				resetTimer()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fs.logger.Warn("File watcher error", zap.Error(err))

			case <-debounceTimer.C:
				processChanges()
			}
		}
	}()

	return fs.addDirectoryToWatcher(fs.projectRoot)
}

// StopWatcher stops the file watcher
func (fs *FileScanner) StopWatcher() {
	if fs.watcher != nil {
		fs.cancel()
		fs.watcherWg.Wait()
		fs.watcher = nil
	}
}

// addDirectoryToWatcher recursively adds a directory and its subdirectories to the watcher
func (fs *FileScanner) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files/dirs we can't access
		}
		if !info.IsDir() {
			return nil
		}
		if fs.isSkipped(path) {
			return filepath.SkipDir
		}
		if err := fs.watcher.Add(path); err != nil {
			fs.logger.Warn("Error watching directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// Close stops the watcher and closes the state database and all indexers.
func (fs *FileScanner) Close() error {
	fs.StopWatcher()
	fs.cancel()

	var err error
	if fs.db != nil {
		err = multierr.Append(err, fs.db.Close())
		fs.db = nil
	}
	for _, indexer := range fs.indexer {
		err = multierr.Append(err, indexer.Close())
	}
	fs.indexer = nil
	return err
}

// CollectFiles returns every scanned file below the project root.
func (fs *FileScanner) CollectFiles() ([]string, error) {
	var files []string

	err := filepath.Walk(fs.projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			if path != fs.projectRoot && fs.isSkipped(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if isScannedFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project directory: %w", err)
	}
	return files, nil
}

func (fs *FileScanner) IndexAll(ctx context.Context) error {
	files, err := fs.CollectFiles()
	if err != nil {
		return err
	}

	fs.logger.Info("Found files to index", zap.Int("count", len(files)))
	startTime := time.Now()

	if err := fs.IndexFiles(ctx, files); err != nil {
		return fmt.Errorf("failed to index files: %w", err)
	}

	fs.logger.Info("Indexing finished", zap.Duration("took", time.Since(startTime)))
	return nil
}

type fileState struct {
	size  uint64
	mtime uint64
	hash  uint64
}

func (s fileState) encode() []byte {
	b := make([]byte, fileStateSize)
	binary.LittleEndian.PutUint64(b[0:8], s.size)
	binary.LittleEndian.PutUint64(b[8:16], s.mtime)
	binary.LittleEndian.PutUint64(b[16:24], s.hash)
	return b
}

func decodeFileState(b []byte) (fileState, bool) {
	if len(b) != fileStateSize {
		return fileState{}, false
	}
	return fileState{
		size:  binary.LittleEndian.Uint64(b[0:8]),
		mtime: binary.LittleEndian.Uint64(b[8:16]),
		hash:  binary.LittleEndian.Uint64(b[16:24]),
	}, true
}

type fileWork struct {
	path    string
	content []byte
	state   fileState
	// touched files changed on disk metadata only, their content hash is unchanged
	touched bool
}

func (fs *FileScanner) storedState(path string) (fileState, bool) {
	var state fileState
	var found bool
	_ = fs.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(fileHashesBucket)
		if b == nil {
			return nil
		}
		state, found = decodeFileState(b.Get([]byte(path)))
		return nil
	})
	return state, found
}

// checkFile reports whether a file needs indexing. Files whose size and modification
// time are unchanged are skipped without reading; files with new metadata but the same
// content hash only get their state refreshed.
func (fs *FileScanner) checkFile(path string) (*fileWork, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	stored, found := fs.storedState(path)
	current := fileState{size: uint64(info.Size()), mtime: uint64(info.ModTime().UnixNano())}
	if found && stored.size == current.size && stored.mtime == current.mtime {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	current.hash = xxhash.Sum64(content)

	return &fileWork{
		path:    path,
		content: content,
		state:   current,
		touched: found && stored.hash == current.hash,
	}, nil
}

// RemoveFiles removes multiple files from the index
func (fs *FileScanner) RemoveFiles(ctx context.Context, paths []string) error {
	if err := fs.removeFilesFromIndexers(paths); err != nil {
		return err
	}

	err := fs.db.Update(func(tx *bbolt.Tx) error {
		hashBucket := tx.Bucket(fileHashesBucket)
		for _, path := range paths {
			if err := hashBucket.Delete([]byte(path)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if fs.onUpdate != nil {
		fs.onUpdate()
	}
	return nil
}

func (fs *FileScanner) removeFilesFromIndexers(paths []string) error {
	for _, indexer := range fs.indexer {
		if err := indexer.RemovedFiles(paths); err != nil {
			return fmt.Errorf("indexer %s: %w", indexer.ID(), err)
		}
	}
	return nil
}

func (fs *FileScanner) updateFileStates(files []*fileWork) error {
	return fs.db.Update(func(tx *bbolt.Tx) error {
		hashBucket := tx.Bucket(fileHashesBucket)
		for _, file := range files {
			if err := hashBucket.Put([]byte(file.path), file.state.encode()); err != nil {
				return err
			}
		}
		return nil
	})
}

// IndexFiles processes multiple files in parallel. Errors of single files do not stop
// the scan, they are returned together at the end.
func (fs *FileScanner) IndexFiles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}

	filteredFiles := make([]string, 0, len(files))
	for _, path := range files {
		if !fs.isSkipped(path) {
			filteredFiles = append(filteredFiles, path)
		}
	}
	files = filteredFiles

	workerCount := runtime.NumCPU() + 2
	if workerCount > 16 {
		workerCount = 16
	}

	fileChan := make(chan string, 100)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		scanErr  error
		indexed  atomic.Int64
		touched  atomic.Int64
		addError = func(err error) {
			errMu.Lock()
			scanErr = multierr.Append(scanErr, err)
			errMu.Unlock()
		}
	)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			parsers, err := CreateTreesitterParsers()
			if err != nil {
				addError(err)
				for range fileChan {
				}
				return
			}
			defer CloseTreesitterParsers(parsers)

			const batchSize = 50
			batch := make([]*fileWork, 0, batchSize)

			processBatch := func(items []*fileWork) {
				if len(items) == 0 {
					return
				}

				var changed []*fileWork
				for _, item := range items {
					if !item.touched {
						changed = append(changed, item)
					}
				}

				paths := make([]string, 0, len(changed))
				for _, item := range changed {
					paths = append(paths, item.path)
				}
				if err := fs.removeFilesFromIndexers(paths); err != nil {
					addError(err)
					return
				}

				for _, item := range changed {
					parser := parsers[strings.ToLower(filepath.Ext(item.path))]
					if parser == nil {
						addError(fmt.Errorf("no parser found for file %s", item.path))
						continue
					}

					tree := parser.Parse(item.content, nil)
					for _, indexer := range fs.indexer {
						if err := indexer.Index(item.path, tree.RootNode(), item.content); err != nil {
							addError(fmt.Errorf("indexer %s failed on %s: %w", indexer.ID(), item.path, err))
						}
					}
					tree.Close()
					indexed.Add(1)
				}
				touched.Add(int64(len(items) - len(changed)))

				if err := fs.updateFileStates(items); err != nil {
					addError(err)
				}
			}

			for path := range fileChan {
				work, err := fs.checkFile(path)
				if err != nil {
					fs.logger.Debug("Skipping unreadable file", zap.String("path", path), zap.Error(err))
					continue
				}
				if work == nil {
					continue
				}

				batch = append(batch, work)
				if len(batch) >= batchSize {
					processBatch(batch)
					batch = batch[:0]
				}
			}

			processBatch(batch)
		}()
	}

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		fileChan <- path
	}
	close(fileChan)
	wg.Wait()

	fs.logger.Debug("Scan finished",
		zap.Int("files", len(files)),
		zap.Int64("indexed", indexed.Load()),
		zap.Int64("unchanged_content", touched.Load()))

	if fs.onUpdate != nil {
		fs.onUpdate()
	}

	return multierr.Append(scanErr, ctx.Err())
}

// ClearHashes clears all file hashes, forcing reindexing
func (fs *FileScanner) ClearHashes() error {
	for _, indexer := range fs.indexer {
		if err := indexer.Clear(); err != nil {
			return err
		}
	}

	return fs.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(fileHashesBucket); err != nil {
			return fmt.Errorf("failed to delete file hashes bucket: %w", err)
		}
		if _, err := tx.CreateBucket(fileHashesBucket); err != nil {
			return fmt.Errorf("failed to create file hashes bucket: %w", err)
		}
		return nil
	})
}

// KnownFile reports whether the scanner has a recorded state for path with the given
// content.
func (fs *FileScanner) KnownFile(path string, content []byte) bool {
	state, found := fs.storedState(path)
	return found && state.hash == xxhash.Sum64(content)
}
