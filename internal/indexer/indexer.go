package indexer

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// Indexer receives every changed file of a scan. The node is only valid during the
// Index call, the tree is closed right after.
type Indexer interface {
	ID() string
	Index(path string, node *tree_sitter.Node, fileContent []byte) error
	RemovedFiles(paths []string) error
	Close() error
	Clear() error
}
