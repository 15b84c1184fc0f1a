package php

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopware/php-typeinfer/internal/indexer"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

const functionKeyPrefix = "function:"

// Location is the persisted position of a class-like or function declaration.
type Location struct {
	Name string `msgpack:"name"`
	Kind string `msgpack:"kind"`
	Path string `msgpack:"path"`
	Line int    `msgpack:"line"`
}

// ClassIndexer persists where classes and functions are declared so later runs can
// load only the files they need. It plugs into indexer.FileScanner.
type ClassIndexer struct {
	dataIndexer *indexer.DataIndexer[Location]
}

func NewClassIndexer(configDir string) (*ClassIndexer, error) {
	dataIndexer, err := indexer.NewDataIndexer[Location](filepath.Join(configDir, "php_classes.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create class index: %w", err)
	}
	return &ClassIndexer{dataIndexer: dataIndexer}, nil
}

func (c *ClassIndexer) ID() string {
	return "php.classes"
}

func kindName(kind ClassKind) string {
	switch kind {
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindEnum:
		return "enum"
	}
	return "class"
}

func (c *ClassIndexer) Index(path string, node *tree_sitter.Node, fileContent []byte) error {
	// The tree is released by the scanner after this call, nothing may keep node handles.
	f := &File{Path: path, Content: fileContent}
	f.extract(node, newScope(""))

	items := make(map[string]Location, len(f.Classes)+len(f.Functions))
	for _, class := range f.Classes {
		items[normalizeName(class.Name)] = Location{Name: class.Name, Kind: kindName(class.Kind), Path: path, Line: class.Line}
	}
	for _, fn := range f.Functions {
		items[functionKeyPrefix+normalizeName(fn.Name)] = Location{Name: fn.Name, Kind: "function", Path: path, Line: fn.Line}
	}
	if len(items) == 0 {
		return nil
	}

	return c.dataIndexer.BatchSaveItems(map[string]map[string]Location{path: items})
}

func (c *ClassIndexer) RemovedFiles(paths []string) error {
	return c.dataIndexer.BatchDeleteByFilePaths(paths)
}

func (c *ClassIndexer) Close() error {
	return c.dataIndexer.Close()
}

func (c *ClassIndexer) Clear() error {
	return c.dataIndexer.Clear()
}

// ClassFile returns the file declaring the class.
func (c *ClassIndexer) ClassFile(name string) (string, bool) {
	return c.lookup(normalizeName(name))
}

// FunctionFile returns the file declaring the function.
func (c *ClassIndexer) FunctionFile(name string) (string, bool) {
	return c.lookup(functionKeyPrefix + normalizeName(name))
}

func (c *ClassIndexer) lookup(key string) (string, bool) {
	values, err := c.dataIndexer.GetValues(key)
	if err != nil || len(values) == 0 {
		return "", false
	}
	return values[0].Path, true
}

// Locations returns every persisted declaration, functions included.
func (c *ClassIndexer) Locations() ([]Location, error) {
	return c.dataIndexer.GetAllValues()
}

// ClassNames returns the persisted class names (functions excluded).
func (c *ClassIndexer) ClassNames() ([]string, error) {
	values, err := c.dataIndexer.GetAllValues()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, v := range values {
		if v.Kind != "function" {
			names = append(names, v.Name)
		}
	}
	return names, nil
}

// ClassesInNamespace returns the persisted classes declared in namespace or below it.
func (c *ClassIndexer) ClassesInNamespace(namespace string) ([]Location, error) {
	prefix := normalizeName(strings.TrimSuffix(namespace, "\\")) + "\\"
	values, err := c.dataIndexer.GetValuesByKeyPrefix(prefix)
	if err != nil {
		return nil, err
	}
	classes := values[:0]
	for _, v := range values {
		if v.Kind != "function" {
			classes = append(classes, v)
		}
	}
	return classes, nil
}
