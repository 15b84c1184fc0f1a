package indexer

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

var scannedFileTypes = []string{
	".php",
}

// CreateTreesitterParsers returns one parser per scanned file extension. Parsers are
// not safe for concurrent use, every worker creates its own set.
func CreateTreesitterParsers() (map[string]*tree_sitter.Parser, error) {
	parsers := make(map[string]*tree_sitter.Parser)

	php := tree_sitter.NewParser()
	if err := php.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())); err != nil {
		php.Close()
		return nil, fmt.Errorf("failed to set php language: %w", err)
	}
	parsers[".php"] = php

	return parsers, nil
}

func CloseTreesitterParsers(parsers map[string]*tree_sitter.Parser) {
	for _, parser := range parsers {
		parser.Close()
	}
}
