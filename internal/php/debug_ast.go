package php

import (
	"fmt"
	"io"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// DebugAST prints the syntax tree of a parsed file, with field names, to w.
func DebugAST(w io.Writer, f *File) error {
	return printNodeStructure(w, f.Root(), "", f.Content, 0)
}

func printNodeStructure(w io.Writer, node *tree_sitter.Node, field string, fileContent []byte, depth int) error {
	if node == nil {
		return nil
	}

	indent := strings.Repeat("  ", depth)

	nodeText := ""
	if node.NamedChildCount() == 0 {
		nodeText = string(node.Utf8Text(fileContent))
	}

	label := node.Kind()
	if field != "" {
		label = field + ": " + label
	}

	if _, err := fmt.Fprintf(w, "%s%s [%d] %s\n", indent, label, node.StartPosition().Row+1, nodeText); err != nil {
		return err
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		if err := printNodeStructure(w, child, node.FieldNameForChild(uint32(i)), fileContent, depth+1); err != nil {
			return err
		}
	}
	return nil
}
