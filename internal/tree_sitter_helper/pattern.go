package treesitterhelper

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Common patterns library that can be reused
var (
	// PHPScopePattern matches nodes that open a new variable scope.
	PHPScopePattern = AnyNodeKind(
		"function_definition",
		"method_declaration",
		"anonymous_function",
		"arrow_function",
		"class_declaration",
		"anonymous_class",
	)

	PHPReturnPattern = NodeKind("return_statement")

	PHPThrowPattern = AnyNodeKind("throw_expression", "throw_statement")

	// PHPExitPattern matches exit()/die() whether the grammar sees a statement or a call.
	PHPExitPattern = Or(
		NodeKind("exit_statement"),
		And(
			NodeKind("function_call_expression"),
			FuncPattern(func(node *tree_sitter.Node, content []byte) bool {
				fn := node.ChildByFieldName("function")
				if fn == nil {
					return false
				}
				name := strings.ToLower(strings.TrimPrefix(string(fn.Utf8Text(content)), "\\"))
				return name == "exit" || name == "die"
			}),
		),
	)

	// PHPTerminatorPattern matches statements after which control never falls through.
	PHPTerminatorPattern = Or(
		PHPReturnPattern,
		PHPThrowPattern,
		PHPExitPattern,
	)
)

// Pattern defines a pattern that can be matched against a tree-sitter node
type Pattern interface {
	Matches(node *tree_sitter.Node, content []byte) bool
}

// Create a pattern from a function
func FuncPattern(matchFunc func(node *tree_sitter.Node, content []byte) bool) Pattern {
	return &funcPattern{matchFunc: matchFunc}
}

type funcPattern struct {
	matchFunc func(node *tree_sitter.Node, content []byte) bool
}

func (p *funcPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	return p.matchFunc(node, content)
}

// Chain multiple patterns using AND logic
func And(patterns ...Pattern) Pattern {
	return &andPattern{patterns: patterns}
}

type andPattern struct {
	patterns []Pattern
}

func (p *andPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	for _, pattern := range p.patterns {
		if !pattern.Matches(node, content) {
			return false
		}
	}
	return true
}

// Chain multiple patterns using OR logic
func Or(patterns ...Pattern) Pattern {
	return &orPattern{patterns: patterns}
}

type orPattern struct {
	patterns []Pattern
}

func (p *orPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	for _, pattern := range p.patterns {
		if pattern.Matches(node, content) {
			return true
		}
	}
	return false
}

// Match a node's kind
func NodeKind(kind string) Pattern {
	return &nodeKindPattern{kind: kind}
}

type nodeKindPattern struct {
	kind string
}

func (p *nodeKindPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	return node.Kind() == p.kind
}

// Match any of the node kinds
func AnyNodeKind(kinds ...string) Pattern {
	return &anyNodeKindPattern{kinds: kinds}
}

type anyNodeKindPattern struct {
	kinds []string
}

func (p *anyNodeKindPattern) Matches(node *tree_sitter.Node, content []byte) bool {
	kind := node.Kind()
	for _, k := range p.kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Utility function to match a pattern and return the first matching node
func FindFirst(root *tree_sitter.Node, pattern Pattern, content []byte) *tree_sitter.Node {
	// Simple traversal implementation
	if pattern.Matches(root, content) {
		return root
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(uint(i))
		if result := FindFirst(child, pattern, content); result != nil {
			return result
		}
	}

	return nil
}

// Utility function to find all nodes matching a pattern
func FindAll(root *tree_sitter.Node, pattern Pattern, content []byte) []*tree_sitter.Node {
	var results []*tree_sitter.Node

	var visit func(node *tree_sitter.Node)
	visit = func(node *tree_sitter.Node) {
		if pattern.Matches(node, content) {
			results = append(results, node)
		}

		for i := 0; i < int(node.NamedChildCount()); i++ {
			visit(node.NamedChild(uint(i)))
		}
	}

	visit(root)
	return results
}

// FindAllInScope is FindAll that does not descend into nested functions, closures or
// classes below root.
func FindAllInScope(root *tree_sitter.Node, pattern Pattern, content []byte) []*tree_sitter.Node {
	var results []*tree_sitter.Node

	var visit func(node *tree_sitter.Node)
	visit = func(node *tree_sitter.Node) {
		if pattern.Matches(node, content) {
			results = append(results, node)
		}

		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(uint(i))
			if child == nil || PHPScopePattern.Matches(child, content) {
				continue
			}
			visit(child)
		}
	}

	if root != nil {
		visit(root)
	}
	return results
}
