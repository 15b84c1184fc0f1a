package treesitterhelper

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// Terminates reports whether control never falls through the end of node: the node
// is a return, throw or exit, or a block whose statements end in one, or an if/else
// or switch whose every path terminates.
func Terminates(node *tree_sitter.Node, content []byte) bool {
	if node == nil {
		return false
	}

	switch node.Kind() {
	case "expression_statement":
		if node.NamedChildCount() == 0 {
			return false
		}
		return PHPTerminatorPattern.Matches(node.NamedChild(0), content)
	case "compound_statement", "colon_block":
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			child := node.NamedChild(uint(i))
			if child.Kind() == "comment" {
				continue
			}
			return Terminates(child, content)
		}
		return false
	case "if_statement":
		if !Terminates(node.ChildByFieldName("body"), content) {
			return false
		}
		hasElse := false
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			switch child.Kind() {
			case "else_if_clause":
				if !Terminates(child.ChildByFieldName("body"), content) {
					return false
				}
			case "else_clause":
				hasElse = true
				if !Terminates(child.ChildByFieldName("body"), content) {
					return false
				}
			}
		}
		return hasElse
	case "else_clause", "else_if_clause":
		return Terminates(node.ChildByFieldName("body"), content)
	case "case_statement", "default_statement":
		value := node.ChildByFieldName("value")
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			child := node.NamedChild(uint(i))
			if child.Kind() == "comment" || (value != nil && child.Id() == value.Id()) {
				continue
			}
			return Terminates(child, content)
		}
		return false
	case "try_statement":
		if !Terminates(node.ChildByFieldName("body"), content) {
			return false
		}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() == "catch_clause" && !Terminates(child.ChildByFieldName("body"), content) {
				return false
			}
		}
		return true
	}

	return PHPTerminatorPattern.Matches(node, content)
}

// EnclosingScope returns the nearest ancestor of node that opens a variable scope.
func EnclosingScope(node *tree_sitter.Node, content []byte) *tree_sitter.Node {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if PHPScopePattern.Matches(parent, content) {
			return parent
		}
	}
	return nil
}

// Contains reports whether inner lies within outer.
func Contains(outer, inner *tree_sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}
