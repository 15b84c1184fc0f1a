// Package phpdoc parses PHPDoc comments: the tags of a docblock and the structured
// type expressions they carry (PHPStan / Psalm flavoured syntax).
package phpdoc

import (
	"strconv"
	"strings"
)

// Node is a parsed documented type expression.
type Node interface {
	String() string
}

// IdentifierNode is a plain type name: int, non-empty-string, Foo\Bar, $this, T.
type IdentifierNode struct {
	Name string
}

func (n *IdentifierNode) String() string { return n.Name }

// GenericNode is a type with arguments: array<int, string>, Collection<User>.
type GenericNode struct {
	Type *IdentifierNode
	Args []Node
}

func (n *GenericNode) String() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	return n.Type.Name + "<" + strings.Join(parts, ", ") + ">"
}

// ShapeItem is one entry of an array or object shape.
type ShapeItem struct {
	Key      string
	IntKey   bool
	HasKey   bool
	Optional bool
	Value    Node
}

// ShapeNode is array{...}, list{...} or object{...}.
type ShapeNode struct {
	Kind  string
	Items []ShapeItem
}

func (n *ShapeNode) String() string {
	parts := make([]string, len(n.Items))
	for i, item := range n.Items {
		s := item.Value.String()
		if item.HasKey {
			key := item.Key
			if item.Optional {
				key += "?"
			}
			s = key + ": " + s
		}
		parts[i] = s
	}
	return n.Kind + "{" + strings.Join(parts, ", ") + "}"
}

// NullableNode is ?T.
type NullableNode struct {
	Type Node
}

func (n *NullableNode) String() string { return "?" + n.Type.String() }

// UnionNode is A|B.
type UnionNode struct {
	Types []Node
}

func (n *UnionNode) String() string { return joinNodes(n.Types, "|") }

// IntersectionNode is A&B.
type IntersectionNode struct {
	Types []Node
}

func (n *IntersectionNode) String() string { return joinNodes(n.Types, "&") }

// ArrayNode is T[].
type ArrayNode struct {
	Type Node
}

func (n *ArrayNode) String() string { return n.Type.String() + "[]" }

// ConstNode is a literal: 1, 1.5, 'foo'.
type ConstNode struct {
	Value any
}

func (n *ConstNode) String() string {
	switch v := n.Value.(type) {
	case string:
		return "'" + v + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// ConstFetchNode is Foo::BAR or Foo::* (Name "*").
type ConstFetchNode struct {
	Class string
	Name  string
}

func (n *ConstFetchNode) String() string { return n.Class + "::" + n.Name }

// CallableNode is callable(int): string or Closure(): void.
type CallableNode struct {
	Name   string
	Params []Node
	Return Node
}

func (n *CallableNode) String() string {
	s := n.Name + "(" + joinNodes(n.Params, ", ") + ")"
	if n.Return != nil {
		s += ": " + n.Return.String()
	}
	return s
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}
