package infer

import (
	"fmt"
	"maps"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/types"
)

// Context describes where resolution currently happens. It is passed by value;
// the maps it holds are never written after construction.
type Context struct {
	File     *php.File
	Class    *php.PHPClass
	Function *php.Function

	// Static is the class static and $this refer to. Empty means Class.
	Static string

	// Body is the function-like node (or program) owning the variables in scope.
	Body *tree_sitter.Node

	Depth    int
	Bindings map[string]types.Type

	// Vars overrides variable types, used for callback parameters.
	Vars map[string]types.Type
}

func (c Context) resolver() *php.AliasResolver {
	if c.Function != nil && c.Function.Resolver != nil {
		return c.Function.Resolver
	}
	if c.Class != nil {
		return c.Class.Resolver
	}
	return nil
}

func (c Context) staticName() string {
	if c.Static != "" {
		return c.Static
	}
	if c.Class != nil {
		return c.Class.Name
	}
	return ""
}

func (c Context) location(node *tree_sitter.Node) string {
	path := ""
	if c.File != nil {
		path = c.File.Path
	} else if c.Class != nil {
		path = c.Class.Path
	}
	if node == nil {
		if c.Function != nil {
			return fmt.Sprintf("%s:%d", path, c.Function.Line)
		}
		if c.Class != nil {
			return fmt.Sprintf("%s:%d", path, c.Class.Line)
		}
		return path
	}
	return fmt.Sprintf("%s:%d", path, node.StartPosition().Row+1)
}

func (c Context) text(node *tree_sitter.Node) string {
	if node == nil || c.File == nil {
		return ""
	}
	return string(node.Utf8Text(c.File.Content))
}

// resolveName turns a class reference written in this context into a fully
// qualified name.
func (c Context) resolveName(name string) string {
	switch strings.ToLower(name) {
	case "self":
		if c.Class != nil {
			return c.Class.Name
		}
	case "static", "$this":
		return c.staticName()
	case "parent":
		if c.Class != nil {
			return c.Class.Parent
		}
	}
	return c.resolver().ResolveType(name)
}

func (c Context) withVars(vars map[string]types.Type) Context {
	merged := maps.Clone(c.Vars)
	if merged == nil {
		merged = map[string]types.Type{}
	}
	maps.Copy(merged, vars)
	c.Vars = merged
	return c
}

// forClass returns the context for code declared in class, with static bound
// to the class the member was reached through.
func forClass(class *php.PHPClass, static string, depth int, bindings map[string]types.Type) Context {
	return Context{
		File:     class.File,
		Class:    class,
		Static:   static,
		Depth:    depth,
		Bindings: bindings,
	}
}

// forFunction returns the context for the body of fn.
func (c Context) forFunction(fn *php.Function) Context {
	c.Function = fn
	c.Body = fn.Node
	c.Vars = nil
	if fn.File != nil {
		c.File = fn.File
	}
	return c
}
