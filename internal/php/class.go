package php

import (
	"strings"

	"github.com/shopware/php-typeinfer/internal/phpdoc"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "public"
}

type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
	KindTrait
	KindEnum
)

// PHPClass is a class-like declaration (class, interface, trait or enum) with the
// members the inference engine needs. Node handles point into File's syntax tree.
type PHPClass struct {
	Name       string
	Path       string
	Line       int
	Kind       ClassKind
	Abstract   bool
	Parent     string
	Interfaces []string
	Traits     []string
	Doc        *phpdoc.Block

	// EnumBacking is "int" or "string" for backed enums, empty otherwise.
	EnumBacking string
	Cases       []*PHPEnumCase
	Constants   map[string]*PHPConstant

	Methods    map[string]*PHPMethod
	Properties map[string]*PHPProperty
	// PropertyOrder lists property names in declaration order, promoted
	// constructor parameters included.
	PropertyOrder []string

	Resolver *AliasResolver
	File     *File
	Node     *tree_sitter.Node
}

func (c *PHPClass) IsInterface() bool { return c.Kind == KindInterface }

func (c *PHPClass) IsEnum() bool { return c.Kind == KindEnum }

// ShortName returns the class name without its namespace.
func (c *PHPClass) ShortName() string {
	if i := strings.LastIndex(c.Name, "\\"); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// Method returns a method declared directly on the class (case-insensitive).
func (c *PHPClass) Method(name string) *PHPMethod {
	if m, ok := c.Methods[strings.ToLower(name)]; ok {
		return m
	}
	return nil
}

// Case returns the enum case with the given name.
func (c *PHPClass) Case(name string) *PHPEnumCase {
	for _, ec := range c.Cases {
		if ec.Name == name {
			return ec
		}
	}
	return nil
}

type PHPEnumCase struct {
	Name  string
	Line  int
	Doc   *phpdoc.Block
	Value *tree_sitter.Node
}

type PHPConstant struct {
	Name       string
	Line       int
	Visibility Visibility
	Doc        *phpdoc.Block
	Value      *tree_sitter.Node
}

type PHPParameter struct {
	Name     string
	Type     phpdoc.Node
	Default  *tree_sitter.Node
	Variadic bool
	ByRef    bool
	Promoted bool
	Node     *tree_sitter.Node
}

// Function is the shared shape of methods and free functions.
type Function struct {
	Name       string
	Line       int
	Doc        *phpdoc.Block
	Params     []*PHPParameter
	ReturnType phpdoc.Node
	Body       *tree_sitter.Node
	Node       *tree_sitter.Node
	Resolver   *AliasResolver
	File       *File
}

// Param returns the parameter called name (without $).
func (f *Function) Param(name string) *PHPParameter {
	name = strings.TrimPrefix(name, "$")
	for _, p := range f.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

type PHPMethod struct {
	Function
	Class      string
	Visibility Visibility
	Static     bool
	Abstract   bool
}

type PHPFunction struct {
	Function
	Path string
}

type PHPProperty struct {
	Name       string
	Line       int
	Class      string
	Visibility Visibility
	Static     bool
	ReadOnly   bool
	Promoted   bool
	Type       phpdoc.Node
	Default    *tree_sitter.Node
	Doc        *phpdoc.Block
}

// GetProperty returns the property declared on the class or inherited from its parents.
func (idx *Index) GetProperty(className string, name string) *PHPProperty {
	return idx.getProperty(className, name, map[string]bool{})
}

func (idx *Index) getProperty(className string, name string, seen map[string]bool) *PHPProperty {
	key := strings.ToLower(className)
	if seen[key] {
		return nil
	}
	seen[key] = true

	class := idx.GetClass(className)
	if class == nil {
		return nil
	}

	if property, ok := class.Properties[name]; ok {
		return property
	}

	for _, trait := range class.Traits {
		if p := idx.getProperty(trait, name, seen); p != nil {
			return p
		}
	}

	if class.Parent != "" {
		return idx.getProperty(class.Parent, name, seen)
	}

	return nil
}

// GetMethod returns the method declared on the class, its traits, parents or
// interfaces, in PHP's lookup order.
func (idx *Index) GetMethod(className string, name string) *PHPMethod {
	return idx.getMethod(className, strings.ToLower(name), map[string]bool{})
}

func (idx *Index) getMethod(className string, name string, seen map[string]bool) *PHPMethod {
	key := strings.ToLower(className)
	if seen[key] {
		return nil
	}
	seen[key] = true

	class := idx.GetClass(className)
	if class == nil {
		return nil
	}

	if method, ok := class.Methods[name]; ok {
		return method
	}

	for _, trait := range class.Traits {
		if m := idx.getMethod(trait, name, seen); m != nil {
			return m
		}
	}

	if class.Parent != "" {
		if m := idx.getMethod(class.Parent, name, seen); m != nil {
			return m
		}
	}

	for _, iface := range class.Interfaces {
		if m := idx.getMethod(iface, name, seen); m != nil {
			return m
		}
	}

	return nil
}

// GetConstant returns a class constant, searching parents and interfaces.
func (idx *Index) GetConstant(className string, name string) *PHPConstant {
	seen := map[string]bool{}
	var find func(string) *PHPConstant
	find = func(className string) *PHPConstant {
		key := strings.ToLower(className)
		if seen[key] {
			return nil
		}
		seen[key] = true
		class := idx.GetClass(className)
		if class == nil {
			return nil
		}
		if c, ok := class.Constants[name]; ok {
			return c
		}
		for _, next := range append(append([]string{class.Parent}, class.Interfaces...), class.Traits...) {
			if next == "" {
				continue
			}
			if c := find(next); c != nil {
				return c
			}
		}
		return nil
	}
	return find(className)
}

// Ancestors returns the parent chain of the class, nearest first.
func (idx *Index) Ancestors(className string) []*PHPClass {
	var chain []*PHPClass
	seen := map[string]bool{strings.ToLower(className): true}
	class := idx.GetClass(className)
	for class != nil && class.Parent != "" {
		key := strings.ToLower(class.Parent)
		if seen[key] {
			break
		}
		seen[key] = true
		class = idx.GetClass(class.Parent)
		if class != nil {
			chain = append(chain, class)
		}
	}
	return chain
}

// IsSubclassOf reports whether className is ancestor, implements it, or uses it as a trait.
func (idx *Index) IsSubclassOf(className, ancestor string) bool {
	seen := map[string]bool{}
	var walk func(string) bool
	walk = func(name string) bool {
		key := strings.ToLower(name)
		if key == strings.ToLower(ancestor) {
			return true
		}
		if seen[key] {
			return false
		}
		seen[key] = true
		class := idx.GetClass(name)
		if class == nil {
			return false
		}
		for _, next := range append(append([]string{class.Parent}, class.Interfaces...), class.Traits...) {
			if next != "" && walk(next) {
				return true
			}
		}
		return false
	}
	return walk(className)
}
