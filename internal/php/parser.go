package php

import (
	"fmt"
	"strings"

	"github.com/shopware/php-typeinfer/internal/phpdoc"
	treesitterhelper "github.com/shopware/php-typeinfer/internal/tree_sitter_helper"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

// File is a parsed PHP source file together with the declarations found in it.
// The syntax tree stays alive until Close is called.
type File struct {
	Path      string
	Content   []byte
	Tree      *tree_sitter.Tree
	Classes   []*PHPClass
	Functions []*PHPFunction
}

// Root returns the program node of the file.
func (f *File) Root() *tree_sitter.Node {
	return f.Tree.RootNode()
}

// Text returns the source text of node.
func (f *File) Text(node *tree_sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(node.Utf8Text(f.Content))
}

// Line returns the 1-based line of node.
func (f *File) Line(node *tree_sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.StartPosition().Row) + 1
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.Tree != nil {
		f.Tree.Close()
		f.Tree = nil
	}
}

// NewParser returns a tree-sitter parser configured for PHP. Parsers are not safe for
// concurrent use, each goroutine needs its own.
func NewParser() (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return parser, nil
}

// ParseFile parses content with parser and extracts its classes and functions.
func ParseFile(parser *tree_sitter.Parser, path string, content []byte) *File {
	f := &File{
		Path:    path,
		Content: content,
		Tree:    parser.Parse(content, nil),
	}
	f.extract(f.Root(), newScope(""))
	return f
}

// ParseSource is ParseFile with a throwaway parser, handy in tests and one-off tools.
func ParseSource(path string, content []byte) (*File, error) {
	parser, err := NewParser()
	if err != nil {
		return nil, err
	}
	defer parser.Close()
	return ParseFile(parser, path, content), nil
}

// useScope collects the imports in effect for the declarations that follow them.
type useScope struct {
	namespace     string
	useStatements map[string]string
	aliases       map[string]string
	functions     map[string]string
}

func newScope(namespace string) *useScope {
	return &useScope{
		namespace:     namespace,
		useStatements: map[string]string{},
		aliases:       map[string]string{},
		functions:     map[string]string{},
	}
}

func (s *useScope) resolver() *AliasResolver {
	r := NewAliasResolver(s.namespace, copyMap(s.useStatements), copyMap(s.aliases))
	r.functions = copyMap(s.functions)
	return r
}

func copyMap(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (f *File) extract(parent *tree_sitter.Node, scope *useScope) {
	for i := uint(0); i < parent.NamedChildCount(); i++ {
		node := parent.NamedChild(i)
		if node == nil {
			continue
		}

		switch node.Kind() {
		case "namespace_definition":
			name := ""
			if nameNode := node.ChildByFieldName("name"); nameNode != nil {
				name = f.Text(nameNode)
			}
			if body := node.ChildByFieldName("body"); body != nil {
				f.extract(body, newScope(name))
				continue
			}
			scope = newScope(name)
		case "namespace_use_declaration":
			f.collectUses(node, scope)
		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			if class := f.extractClass(node, scope.resolver()); class != nil {
				f.Classes = append(f.Classes, class)
			}
		case "function_definition":
			if fn := f.extractFunction(node, scope.resolver()); fn != nil {
				f.Functions = append(f.Functions, fn)
			}
		case "compound_statement":
			f.extract(node, scope)
		}
	}
}

func (f *File) collectUses(node *tree_sitter.Node, scope *useScope) {
	kind := ""
	if fields := strings.Fields(f.Text(node)); len(fields) > 1 {
		kind = strings.ToLower(fields[1])
	}
	if kind == "const" {
		return
	}

	prefix := ""
	var clauses []*tree_sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "namespace_name":
			prefix = f.Text(child)
		case "namespace_use_group":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				clause := child.NamedChild(j)
				if clause.Kind() == "namespace_use_clause" || clause.Kind() == "namespace_use_group_clause" {
					clauses = append(clauses, clause)
				}
			}
		case "namespace_use_clause":
			clauses = append(clauses, child)
		}
	}

	for _, clause := range clauses {
		target, alias := f.useClauseNames(clause)
		if target == "" {
			continue
		}
		fullPath := strings.TrimPrefix(target, "\\")
		if prefix != "" {
			fullPath = strings.TrimSuffix(prefix, "\\") + "\\" + fullPath
		}

		short := fullPath
		if i := strings.LastIndex(fullPath, "\\"); i >= 0 {
			short = fullPath[i+1:]
		}

		if kind == "function" {
			name := short
			if alias != "" {
				name = alias
			}
			scope.functions[strings.ToLower(name)] = fullPath
			continue
		}

		if alias != "" {
			scope.aliases[alias] = fullPath
		} else {
			scope.useStatements[short] = fullPath
		}
	}
}

func (f *File) useClauseNames(clause *tree_sitter.Node) (string, string) {
	aliasNode := clause.ChildByFieldName("alias")
	if aliasing := firstChildOfKind(clause, "namespace_aliasing_clause"); aliasing != nil && aliasNode == nil {
		aliasNode = firstChildOfKind(aliasing, "name")
	}
	var names []*tree_sitter.Node
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child.Kind() == "name" || child.Kind() == "qualified_name" || child.Kind() == "namespace_name" {
			names = append(names, child)
		}
	}
	if len(names) == 0 {
		return "", ""
	}

	alias := ""
	if aliasNode != nil {
		alias = f.Text(aliasNode)
	} else if len(names) > 1 {
		alias = f.Text(names[len(names)-1])
	}
	return f.Text(names[0]), alias
}

func (f *File) extractClass(node *tree_sitter.Node, resolver *AliasResolver) *PHPClass {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	class := &PHPClass{
		Name:       resolver.Namespaced(f.Text(nameNode)),
		Path:       f.Path,
		Line:       f.Line(nameNode),
		Doc:        DocComment(node, f.Content),
		Constants:  map[string]*PHPConstant{},
		Methods:    map[string]*PHPMethod{},
		Properties: map[string]*PHPProperty{},
		Resolver:   resolver,
		File:       f,
		Node:       node,
	}

	switch node.Kind() {
	case "interface_declaration":
		class.Kind = KindInterface
	case "trait_declaration":
		class.Kind = KindTrait
	case "enum_declaration":
		class.Kind = KindEnum
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "abstract_modifier":
			class.Abstract = true
		case "base_clause":
			for _, name := range f.typeNames(child) {
				fqcn := resolver.ResolveType(name)
				// Interfaces can extend multiple other interfaces
				if class.Kind == KindInterface {
					class.Interfaces = append(class.Interfaces, fqcn)
				} else {
					class.Parent = fqcn
				}
			}
		case "class_interface_clause":
			for _, name := range f.typeNames(child) {
				class.Interfaces = append(class.Interfaces, resolver.ResolveType(name))
			}
		case "primitive_type":
			if class.Kind == KindEnum {
				class.EnumBacking = strings.ToLower(f.Text(child))
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		f.extractMembers(class, body)
	}

	return class
}

func (f *File) typeNames(clause *tree_sitter.Node) []string {
	var names []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child.Kind() == "name" || child.Kind() == "qualified_name" {
			names = append(names, f.Text(child))
		}
	}
	return names
}

func (f *File) extractMembers(class *PHPClass, body *tree_sitter.Node) {
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.Kind() {
		case "use_declaration":
			for _, name := range f.typeNames(child) {
				class.Traits = append(class.Traits, class.Resolver.ResolveType(name))
			}
		case "const_declaration":
			f.extractConstants(class, child)
		case "enum_case":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			class.Cases = append(class.Cases, &PHPEnumCase{
				Name:  f.Text(nameNode),
				Line:  f.Line(nameNode),
				Doc:   DocComment(child, f.Content),
				Value: child.ChildByFieldName("value"),
			})
		case "property_declaration":
			f.extractProperties(class, child)
		case "method_declaration":
			method := f.extractMethod(class, child)
			if method == nil {
				continue
			}
			class.Methods[strings.ToLower(method.Name)] = method
			if strings.EqualFold(method.Name, "__construct") {
				f.extractPromotedProperties(class, method)
			}
		}
	}
}

func (f *File) extractConstants(class *PHPClass, decl *tree_sitter.Node) {
	visibility := f.visibility(decl)
	doc := DocComment(decl, f.Content)
	for i := uint(0); i < decl.NamedChildCount(); i++ {
		element := decl.NamedChild(i)
		if element.Kind() != "const_element" || element.NamedChildCount() < 2 {
			continue
		}
		nameNode := element.NamedChild(0)
		class.Constants[f.Text(nameNode)] = &PHPConstant{
			Name:       f.Text(nameNode),
			Line:       f.Line(nameNode),
			Visibility: visibility,
			Doc:        doc,
			Value:      element.NamedChild(element.NamedChildCount() - 1),
		}
	}
}

func (f *File) visibility(node *tree_sitter.Node) Visibility {
	visibility := Public
	for i := uint(0); i < node.NamedChildCount(); i++ {
		modifier := node.NamedChild(i)
		if modifier.Kind() != "visibility_modifier" {
			continue
		}
		switch strings.ToLower(f.Text(modifier)) {
		case "private":
			visibility = Private
		case "protected":
			visibility = Protected
		}
	}
	return visibility
}

func (f *File) hasModifier(node *tree_sitter.Node, kind string) bool {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if node.NamedChild(i).Kind() == kind {
			return true
		}
	}
	return false
}

var typeKinds = map[string]bool{
	"named_type":                   true,
	"primitive_type":               true,
	"optional_type":                true,
	"union_type":                   true,
	"intersection_type":            true,
	"disjunctive_normal_form_type": true,
	"bottom_type":                  true,
}

// declaredType returns the native type declaration of node, looking at the given
// field first and at direct type children second.
func (f *File) declaredType(node *tree_sitter.Node, field string) phpdoc.Node {
	typeNode := node.ChildByFieldName(field)
	if typeNode == nil {
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if typeKinds[child.Kind()] {
				typeNode = child
				break
			}
		}
	}
	if typeNode == nil {
		return nil
	}
	parsed, err := phpdoc.ParseType(f.Text(typeNode))
	if err != nil {
		return nil
	}
	return parsed
}

func (f *File) extractProperties(class *PHPClass, decl *tree_sitter.Node) {
	visibility := f.visibility(decl)
	static := f.hasModifier(decl, "static_modifier")
	readOnly := f.hasModifier(decl, "readonly_modifier")
	propType := f.declaredType(decl, "type")
	doc := DocComment(decl, f.Content)

	// Property declarations can define multiple properties at once
	for i := uint(0); i < decl.NamedChildCount(); i++ {
		element := decl.NamedChild(i)
		if element.Kind() != "property_element" {
			continue
		}
		varNode := element.ChildByFieldName("name")
		if varNode == nil {
			varNode = firstChildOfKind(element, "variable_name")
		}
		if varNode == nil {
			continue
		}
		propName := strings.TrimPrefix(f.Text(varNode), "$")

		property := &PHPProperty{
			Name:       propName,
			Line:       f.Line(varNode),
			Class:      class.Name,
			Visibility: visibility,
			Static:     static,
			ReadOnly:   readOnly,
			Type:       propType,
			Default:    propertyDefault(element),
			Doc:        doc,
		}
		f.addProperty(class, property)
	}
}

func propertyDefault(element *tree_sitter.Node) *tree_sitter.Node {
	if value := element.ChildByFieldName("default_value"); value != nil {
		return value
	}
	if init := firstChildOfKind(element, "property_initializer"); init != nil && init.NamedChildCount() > 0 {
		return init.NamedChild(0)
	}
	if element.NamedChildCount() > 1 {
		return element.NamedChild(element.NamedChildCount() - 1)
	}
	return nil
}

func (f *File) addProperty(class *PHPClass, property *PHPProperty) {
	if _, exists := class.Properties[property.Name]; !exists {
		class.PropertyOrder = append(class.PropertyOrder, property.Name)
	}
	class.Properties[property.Name] = property
}

func (f *File) extractFunctionShape(node *tree_sitter.Node, resolver *AliasResolver) (Function, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Function{}, false
	}
	fn := Function{
		Name:       f.Text(nameNode),
		Line:       f.Line(nameNode),
		Doc:        DocComment(node, f.Content),
		ReturnType: f.declaredType(node, "return_type"),
		Body:       node.ChildByFieldName("body"),
		Node:       node,
		Resolver:   resolver,
		File:       f,
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Params = f.extractParameters(params)
	}
	return fn, true
}

// Closure describes an anonymous_function or arrow_function node as a Function
// without a name.
func (f *File) Closure(node *tree_sitter.Node, resolver *AliasResolver) *Function {
	fn := &Function{
		Line:       f.Line(node),
		Doc:        DocComment(node, f.Content),
		ReturnType: f.declaredType(node, "return_type"),
		Body:       node.ChildByFieldName("body"),
		Node:       node,
		Resolver:   resolver,
		File:       f,
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Params = f.extractParameters(params)
	}
	return fn
}

func (f *File) extractParameters(list *tree_sitter.Node) []*PHPParameter {
	var params []*PHPParameter
	for i := uint(0); i < list.NamedChildCount(); i++ {
		param := list.NamedChild(i)
		switch param.Kind() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}
		varNode := param.ChildByFieldName("name")
		if varNode == nil || varNode.Kind() != "variable_name" {
			varNode = firstDescendantOfKind(param, "variable_name")
		}
		if varNode == nil {
			continue
		}
		params = append(params, &PHPParameter{
			Name:     strings.TrimPrefix(f.Text(varNode), "$"),
			Type:     f.declaredType(param, "type"),
			Default:  param.ChildByFieldName("default_value"),
			Variadic: param.Kind() == "variadic_parameter",
			ByRef:    firstChildOfKind(param, "reference_modifier") != nil || firstChildOfKind(param, "by_ref") != nil,
			Promoted: param.Kind() == "property_promotion_parameter",
			Node:     param,
		})
	}
	return params
}

func (f *File) extractMethod(class *PHPClass, node *tree_sitter.Node) *PHPMethod {
	shape, ok := f.extractFunctionShape(node, class.Resolver)
	if !ok {
		return nil
	}
	return &PHPMethod{
		Function:   shape,
		Class:      class.Name,
		Visibility: f.visibility(node),
		Static:     f.hasModifier(node, "static_modifier"),
		Abstract:   f.hasModifier(node, "abstract_modifier") || class.Kind == KindInterface,
	}
}

func (f *File) extractPromotedProperties(class *PHPClass, ctor *PHPMethod) {
	for _, param := range ctor.Params {
		if !param.Promoted {
			continue
		}
		f.addProperty(class, &PHPProperty{
			Name:       param.Name,
			Line:       f.Line(param.Node),
			Class:      class.Name,
			Visibility: f.visibility(param.Node),
			ReadOnly:   f.hasModifier(param.Node, "readonly_modifier"),
			Promoted:   true,
			Type:       param.Type,
			Default:    param.Default,
			Doc:        DocComment(param.Node, f.Content),
		})
	}
}

func (f *File) extractFunction(node *tree_sitter.Node, resolver *AliasResolver) *PHPFunction {
	shape, ok := f.extractFunctionShape(node, resolver)
	if !ok {
		return nil
	}
	shape.Name = resolver.Namespaced(shape.Name)
	return &PHPFunction{Function: shape, Path: f.Path}
}

// DocComment returns the parsed docblock directly preceding node, nil when there is none.
func DocComment(node *tree_sitter.Node, content []byte) *phpdoc.Block {
	if node == nil {
		return nil
	}
	prev := node.PrevNamedSibling()
	if prev == nil || prev.Kind() != "comment" {
		return nil
	}
	text := string(prev.Utf8Text(content))
	if !phpdoc.IsDocComment(text) {
		return nil
	}
	return phpdoc.ParseBlock(text)
}

func firstChildOfKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func firstDescendantOfKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	return treesitterhelper.FindFirst(node, treesitterhelper.NodeKind(kind), nil)
}
