package infer

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/phpdoc"
	"github.com/shopware/php-typeinfer/internal/types"
)

// scalarDocTypes maps documented pseudo types to their inferred counterpart.
var scalarDocTypes = map[string]func() types.Type{
	"int":               func() types.Type { return types.Integer() },
	"integer":           func() types.Type { return types.Integer() },
	"positive-int":      func() types.Type { return types.Integer() },
	"negative-int":      func() types.Type { return types.Integer() },
	"non-positive-int":  func() types.Type { return types.Integer() },
	"non-negative-int":  func() types.Type { return types.Integer() },
	"non-zero-int":      func() types.Type { return types.Integer() },
	"int-mask":          func() types.Type { return types.Integer() },
	"int-mask-of":       func() types.Type { return types.Integer() },
	"float":             func() types.Type { return types.Float() },
	"double":            func() types.Type { return types.Float() },
	"numeric":           func() types.Type { return types.Number() },
	"numeric-string":    func() types.Type { return types.Number() },
	"string":            func() types.Type { return types.String() },
	"non-empty-string":  func() types.Type { return types.String() },
	"lowercase-string":  func() types.Type { return types.String() },
	"uppercase-string":  func() types.Type { return types.String() },
	"literal-string":    func() types.Type { return types.String() },
	"non-falsy-string":  func() types.Type { return types.String() },
	"truthy-string":     func() types.Type { return types.String() },
	"callable-string":   func() types.Type { return types.String() },
	"class-string":      func() types.Type { return types.ClassString("") },
	"interface-string":  func() types.Type { return types.ClassString("") },
	"trait-string":      func() types.Type { return types.ClassString("") },
	"enum-string":       func() types.Type { return types.ClassString("") },
	"bool":              func() types.Type { return types.Boolean() },
	"boolean":           func() types.Type { return types.Boolean() },
	"true":              func() types.Type { return types.Literal(true) },
	"false":             func() types.Type { return types.Literal(false) },
	"null":              func() types.Type { return types.Null() },
	"void":              func() types.Type { return types.Void() },
	"never":             func() types.Type { return types.Void() },
	"noreturn":          func() types.Type { return types.Void() },
	"never-return":      func() types.Type { return types.Void() },
	"never-returns":     func() types.Type { return types.Void() },
	"no-return":         func() types.Type { return types.Void() },
	"mixed":             func() types.Type { return types.Unknown() },
	"empty":             func() types.Type { return types.Unknown() },
	"resource":          func() types.Type { return types.Unknown() },
	"closed-resource":   func() types.Type { return types.Unknown() },
	"open-resource":     func() types.Type { return types.Unknown() },
	"object":            func() types.Type { return types.NewObject("") },
	"iterable-object":   func() types.Type { return types.NewObject("") },
	"callable":          func() types.Type { return types.Callable() },
	"pure-callable":     func() types.Type { return types.Callable() },
	"closure":           func() types.Type { return types.Callable() },
	"scalar":            func() types.Type { return types.Union(types.Boolean(), types.Integer(), types.Float(), types.String()) },
	"array-key":         func() types.Type { return arrayKey() },
	"list":              func() types.Type { return types.List(types.Unknown()) },
	"non-empty-list":    func() types.Type { return types.List(types.Unknown()) },
	"array":             func() types.Type { return anyArray() },
	"non-empty-array":   func() types.Type { return anyArray() },
	"associative-array": func() types.Type { return anyArray() },
	"iterable":          func() types.Type { return anyArray() },
}

// traversables are classes whose generic arguments describe their items.
var traversables = map[string]bool{
	"traversable":       true,
	"iterator":          true,
	"iteratoraggregate": true,
	"generator":         true,
	"arrayiterator":     true,
	"arrayobject":       true,
	"splobjectstorage":  true,
}

func arrayKey() types.Type {
	return types.Union(types.Integer(), types.String())
}

func anyArray() types.Type {
	return types.Map(arrayKey(), types.Unknown())
}

// docType converts a documented type expression into a Type in ctx.
func (r *Run) docType(ctx Context, node phpdoc.Node) types.Type {
	switch n := node.(type) {
	case nil:
		return types.Unknown()
	case *phpdoc.IdentifierNode:
		return r.namedType(ctx, n.Name, nil)
	case *phpdoc.GenericNode:
		return r.namedType(ctx, n.Type.Name, n.Args)
	case *phpdoc.ShapeNode:
		return r.shapeType(ctx, n)
	case *phpdoc.NullableNode:
		return types.Union(r.docType(ctx, n.Type), types.Null())
	case *phpdoc.UnionNode:
		return types.Union(r.docTypes(ctx, n.Types)...)
	case *phpdoc.IntersectionNode:
		return types.Intersect(r.docTypes(ctx, n.Types)...)
	case *phpdoc.ArrayNode:
		return types.List(r.docType(ctx, n.Type))
	case *phpdoc.ConstNode:
		return types.Literal(n.Value)
	case *phpdoc.ConstFetchNode:
		return r.constFetchType(ctx, n)
	case *phpdoc.CallableNode:
		return types.Callable()
	}
	return types.Unknown()
}

func (r *Run) docTypes(ctx Context, nodes []phpdoc.Node) []types.Type {
	out := make([]types.Type, len(nodes))
	for i, n := range nodes {
		out[i] = r.docType(ctx, n)
	}
	return out
}

// checkDoc fails in strict mode when block contains type expressions that did
// not parse.
func (r *Run) checkDoc(ctx Context, block *phpdoc.Block, node *tree_sitter.Node) {
	if block == nil || len(block.Errors) == 0 || !r.cfg.Strict {
		return
	}
	r.fail(ctx, node, fmt.Errorf("%w: %v", ErrDocSyntax, block.Errors[0]))
}

func (r *Run) namedType(ctx Context, name string, argNodes []phpdoc.Node) types.Type {
	if t, ok := ctx.Bindings[name]; ok && len(argNodes) == 0 {
		return t
	}

	lower := strings.ToLower(strings.TrimPrefix(name, "\\"))
	if len(argNodes) == 0 {
		if build, ok := scalarDocTypes[lower]; ok {
			return build()
		}
	}

	switch lower {
	case "class-string", "interface-string", "enum-string":
		return r.classStringType(ctx, argNodes)
	}

	args := r.docTypes(ctx, argNodes)
	switch lower {
	case "array", "non-empty-array", "iterable", "associative-array":
		switch len(args) {
		case 0:
			return anyArray()
		case 1:
			return types.List(args[0])
		default:
			return types.Map(args[0], args[1])
		}
	case "list", "non-empty-list":
		if len(args) == 0 {
			return types.List(types.Unknown())
		}
		return types.List(args[0])
	case "int":
		return types.Integer()
	case "key-of", "value-of", "int-mask-of":
		return types.Unknown()
	case "self", "static", "$this", "parent":
		return r.selfType(ctx, lower)
	}

	if tpl, ok := r.template(ctx, name); ok && len(argNodes) == 0 {
		if tpl.Bound != nil {
			return r.docType(ctx, tpl.Bound)
		}
		return types.Unknown()
	}

	short := lower
	if i := strings.LastIndex(short, "\\"); i >= 0 {
		short = short[i+1:]
	}
	if traversables[short] && len(args) > 0 {
		if len(args) == 1 {
			return types.List(args[0])
		}
		return types.Map(args[0], args[1])
	}

	className := ctx.resolveName(name)
	return r.lazy(className, func() types.Type {
		return r.classType(ctx, className, args, nil)
	})
}

// classStringType converts class-string<T>. Bound templates contribute the
// class of their binding.
func (r *Run) classStringType(ctx Context, argNodes []phpdoc.Node) types.Type {
	if len(argNodes) != 1 {
		return types.ClassString("")
	}
	id, ok := argNodes[0].(*phpdoc.IdentifierNode)
	if !ok {
		return types.ClassString("")
	}
	if bound, ok := ctx.Bindings[id.Name]; ok {
		if names := classNames(bound); len(names) == 1 {
			return types.ClassString(names[0])
		}
		return types.ClassString("")
	}
	if _, ok := r.template(ctx, id.Name); ok {
		return types.ClassString("")
	}
	return types.ClassString(ctx.resolveName(id.Name))
}

// template returns the @template declaration called name visible in ctx.
func (r *Run) template(ctx Context, name string) (phpdoc.TemplateTag, bool) {
	var tags []phpdoc.TemplateTag
	if ctx.Function != nil {
		tags = append(tags, ctx.Function.Doc.Templates()...)
	}
	if ctx.Class != nil {
		tags = append(tags, ctx.Class.Doc.Templates()...)
	}
	for _, tag := range tags {
		if tag.Name == name {
			return tag, true
		}
	}
	return phpdoc.TemplateTag{}, false
}

// selfType is the type of self, static, $this or parent in ctx.
func (r *Run) selfType(ctx Context, which string) types.Type {
	if ctx.Class == nil {
		return types.Unknown()
	}
	switch which {
	case "parent":
		if ctx.Class.Parent == "" {
			return types.Unknown()
		}
		return r.classType(ctx, ctx.Class.Parent, nil, nil)
	case "self":
		return r.classType(ctx, ctx.Class.Name, r.boundArgs(ctx, ctx.Class), nil)
	}
	name := ctx.staticName()
	if strings.EqualFold(name, ctx.Class.Name) {
		return r.classType(ctx, name, r.boundArgs(ctx, ctx.Class), nil)
	}
	return r.classType(ctx, name, nil, nil)
}

// boundArgs lists the bindings of class's templates in declaration order, nil
// when none of them is bound.
func (r *Run) boundArgs(ctx Context, class *php.PHPClass) []types.Type {
	templates := class.Doc.Templates()
	if len(templates) == 0 || len(ctx.Bindings) == 0 {
		return nil
	}
	args := make([]types.Type, len(templates))
	bound := false
	for i, tpl := range templates {
		if t, ok := ctx.Bindings[tpl.Name]; ok {
			args[i] = t
			bound = true
		} else {
			args[i] = types.Unknown()
		}
	}
	if !bound {
		return nil
	}
	return args
}

func (r *Run) shapeType(ctx Context, n *phpdoc.ShapeNode) types.Type {
	if strings.EqualFold(n.Kind, "object") {
		obj := types.NewObject("")
		for _, item := range n.Items {
			obj = obj.WithProperty(item.Key, r.docType(ctx, item.Value), item.Optional)
		}
		return obj
	}

	shape := types.Shape()
	for _, item := range n.Items {
		t := r.docType(ctx, item.Value)
		if !item.HasKey {
			shape = shape.With(shape.NextIndex(), t, item.Optional)
			continue
		}
		shape = shape.With(shapeKey(item.Key, item.IntKey), t, item.Optional)
	}
	return shape
}

// shapeKey converts a key as PHP would: integer-like strings become integers.
func shapeKey(key string, intKey bool) any {
	if i, err := strconv.ParseInt(key, 10, 64); err == nil && (intKey || strconv.FormatInt(i, 10) == key) {
		return i
	}
	return key
}

// constFetchType resolves Foo::BAR, Foo::PREFIX_* and enum case references.
func (r *Run) constFetchType(ctx Context, n *phpdoc.ConstFetchNode) types.Type {
	className := ctx.resolveName(n.Class)
	class := r.index.GetClass(className)
	if class == nil {
		return r.fail(ctx, nil, classNotFound(className))
	}

	if !strings.HasSuffix(n.Name, "*") {
		return r.classConstant(ctx, class, n.Name, nil)
	}

	prefix := strings.TrimSuffix(n.Name, "*")
	var members []types.Type
	for _, ec := range class.Cases {
		if strings.HasPrefix(ec.Name, prefix) {
			members = append(members, r.enumCase(class, ec))
		}
	}
	constants := make([]*php.PHPConstant, 0, len(class.Constants))
	for _, c := range class.Constants {
		if strings.HasPrefix(c.Name, prefix) {
			constants = append(constants, c)
		}
	}
	slices.SortFunc(constants, func(a, b *php.PHPConstant) int { return a.Line - b.Line })
	for _, c := range constants {
		members = append(members, r.constantValue(class, c))
	}
	return types.Union(members...)
}

// classNames returns the classes of the object members of t.
func classNames(t types.Type) []string {
	var names []string
	for _, m := range types.Members(t) {
		if obj, ok := m.(*types.Object); ok && obj.Class() != "" {
			names = append(names, obj.Class())
		}
	}
	return names
}
