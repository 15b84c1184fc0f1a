package infer

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/phpdoc"
	"github.com/shopware/php-typeinfer/internal/types"
)

// dateTimeClasses are serialized as ISO 8601 strings.
var dateTimeClasses = map[string]bool{
	"datetimeinterface":              true,
	"datetime":                       true,
	"datetimeimmutable":              true,
	"carbon\\carbon":                 true,
	"carbon\\carboninterface":        true,
	"carbon\\carbonimmutable":        true,
	"illuminate\\support\\carbon":    true,
	"symfony\\component\\clock\\now": true,
}

// builtinClasses are known to PHP but never indexed. They resolve to stubs
// instead of failing.
var builtinClasses = map[string]bool{
	"throwable":                true,
	"exception":                true,
	"error":                    true,
	"typeerror":                true,
	"valueerror":               true,
	"errorexception":           true,
	"runtimeexception":         true,
	"logicexception":           true,
	"invalidargumentexception": true,
	"domainexception":          true,
	"lengthexception":          true,
	"outofrangeexception":      true,
	"outofboundsexception":     true,
	"unexpectedvalueexception": true,
	"badmethodcallexception":   true,
	"jsonexception":            true,
	"jsonserializable":         true,
	"stringable":               true,
	"countable":                true,
	"arrayaccess":              true,
	"unitenum":                 true,
	"backedenum":               true,
	"weakmap":                  true,
	"splfileinfo":              true,
}

// classType returns the object type of name bound to args. Classes below the
// depth limit are expanded into their public properties, deeper ones become
// stubs.
func (r *Run) classType(ctx Context, name string, args []types.Type, node *tree_sitter.Node) types.Type {
	name = strings.TrimPrefix(name, "\\")
	if name == "" {
		return types.Unknown()
	}

	lower := strings.ToLower(name)
	switch {
	case lower == "stdclass":
		return types.NewObject("stdClass")
	case dateTimeClasses[lower]:
		return types.ObjectStub(name).WithDisplay(types.String().WithFormat("date-time"))
	case lower == "closure":
		return types.Callable()
	case traversables[lower] && len(args) > 0:
		if len(args) == 1 {
			return types.List(args[0])
		}
		return types.Map(args[0], args[1])
	}

	class := r.index.GetClass(name)
	if class == nil {
		if builtinClasses[lower] || traversables[lower] {
			return types.ObjectStub(name)
		}
		return r.fail(ctx, node, classNotFound(name))
	}
	if class.IsEnum() {
		return r.enumType(class)
	}

	depth := ctx.Depth
	if depth >= r.cfg.maxDepth() {
		stub := types.ObjectStub(class.Name)
		if len(args) > 0 {
			stub = stub.WithArgs(args...)
		}
		return stub
	}

	bindings := r.bindTemplates(ctx, class, args, node)
	build := func() types.Type {
		defer step("resolving class " + class.Name)
		inner := forClass(class, class.Name, depth+1, bindings)
		obj := types.NewObject(class.Name, r.classProperties(inner, class)...)
		if len(bindings) > 0 {
			obj = obj.WithArgs(args...)
		}

		scope := &Scope{run: r, ctx: inner}
		if t := r.hooks.classType(scope, class, obj); t != nil {
			return t
		}
		if class.Method("jsonSerialize") != nil || r.index.IsSubclassOf(class.Name, "JsonSerializable") {
			display := r.methodReturn(forClass(class, class.Name, depth, bindings), class.Name, args, "jsonSerialize", nil)
			return obj.WithDisplay(display)
		}
		return obj
	}

	if len(bindings) > 0 {
		return build()
	}
	key := lower + "@" + strconv.Itoa(depth)
	return r.cached(r.classes, key, build)
}

// bindTemplates maps the @template names of class to args. A count mismatch
// fails in strict mode and leaves the class unbound otherwise.
func (r *Run) bindTemplates(ctx Context, class *php.PHPClass, args []types.Type, node *tree_sitter.Node) map[string]types.Type {
	if len(args) == 0 {
		return nil
	}
	templates := class.Doc.Templates()
	if len(args) != len(templates) {
		r.fail(ctx, node, fmt.Errorf("%w: %s declares %d template(s), got %d argument(s)",
			ErrTemplateArity, class.Name, len(templates), len(args)))
		return nil
	}
	bindings := make(map[string]types.Type, len(templates))
	for i, tpl := range templates {
		bindings[tpl.Name] = args[i]
	}
	return bindings
}

// inheritedContext returns the context of ancestor as seen from ctx, binding
// its templates through the matching @extends, @implements or @use tag.
func (r *Run) inheritedContext(ctx Context, ancestor *php.PHPClass, tags []phpdoc.Node) Context {
	defer step("resolving @extends")

	var args []types.Type
	for _, tag := range tags {
		generic, ok := tag.(*phpdoc.GenericNode)
		if !ok || !strings.EqualFold(ctx.resolveName(generic.Type.Name), ancestor.Name) {
			continue
		}
		args = r.docTypes(ctx, generic.Args)
		break
	}
	return forClass(ancestor, ctx.staticName(), ctx.Depth, r.bindTemplates(ctx, ancestor, args, nil))
}

// memberContext returns the context for a member declared in owner and reached
// through class bound with args, one level deeper than ctx.
func (r *Run) memberContext(ctx Context, class *php.PHPClass, args []types.Type, owner, static string) Context {
	if static == "" {
		static = class.Name
	}
	start := forClass(class, static, ctx.Depth+1, r.bindTemplates(ctx, class, args, nil))
	if found, ok := r.findOwner(start, class, owner, map[string]bool{}); ok {
		return found
	}
	if ownerClass := r.index.GetClass(owner); ownerClass != nil {
		return forClass(ownerClass, static, ctx.Depth+1, nil)
	}
	return start
}

func (r *Run) findOwner(ctx Context, c *php.PHPClass, owner string, seen map[string]bool) (Context, bool) {
	if strings.EqualFold(c.Name, owner) {
		return ctx, true
	}
	key := strings.ToLower(c.Name)
	if seen[key] {
		return Context{}, false
	}
	seen[key] = true

	visit := func(names []string, tags []phpdoc.Node) (Context, bool) {
		for _, name := range names {
			next := r.index.GetClass(name)
			if next == nil {
				continue
			}
			if found, ok := r.findOwner(r.inheritedContext(ctx, next, tags), next, owner, seen); ok {
				return found, true
			}
		}
		return Context{}, false
	}

	if found, ok := visit(c.Traits, c.Doc.Uses()); ok {
		return found, true
	}
	if c.Parent != "" {
		if found, ok := visit([]string{c.Parent}, c.Doc.Extends()); ok {
			return found, true
		}
	}
	return visit(c.Interfaces, slices.Concat(c.Doc.Implements(), c.Doc.Extends()))
}

// classProperties lists the public instance properties of class: its own in
// declaration order, then those of its traits and ancestors, then the magic
// ones documented with @property.
func (r *Run) classProperties(ctx Context, class *php.PHPClass) []types.Property {
	var props []types.Property
	seen := map[string]bool{}
	visited := map[string]bool{}

	var collect func(ctx Context, c *php.PHPClass)
	collect = func(ctx Context, c *php.PHPClass) {
		key := strings.ToLower(c.Name)
		if visited[key] {
			return
		}
		visited[key] = true

		for _, name := range c.PropertyOrder {
			p := c.Properties[name]
			if seen[name] || p.Static || p.Visibility != php.Public {
				continue
			}
			seen[name] = true
			props = append(props, types.Property{Name: name, Type: r.propertyType(ctx, p)})
		}

		for _, trait := range c.Traits {
			if tc := r.index.GetClass(trait); tc != nil {
				collect(r.inheritedContext(ctx, tc, c.Doc.Uses()), tc)
			}
		}
		if c.Parent != "" {
			if pc := r.index.GetClass(c.Parent); pc != nil {
				collect(r.inheritedContext(ctx, pc, c.Doc.Extends()), pc)
			}
		}

		for _, tag := range c.Doc.Properties() {
			if seen[tag.Name] {
				continue
			}
			seen[tag.Name] = true
			props = append(props, types.Property{Name: tag.Name, Type: r.describe(r.docType(ctx, tag.Type), tag.Description, nil)})
		}
	}
	collect(ctx, class)
	return props
}

// propertyType resolves a property in the context of its declaring class.
func (r *Run) propertyType(ctx Context, p *php.PHPProperty) types.Type {
	compute := func() types.Type {
		defer step("resolving property " + p.Class + "::$" + p.Name)
		if t := r.hooks.propertyType(&Scope{run: r, ctx: ctx}, p); t != nil {
			return t
		}
		r.checkDoc(ctx, p.Doc, nil)

		var t types.Type
		description := ""

		if tag, ok := p.Doc.Var(p.Name); ok && tag.Type != nil {
			t, description = r.docType(ctx, tag.Type), tag.Description
		}
		if t == nil && p.Promoted && ctx.Class != nil {
			if ctor := ctx.Class.Method("__construct"); ctor != nil {
				if tag, ok := ctor.Doc.Param(p.Name); ok && tag.Type != nil {
					t, description = r.docType(ctx, tag.Type), tag.Description
				}
			}
		}

		var declared types.Type
		if p.Type != nil {
			declared = r.docType(ctx, p.Type)
		}
		if t == nil && (declared == nil || isWeak(declared)) {
			t = r.inheritedPropertyDoc(ctx, p.Name)
		}
		if t == nil {
			t = declared
		}
		if t == nil && p.Default != nil {
			t = r.resolve(ctx, p.Default)
		}
		if t == nil && ctx.Class != nil {
			for _, tag := range ctx.Class.Doc.Properties() {
				if tag.Name == p.Name {
					t, description = r.docType(ctx, tag.Type), tag.Description
				}
			}
		}
		if t == nil {
			t = types.Unknown()
		}

		if description == "" {
			description = p.Doc.Text()
		}
		return r.describe(t, description, p.Doc.Examples())
	}

	if len(ctx.Bindings) > 0 {
		return compute()
	}
	key := strings.ToLower(p.Class) + "::" + p.Name + "@" + strconv.Itoa(ctx.Depth) + "@" + strings.ToLower(ctx.staticName())
	return r.cached(r.properties, key, compute)
}

// inheritedPropertyDoc returns the documented type of the nearest ancestor
// declaration of the property, nil when no ancestor documents it.
func (r *Run) inheritedPropertyDoc(ctx Context, name string) types.Type {
	if ctx.Class == nil {
		return nil
	}
	for _, ancestor := range r.index.Ancestors(ctx.Class.Name) {
		p, ok := ancestor.Properties[name]
		if !ok {
			continue
		}
		actx := forClass(ancestor, ctx.staticName(), ctx.Depth, nil)
		if tag, ok := p.Doc.Var(name); ok && tag.Type != nil {
			return r.describe(r.docType(actx, tag.Type), tag.Description, nil)
		}
		if p.Promoted {
			if ctor := ancestor.Method("__construct"); ctor != nil {
				if tag, ok := ctor.Doc.Param(name); ok && tag.Type != nil {
					return r.describe(r.docType(actx, tag.Type), tag.Description, nil)
				}
			}
		}
	}
	return nil
}

// propertyOf resolves property name of className bound to args, whatever its
// visibility. Undeclared names fall back to @property tags.
func (r *Run) propertyOf(ctx Context, className string, args []types.Type, name string, node *tree_sitter.Node) types.Type {
	class := r.index.GetClass(className)
	if class == nil {
		if builtinClasses[strings.ToLower(strings.TrimPrefix(className, "\\"))] {
			return types.Unknown()
		}
		return r.fail(ctx, node, classNotFound(className))
	}

	if class.IsEnum() {
		switch name {
		case "name":
			names := make([]any, 0, len(class.Cases))
			for _, ec := range class.Cases {
				names = append(names, ec.Name)
			}
			return types.Enum(types.KindString, names...)
		case "value":
			if obj, ok := types.Unwrap(r.enumType(class)).(*types.Object); ok && obj.Display() != nil {
				return obj.Display()
			}
		}
	}

	if p := r.index.GetProperty(class.Name, name); p != nil {
		return r.propertyType(r.memberContext(ctx, class, args, p.Class, ""), p)
	}

	for _, c := range append([]*php.PHPClass{class}, r.index.Ancestors(class.Name)...) {
		for _, tag := range c.Doc.Properties() {
			if tag.Name == name {
				mctx := r.memberContext(ctx, class, args, c.Name, "")
				return r.describe(r.docType(mctx, tag.Type), tag.Description, nil)
			}
		}
	}
	return types.Unknown()
}

// enumType is the type of an enum instance: an object displayed as its
// backing scalar. Unbacked enums display as the string of their case names.
func (r *Run) enumType(class *php.PHPClass) types.Type {
	return r.cached(r.enums, strings.ToLower(class.Name), func() types.Type {
		var display *types.Scalar
		switch strings.ToLower(class.EnumBacking) {
		case "int":
			display = types.Integer()
			if r.cfg.CollectEnumValues {
				display = types.Enum(types.KindInteger, r.caseValues(class)...)
			}
		case "string":
			display = types.String()
			if r.cfg.CollectEnumValues {
				display = types.Enum(types.KindString, r.caseValues(class)...)
			}
		default:
			names := make([]any, 0, len(class.Cases))
			for _, ec := range class.Cases {
				names = append(names, ec.Name)
			}
			display = types.Enum(types.KindString, names...)
		}
		return r.describe(types.ObjectStub(class.Name).WithDisplay(display), class.Doc.Text(), nil)
	})
}

func (r *Run) caseValues(class *php.PHPClass) []any {
	values := make([]any, 0, len(class.Cases))
	for _, ec := range class.Cases {
		if v, ok := r.caseValue(class, ec); ok {
			values = append(values, v)
		}
	}
	return values
}

// caseValue returns the backing value of an enum case, or its name for
// unbacked enums.
func (r *Run) caseValue(class *php.PHPClass, ec *php.PHPEnumCase) (any, bool) {
	if class.EnumBacking == "" || ec.Value == nil {
		return ec.Name, true
	}
	return literalValue(r.resolve(forClass(class, class.Name, 0, nil), ec.Value))
}

// enumCase is the type of a single enum case reference.
func (r *Run) enumCase(class *php.PHPClass, ec *php.PHPEnumCase) types.Type {
	value, ok := r.caseValue(class, ec)
	if !ok {
		return r.enumType(class)
	}
	return r.describe(types.ObjectStub(class.Name).WithDisplay(types.Literal(value)), ec.Doc.Text(), nil)
}

// classConstant resolves Class::NAME, enum cases included.
func (r *Run) classConstant(ctx Context, class *php.PHPClass, name string, node *tree_sitter.Node) types.Type {
	if class.IsEnum() {
		if ec := class.Case(name); ec != nil {
			return r.enumCase(class, ec)
		}
	}

	for _, c := range append([]*php.PHPClass{class}, r.index.Ancestors(class.Name)...) {
		if constant, ok := c.Constants[name]; ok {
			return r.constantValue(c, constant)
		}
	}
	if constant := r.index.GetConstant(class.Name, name); constant != nil {
		return r.constantValue(class, constant)
	}
	r.logger.Debug("Unknown class constant",
		zap.String("class", class.Name),
		zap.String("constant", name),
		zap.String("location", ctx.location(node)))
	return types.Unknown()
}

func (r *Run) constantValue(owner *php.PHPClass, constant *php.PHPConstant) types.Type {
	ctx := forClass(owner, owner.Name, 0, nil)
	if tag, ok := constant.Doc.Var(""); ok && tag.Type != nil {
		return r.describe(r.docType(ctx, tag.Type), tag.Description, nil)
	}
	return r.describe(r.resolve(ctx, constant.Value), constant.Doc.Text(), nil)
}

// describe attaches documentation to t when there is any.
func (r *Run) describe(t types.Type, description string, examples []any) types.Type {
	if description != "" {
		t = types.WithDescription(t, description)
	}
	if len(examples) > 0 {
		t = types.WithExamples(t, examples...)
	}
	return t
}

// isWeak reports whether t says little more than "some array" or "some
// value", so a better source should win.
func isWeak(t types.Type) bool {
	switch v := types.WithoutNull(t).(type) {
	case *types.Scalar:
		return v.Kind() == types.KindUnknown
	case *types.Array:
		return !v.IsShape() && types.IsUnknown(v.Item())
	case *types.Object:
		return v.Class() == "" && len(v.Properties()) == 0
	}
	return false
}

// literalValue returns the single value of a literal scalar.
func literalValue(t types.Type) (any, bool) {
	s, ok := types.Unwrap(t).(*types.Scalar)
	if !ok || !s.IsLiteral() {
		return nil, false
	}
	values := s.Values()
	if len(values) != 1 {
		return nil, false
	}
	return values[0], true
}
