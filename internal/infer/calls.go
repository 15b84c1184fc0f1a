package infer

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/phpdoc"
	"github.com/shopware/php-typeinfer/internal/types"
)

// callArgs collects the arguments of the call expression node.
func (r *Run) callArgs(scope *Scope, node *tree_sitter.Node) []Argument {
	list := node.ChildByFieldName("arguments")
	if list == nil {
		for _, child := range namedChildren(node) {
			if child.Kind() == "arguments" {
				list = child
			}
		}
	}
	if list == nil {
		return nil
	}

	var args []Argument
	for _, child := range namedChildren(list) {
		if child.Kind() != "argument" {
			continue
		}
		arg := Argument{scope: scope}
		if name := child.ChildByFieldName("name"); name != nil {
			arg.Name = scope.Text(name)
		}
		value := lastNamed(child)
		if value != nil && value.Kind() == "variadic_unpacking" {
			arg.Spread = true
			value = firstNamed(value)
		}
		arg.Node = value
		args = append(args, arg)
	}
	return args
}

// isFirstClassCallable reports whether node is written as f(...).
func isFirstClassCallable(node *tree_sitter.Node) bool {
	list := node.ChildByFieldName("arguments")
	if list == nil {
		return false
	}
	for _, child := range namedChildren(list) {
		if child.Kind() == "variadic_placeholder" {
			return true
		}
	}
	return false
}

func (r *Run) methodCall(ctx Context, node *tree_sitter.Node) types.Type {
	if isFirstClassCallable(node) {
		return types.Callable()
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || nameNode.Kind() != "name" {
		return types.Unknown()
	}
	method := ctx.text(nameNode)
	receiver := r.resolve(ctx, node.ChildByFieldName("object"))

	scope := &Scope{run: r, ctx: ctx}
	args := r.callArgs(scope, node)

	var results []types.Type
	nullable := false
	for _, m := range types.Members(receiver) {
		switch v := m.(type) {
		case *types.Object:
			if v.Class() == "" || strings.EqualFold(v.Class(), "stdClass") {
				results = append(results, types.Unknown())
				continue
			}
			call := &Call{Class: v.Class(), Name: method, Receiver: v, Node: node, Args: args, Scope: scope}
			results = append(results, r.methodReturn(ctx, v.Class(), v.Args(), method, call))
		default:
			if m.Kind() == types.KindNull {
				nullable = true
				continue
			}
			results = append(results, types.Unknown())
		}
	}

	if len(results) == 0 {
		if nullable {
			return types.Null()
		}
		return types.Unknown()
	}
	t := types.Union(results...)
	if nullable && node.Kind() == "nullsafe_member_call_expression" {
		t = types.Union(t, types.Null())
	}
	return t
}

func (r *Run) staticCall(ctx Context, node *tree_sitter.Node) types.Type {
	if isFirstClassCallable(node) {
		return types.Callable()
	}
	scopeNode := node.ChildByFieldName("scope")
	nameNode := node.ChildByFieldName("name")
	if scopeNode == nil || nameNode == nil || nameNode.Kind() != "name" {
		return types.Unknown()
	}
	className := r.scopeClass(ctx, scopeNode)
	if className == "" {
		return types.Unknown()
	}
	method := ctx.text(nameNode)

	static := className
	var args []types.Type
	switch strings.ToLower(ctx.text(scopeNode)) {
	case "self", "static":
		static = ctx.staticName()
		if ctx.Class != nil {
			args = r.boundArgs(ctx, ctx.Class)
		}
	case "parent":
		static = ctx.staticName()
	}

	if class := r.index.GetClass(className); class != nil && class.IsEnum() {
		switch strings.ToLower(method) {
		case "from":
			return r.enumType(class)
		case "tryfrom":
			return types.Union(r.enumType(class), types.Null())
		case "cases":
			return types.List(r.enumType(class))
		}
	}

	scope := &Scope{run: r, ctx: ctx}
	call := &Call{
		Class:  className,
		Name:   method,
		Static: true,
		Node:   node,
		Args:   r.callArgs(scope, node),
		Scope:  scope,
		static: static,
	}
	return r.methodReturn(ctx, className, args, method, call)
}

func (r *Run) functionCall(ctx Context, node *tree_sitter.Node) types.Type {
	if isFirstClassCallable(node) {
		return types.Callable()
	}
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return types.Unknown()
	}

	scope := &Scope{run: r, ctx: ctx}
	switch fnNode.Kind() {
	case "name", "qualified_name":
		call := &Call{
			Name:  r.functionName(ctx, ctx.text(fnNode)),
			Node:  node,
			Args:  r.callArgs(scope, node),
			Scope: scope,
		}
		return r.functionReturn(ctx, call.Name, call)
	case "parenthesized_expression":
		if inner := firstNamed(fnNode); inner != nil && (inner.Kind() == "anonymous_function" || inner.Kind() == "arrow_function") {
			return r.callableReturn(ctx, inner, nil)
		}
	}

	for _, m := range types.Members(r.resolve(ctx, fnNode)) {
		if obj, ok := m.(*types.Object); ok && obj.Class() != "" && r.index.GetMethod(obj.Class(), "__invoke") != nil {
			return r.methodReturn(ctx, obj.Class(), obj.Args(), "__invoke", nil)
		}
	}
	return types.Unknown()
}

// functionName resolves a called function name the way PHP does: imported
// or qualified names first, then the current namespace, then the global one.
func (r *Run) functionName(ctx Context, raw string) string {
	resolver := ctx.resolver()
	name := resolver.ResolveFunction(raw)
	if name == raw && !strings.Contains(raw, "\\") {
		if namespaced := resolver.Namespaced(raw); namespaced != raw && r.index.GetFunction(namespaced) != nil {
			return namespaced
		}
	}
	return name
}

func (r *Run) newExpression(ctx Context, node *tree_sitter.Node) types.Type {
	target := firstNamed(node)
	if target == nil {
		return types.Unknown()
	}
	if target.Kind() == "anonymous_class" {
		return types.NewObject("")
	}

	className := r.scopeClass(ctx, target)
	if className == "" {
		return types.Unknown()
	}
	scope := &Scope{run: r, ctx: ctx}
	call := &Call{Class: className, Name: "__construct", Node: node, Args: r.callArgs(scope, node), Scope: scope}
	return r.classType(ctx, className, r.constructorBindings(ctx, className, call), node)
}

// constructorBindings infers the template arguments of a class from the
// arguments passed to its constructor.
func (r *Run) constructorBindings(ctx Context, className string, call *Call) []types.Type {
	class := r.index.GetClass(className)
	if class == nil {
		return nil
	}
	templates := class.Doc.Templates()
	if len(templates) == 0 {
		return nil
	}
	ctor := r.index.GetMethod(class.Name, "__construct")
	if ctor == nil {
		return nil
	}

	bound := r.callTemplates(ctx, templates, &ctor.Function, call)
	if len(bound) == 0 {
		return nil
	}
	args := make([]types.Type, len(templates))
	for i, tpl := range templates {
		if t, ok := bound[tpl.Name]; ok {
			args[i] = t
		} else {
			args[i] = types.Unknown()
		}
	}
	return args
}

// callTemplates binds the templates of fn from the arguments of call by
// matching them against the documented parameter types.
func (r *Run) callTemplates(ctx Context, templates []phpdoc.TemplateTag, fn *php.Function, call *Call) map[string]types.Type {
	if call == nil || len(templates) == 0 {
		return nil
	}
	names := make(map[string]bool, len(templates))
	for _, tpl := range templates {
		names[tpl.Name] = true
	}

	out := map[string]types.Type{}
	for i, p := range fn.Params {
		tag, ok := fn.Doc.Param(p.Name)
		if !ok || tag.Type == nil {
			continue
		}
		arg, ok := call.Arg(i, p.Name)
		if !ok {
			continue
		}
		r.matchTemplate(ctx, names, tag.Type, arg.Type(), out)
	}
	return out
}

func (r *Run) matchTemplate(ctx Context, names map[string]bool, node phpdoc.Node, arg types.Type, out map[string]types.Type) {
	switch n := node.(type) {
	case *phpdoc.IdentifierNode:
		if names[n.Name] {
			if _, done := out[n.Name]; !done {
				out[n.Name] = widenLiterals(arg)
			}
		}
	case *phpdoc.NullableNode:
		r.matchTemplate(ctx, names, n.Type, types.WithoutNull(arg), out)
	case *phpdoc.UnionNode:
		for _, member := range n.Types {
			r.matchTemplate(ctx, names, member, types.WithoutNull(arg), out)
		}
	case *phpdoc.ArrayNode:
		r.matchTemplate(ctx, names, n.Type, iterationValue(arg), out)
	case *phpdoc.GenericNode:
		lower := strings.ToLower(n.Type.Name)
		switch {
		case lower == "class-string" && len(n.Args) == 1:
			id, ok := n.Args[0].(*phpdoc.IdentifierNode)
			if !ok || !names[id.Name] {
				return
			}
			var classes []types.Type
			for _, m := range types.Members(arg) {
				if s, ok := m.(*types.Scalar); ok && s.Kind() == types.KindClassString && s.Class() != "" {
					classes = append(classes, r.classType(ctx, s.Class(), nil, nil))
				}
			}
			if len(classes) > 0 {
				out[id.Name] = types.Union(classes...)
			}
		case len(n.Args) == 1:
			r.matchTemplate(ctx, names, n.Args[0], iterationValue(arg), out)
		case len(n.Args) == 2:
			r.matchTemplate(ctx, names, n.Args[0], iterationKey(arg), out)
			r.matchTemplate(ctx, names, n.Args[1], iterationValue(arg), out)
		}
	}
}

// widenLiterals drops literal values so inferred template arguments describe
// the kind of value rather than the one passed.
func widenLiterals(t types.Type) types.Type {
	members := types.Members(t)
	out := make([]types.Type, len(members))
	for i, m := range members {
		if s, ok := m.(*types.Scalar); ok && s.Kind() != types.KindClassString {
			out[i] = s.Widen()
			continue
		}
		out[i] = m
	}
	return types.Union(out...)
}

// callableReturn returns what calling the callable expression node yields.
// Closure parameters without a declared type take the types in params.
func (r *Run) callableReturn(ctx Context, node *tree_sitter.Node, params []types.Type) types.Type {
	if node == nil || ctx.File == nil {
		return types.Unknown()
	}
	switch node.Kind() {
	case "anonymous_function", "arrow_function":
		fn := ctx.File.Closure(node, ctx.resolver())
		vars := map[string]types.Type{}
		for i, p := range fn.Params {
			if i >= len(params) || p.Variadic {
				break
			}
			if _, documented := fn.Doc.Param(p.Name); documented {
				continue
			}
			if p.Type != nil && !isWeak(r.docType(ctx, p.Type)) {
				continue
			}
			vars[p.Name] = params[i]
		}
		inner := ctx.withVars(vars)
		inner.Function = fn
		inner.Body = node
		return r.returnType(inner, fn)
	case "string", "encapsed_string":
		value, ok := literalValue(r.resolve(ctx, node))
		name, isString := value.(string)
		if !ok || !isString {
			return types.Unknown()
		}
		if class, method, found := strings.Cut(name, "::"); found {
			return r.methodReturn(ctx, ctx.resolveName(class), nil, method, nil)
		}
		return r.functionReturn(ctx, strings.TrimPrefix(name, "\\"), nil)
	case "array_creation_expression":
		elements := namedChildren(node)
		if len(elements) != 2 {
			return types.Unknown()
		}
		value, ok := literalValue(r.resolve(ctx, firstNamed(elements[1])))
		method, isString := value.(string)
		if !ok || !isString {
			return types.Unknown()
		}
		for _, m := range types.Members(r.resolve(ctx, firstNamed(elements[0]))) {
			switch v := m.(type) {
			case *types.Object:
				if v.Class() != "" {
					return r.methodReturn(ctx, v.Class(), v.Args(), method, nil)
				}
			case *types.Scalar:
				if v.Kind() == types.KindClassString && v.Class() != "" {
					return r.methodReturn(ctx, v.Class(), nil, method, nil)
				}
			}
		}
	}
	return types.Unknown()
}
