package infer

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shopware/php-typeinfer/internal/php"
	treesitterhelper "github.com/shopware/php-typeinfer/internal/tree_sitter_helper"
	"github.com/shopware/php-typeinfer/internal/types"
)

var yieldPattern = treesitterhelper.NodeKind("yield_expression")

// Parameter is one parameter a method or function accepts.
type Parameter struct {
	Name     string
	Type     types.Type
	Optional bool
}

// methodReturn resolves what calling method on className (bound to args)
// yields. Hooks are consulted first.
func (r *Run) methodReturn(ctx Context, className string, args []types.Type, method string, call *Call) types.Type {
	if call == nil {
		call = &Call{Class: className, Name: method, Scope: &Scope{run: r, ctx: ctx}}
	}
	var hooked types.Type
	if call.Static {
		hooked = r.hooks.staticCallReturn(call)
	} else {
		hooked = r.hooks.methodCallReturn(call)
	}
	if hooked != nil {
		return hooked
	}

	class := r.index.GetClass(className)
	if class == nil {
		lower := strings.ToLower(strings.TrimPrefix(className, "\\"))
		if builtinClasses[lower] || traversables[lower] || dateTimeClasses[lower] {
			return types.Unknown()
		}
		return r.fail(ctx, call.Node, classNotFound(className))
	}

	m := r.index.GetMethod(class.Name, method)
	if m == nil {
		if r.index.GetMethod(class.Name, "__call") != nil || r.index.GetMethod(class.Name, "__callStatic") != nil {
			return types.Unknown()
		}
		return r.fail(ctx, call.Node, fmt.Errorf("%w: %s::%s", ErrMethodNotFound, class.Name, method))
	}
	defer step("resolving return type of " + m.Class + "::" + m.Name)

	static := call.static
	if static == "" {
		static = class.Name
	}
	mctx := r.memberContext(ctx, class, args, m.Class, static).forFunction(&m.Function)
	if bound := r.callTemplates(ctx, m.Doc.Templates(), &m.Function, call); len(bound) > 0 {
		merged := maps.Clone(mctx.Bindings)
		if merged == nil {
			merged = map[string]types.Type{}
		}
		maps.Copy(merged, bound)
		mctx.Bindings = merged
	}

	key := strings.ToLower(m.Class+"::"+m.Name) + "@" + strconv.Itoa(mctx.Depth) + "@" + strings.ToLower(static)
	return r.functionResult(mctx, key, &m.Function)
}

// functionReturn resolves what calling the free function name yields.
func (r *Run) functionReturn(ctx Context, name string, call *Call) types.Type {
	if call == nil {
		call = &Call{Name: name, Scope: &Scope{run: r, ctx: ctx}}
	}
	if t := r.hooks.functionCallReturn(call); t != nil {
		return t
	}

	fn := r.index.GetFunction(name)
	if fn == nil {
		r.logger.Debug("Function not indexed",
			zap.String("function", name),
			zap.String("location", ctx.location(call.Node)))
		return types.Unknown()
	}
	defer step("resolving return type of " + fn.Name)

	fctx := Context{File: fn.File, Depth: ctx.Depth + 1}.forFunction(&fn.Function)
	if bound := r.callTemplates(ctx, fn.Doc.Templates(), &fn.Function, call); len(bound) > 0 {
		fctx.Bindings = bound
	}

	key := "function:" + strings.ToLower(fn.Name) + "@" + strconv.Itoa(fctx.Depth)
	return r.functionResult(fctx, key, &fn.Function)
}

// functionResult memoizes the return type of fn under key. A function that is
// already being resolved further up the stack yields Unknown.
func (r *Run) functionResult(ctx Context, key string, fn *php.Function) types.Type {
	compute := func() types.Type {
		if !r.begin(key) {
			return types.Unknown()
		}
		defer r.end(key)
		return r.returnType(ctx, fn)
	}
	if len(ctx.Bindings) > 0 {
		return compute()
	}
	return r.cached(r.returns, key, compute)
}

// returnType is the documented return type of fn, else its declared one.
// When neither says more than "some array" or "some value", the returned
// expressions are inferred instead.
func (r *Run) returnType(ctx Context, fn *php.Function) types.Type {
	r.checkDoc(ctx, fn.Doc, fn.Node)

	var documented, declared types.Type
	description := ""
	if tag, ok := fn.Doc.Return(); ok && tag.Type != nil {
		documented = r.docType(ctx, tag.Type)
		description = tag.Description
	}
	if fn.ReturnType != nil {
		declared = r.docType(ctx, fn.ReturnType)
	}

	switch {
	case documented != nil && !isWeak(documented):
		return r.describe(documented, description, nil)
	case declared != nil && !isWeak(declared):
		return r.describe(declared, description, nil)
	}

	fallback := documented
	if fallback == nil {
		fallback = declared
	}
	if ctx.Depth > r.cfg.maxDepth() || r.isGenerator(ctx, fn) {
		if fallback == nil {
			return types.Unknown()
		}
		return r.describe(fallback, description, nil)
	}

	inferred := r.inferReturns(ctx, fn)
	if inferred == nil {
		if fallback == nil {
			return types.Unknown()
		}
		return r.describe(fallback, description, nil)
	}
	return r.describe(inferred, description, nil)
}

func (r *Run) isGenerator(ctx Context, fn *php.Function) bool {
	if fn.Body == nil || fn.Node.Kind() == "arrow_function" {
		return false
	}
	return len(treesitterhelper.FindAllInScope(fn.Body, yieldPattern, fileContent(ctx))) > 0
}

// inferReturns unions the values of the return statements of fn. It returns
// nil when fn has no body and Void when it never returns a value.
func (r *Run) inferReturns(ctx Context, fn *php.Function) types.Type {
	if fn.Body == nil {
		return nil
	}
	if fn.Node.Kind() == "arrow_function" {
		return r.resolve(ctx, fn.Body)
	}

	returns := treesitterhelper.FindAllInScope(fn.Body, treesitterhelper.PHPReturnPattern, fileContent(ctx))
	if len(returns) == 0 {
		return types.Void()
	}
	values := make([]types.Type, 0, len(returns))
	for _, ret := range returns {
		expr := firstNamed(ret)
		if expr == nil {
			values = append(values, types.Void())
			continue
		}
		values = append(values, r.resolve(ctx, expr))
	}
	return valueUnion(values...)
}

// parameterType is the type of parameter p of fn inside fn's body: the
// @param documentation, else the declared type, else the default value.
func (r *Run) parameterType(ctx Context, fn *php.Function, p *php.PHPParameter) types.Type {
	var t types.Type
	description := ""
	if tag, ok := fn.Doc.Param(p.Name); ok && tag.Type != nil {
		t = r.docType(ctx, tag.Type)
		description = tag.Description
	}
	if t == nil && p.Type != nil {
		t = r.docType(ctx, p.Type)
	}

	defaultNull := p.Default != nil && p.Default.Kind() == "null"
	switch {
	case t == nil && p.Default != nil && !defaultNull:
		t = widenLiterals(r.resolve(ctx, p.Default))
	case t == nil:
		t = types.Unknown()
	case defaultNull && !types.IsNullable(t) && !types.IsUnknown(t):
		t = types.Union(t, types.Null())
	}

	if p.Variadic {
		t = types.List(t)
	}
	return r.describe(t, description, nil)
}

// ParameterTypes lists the parameters method of class accepts. Params hooks
// may replace the list.
func (r *Run) ParameterTypes(class, method string) ([]Parameter, error) {
	return guard(r, func() []Parameter {
		ctx := Context{}
		c := r.index.GetClass(class)
		if c == nil {
			r.fail(ctx, nil, classNotFound(class))
			return nil
		}
		m := r.index.GetMethod(c.Name, method)
		if m == nil {
			r.fail(ctx, nil, fmt.Errorf("%w: %s::%s", ErrMethodNotFound, c.Name, method))
			return nil
		}

		mctx := r.memberContext(ctx, c, nil, m.Class, c.Name).forFunction(&m.Function)
		call := &Call{Class: c.Name, Name: m.Name, Static: m.Static, Scope: &Scope{run: r, ctx: mctx}}
		if params := r.hooks.params(call); params != nil {
			for i := range params {
				params[i].Type = r.seal(params[i].Type)
			}
			return params
		}

		params := make([]Parameter, 0, len(m.Params))
		for _, p := range m.Params {
			params = append(params, Parameter{
				Name:     p.Name,
				Type:     r.seal(r.parameterType(mctx, &m.Function, p)),
				Optional: p.Default != nil || p.Variadic,
			})
		}
		return params
	})
}

// ThrownTypes lists what method of class may throw: thrown expressions and
// @throws documentation, each passed through the throw hooks.
func (r *Run) ThrownTypes(class, method string) ([]types.Type, error) {
	return guard(r, func() []types.Type {
		ctx := Context{}
		c := r.index.GetClass(class)
		if c == nil {
			r.fail(ctx, nil, classNotFound(class))
			return nil
		}
		m := r.index.GetMethod(c.Name, method)
		if m == nil {
			r.fail(ctx, nil, fmt.Errorf("%w: %s::%s", ErrMethodNotFound, c.Name, method))
			return nil
		}

		mctx := r.memberContext(ctx, c, nil, m.Class, c.Name).forFunction(&m.Function)
		scope := &Scope{run: r, ctx: mctx}

		var thrown []types.Type
		seen := map[string]bool{}
		add := func(t types.Type) {
			for _, member := range types.Members(t) {
				if hooked := r.hooks.thrownType(scope, member); hooked != nil {
					member = hooked
				}
				member = r.seal(member)
				key := types.Render(member)
				if seen[key] {
					continue
				}
				seen[key] = true
				thrown = append(thrown, member)
			}
		}

		if m.Body != nil {
			for _, node := range treesitterhelper.FindAllInScope(m.Body, treesitterhelper.PHPThrowPattern, fileContent(mctx)) {
				if expr := firstNamed(node); expr != nil {
					add(r.resolve(mctx, expr))
				}
			}
		}
		for _, tag := range m.Doc.Throws() {
			add(r.describe(r.docType(mctx, tag.Type), tag.Description, nil))
		}
		return thrown
	})
}
