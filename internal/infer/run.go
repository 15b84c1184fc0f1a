// Package infer statically infers the structural types of PHP expressions,
// variables, properties and function results. A Run holds the caches of one
// documentation generation pass; create one per pass and Reset it between
// independent passes.
package infer

import (
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/shopware/php-typeinfer/internal/php"
	treesitterhelper "github.com/shopware/php-typeinfer/internal/tree_sitter_helper"
	"github.com/shopware/php-typeinfer/internal/types"
)

// Run is the per-generation registry. Entry points are safe for concurrent use
// but are serialized.
type Run struct {
	index  *php.Index
	cfg    Config
	logger *zap.Logger
	hooks  *Registry
	extra  []any

	mu sync.Mutex

	cacheMu    sync.Mutex
	classes    map[string]types.Type
	properties map[string]types.Type
	enums      map[string]types.Type
	returns    map[string]types.Type
	flows      map[flowKey]*flowIndex
	inProgress map[string]bool
}

type Option func(*Run)

// WithLogger sets the logger degraded resolutions are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHooks registers hooks consulted before the configured extensions and
// the built-in hooks.
func WithHooks(hooks ...any) Option {
	return func(r *Run) {
		r.extra = append(r.extra, hooks...)
	}
}

// NewRun creates a run over index. It fails when cfg names an extension that
// is not in the catalog.
func NewRun(index *php.Index, cfg Config, opts ...Option) (*Run, error) {
	r := &Run{
		index:  index,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	extensions, err := LoadExtensions(cfg.Extensions)
	if err != nil {
		return nil, err
	}

	hooks := append([]any{}, r.extra...)
	hooks = append(hooks, extensions...)
	hooks = append(hooks, builtinHooks()...)
	r.hooks = NewRegistry(hooks...)
	r.Reset()
	return r, nil
}

// Config returns the configuration of the run.
func (r *Run) Config() Config { return r.cfg }

// Reset drops every cached result.
func (r *Run) Reset() {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.classes = map[string]types.Type{}
	r.properties = map[string]types.Type{}
	r.enums = map[string]types.Type{}
	r.returns = map[string]types.Type{}
	r.flows = map[flowKey]*flowIndex{}
	r.inProgress = map[string]bool{}
}

// Resolve infers the type of the expression node in file.
func (r *Run) Resolve(file *php.File, node *tree_sitter.Node) (types.Type, error) {
	return r.enter(func() types.Type {
		return r.resolve(r.contextAt(file, node), node)
	})
}

// ResolveVariable infers the type variable name has when read at node.
func (r *Run) ResolveVariable(file *php.File, name string, node *tree_sitter.Node) (types.Type, error) {
	return r.enter(func() types.Type {
		return r.resolveVariable(r.contextAt(file, node), strings.TrimPrefix(name, "$"), node)
	})
}

// ClassType returns the object type of class, bound to args when the class
// declares templates.
func (r *Run) ClassType(class string, args ...types.Type) (types.Type, error) {
	return r.enter(func() types.Type {
		return r.classType(Context{}, class, args, nil)
	})
}

// PropertyType returns the type of a property of class, inherited ones
// included.
func (r *Run) PropertyType(class, property string) (types.Type, error) {
	return r.enter(func() types.Type {
		return r.propertyOf(Context{}, class, nil, property, nil)
	})
}

// MethodReturnType returns what calling method on an instance of class yields.
func (r *Run) MethodReturnType(class, method string) (types.Type, error) {
	return r.enter(func() types.Type {
		return r.methodReturn(Context{}, class, nil, method, nil)
	})
}

// FunctionReturnType returns what calling the named free function yields.
func (r *Run) FunctionReturnType(name string) (types.Type, error) {
	return r.enter(func() types.Type {
		return r.functionReturn(Context{}, name, nil)
	})
}

func (r *Run) enter(fn func() types.Type) (types.Type, error) {
	return guard(r, func() types.Type {
		return r.seal(fn())
	})
}

// seal materializes t for a caller outside the run. Pending types nested
// deeper than the materialization limit are rewrapped so that resolving them
// later goes through an entry point of its own.
func (r *Run) seal(t types.Type) types.Type {
	return types.DeepFunc(t, types.DefaultDeepLimit, r.detach)
}

func (r *Run) detach(p *types.Pending) types.Type {
	return types.Lazy(p.Label(), func() types.Type {
		t, err := r.enter(p.Resolve)
		if err != nil {
			r.logger.Debug("Deferred resolution failed",
				zap.String("type", p.Label()),
				zap.Error(err))
			return types.Unknown()
		}
		return t
	})
}

// guard runs fn as an entry point: serialized with other entry points and
// with strict mode failures returned as errors.
func guard[T any](r *Run, fn func() T) (result T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer catch(&err)

	return fn(), nil
}

// contextAt builds the context for code at node: the enclosing class, the
// enclosing function and the variable scope.
func (r *Run) contextAt(file *php.File, node *tree_sitter.Node) Context {
	ctx := Context{File: file}
	if file == nil {
		return ctx
	}
	ctx.Body = file.Root()

	for _, class := range file.Classes {
		if treesitterhelper.Contains(class.Node, node) {
			ctx.Class = class
		}
	}

	scope := treesitterhelper.EnclosingScope(node, file.Content)
	if scope != nil && (scope.Kind() == "class_declaration" || scope.Kind() == "anonymous_class") {
		scope = nil
	}
	if scope == nil {
		for _, fn := range file.Functions {
			if treesitterhelper.Contains(fn.Node, node) {
				ctx.Function = &fn.Function
			}
		}
		return ctx
	}

	ctx.Body = scope
	if ctx.Class != nil {
		for _, method := range ctx.Class.Methods {
			if treesitterhelper.Contains(method.Node, scope) {
				ctx.Function = &method.Function
			}
		}
	}
	for _, fn := range file.Functions {
		if treesitterhelper.Contains(fn.Node, scope) {
			ctx.Function = &fn.Function
		}
	}
	return ctx
}

// lazy defers fn until the type is unwrapped. A successful result is kept;
// a strict mode failure is raised again on the next unwrap. Thunks only run
// while an entry point holds r.mu, since seal rewraps every pending type that
// leaves the run.
func (r *Run) lazy(label string, fn func() types.Type) types.Type {
	var done bool
	var result types.Type
	return types.Lazy(label, func() types.Type {
		if done {
			return result
		}
		result = fn()
		done = true
		return result
	})
}

// cached returns the entry of cache under key, computing and storing it when
// missing.
func (r *Run) cached(cache map[string]types.Type, key string, compute func() types.Type) types.Type {
	r.cacheMu.Lock()
	t, ok := cache[key]
	r.cacheMu.Unlock()
	if ok {
		return t
	}

	t = compute()

	r.cacheMu.Lock()
	cache[key] = t
	r.cacheMu.Unlock()
	return t
}

// begin marks key as in progress. It returns false when key is already being
// computed further up the stack.
func (r *Run) begin(key string) bool {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if r.inProgress[key] {
		return false
	}
	r.inProgress[key] = true
	return true
}

func (r *Run) end(key string) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	delete(r.inProgress, key)
}
