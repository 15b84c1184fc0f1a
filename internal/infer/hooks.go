package infer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/types"
)

// MethodCallReturnHook decides what an instance method call returns.
type MethodCallReturnHook interface {
	MethodCallReturn(call *Call) types.Type
}

// StaticCallReturnHook decides what a static method call returns.
type StaticCallReturnHook interface {
	StaticCallReturn(call *Call) types.Type
}

// FunctionCallReturnHook decides what a free function call returns.
type FunctionCallReturnHook interface {
	FunctionCallReturn(call *Call) types.Type
}

// MethodCallParamsHook describes the parameters an instance method accepts.
type MethodCallParamsHook interface {
	MethodCallParams(call *Call) []Parameter
}

// StaticCallParamsHook describes the parameters a static method accepts.
type StaticCallParamsHook interface {
	StaticCallParams(call *Call) []Parameter
}

// FunctionCallParamsHook describes the parameters a free function accepts.
type FunctionCallParamsHook interface {
	FunctionCallParams(call *Call) []Parameter
}

// ClassHook replaces the object type built for a class.
type ClassHook interface {
	ClassType(scope *Scope, class *php.PHPClass, object *types.Object) types.Type
}

// PropertyHook replaces the type of a declared property.
type PropertyHook interface {
	PropertyType(scope *Scope, property *php.PHPProperty) types.Type
}

// ThrowHook maps a thrown type to the type reported for it. Returning nil
// leaves the type to the next hook.
type ThrowHook interface {
	ThrownType(scope *Scope, thrown types.Type) types.Type
}

// Call describes a call site handed to hooks. Node is nil when the call is
// resolved without a call site, as for MethodReturnType.
type Call struct {
	Class    string
	Name     string
	Static   bool
	Receiver types.Type
	Node     *tree_sitter.Node
	Args     []Argument
	Scope    *Scope

	// static is the class static:: refers to inside the callee.
	static string
}

// Arg returns the argument at position i or, when it was passed by name,
// the one called name.
func (c *Call) Arg(i int, name string) (Argument, bool) {
	if name != "" {
		for _, a := range c.Args {
			if a.Name == name {
				return a, true
			}
		}
	}
	if i < 0 || i >= len(c.Args) || c.Args[i].Name != "" {
		return Argument{}, false
	}
	return c.Args[i], true
}

// ArgType resolves the argument at position i (or named name), Unknown when
// it was not passed.
func (c *Call) ArgType(i int, name string) types.Type {
	a, ok := c.Arg(i, name)
	if !ok {
		return types.Unknown()
	}
	return a.Type()
}

// Argument is one argument of a call site.
type Argument struct {
	Name   string
	Node   *tree_sitter.Node
	Spread bool
	scope  *Scope
}

// Type resolves the argument expression.
func (a Argument) Type() types.Type {
	if a.scope == nil || a.Node == nil {
		return types.Unknown()
	}
	return a.scope.Resolve(a.Node)
}

// Registry holds the hooks of a run in consultation order.
type Registry struct {
	hooks []any
}

func NewRegistry(hooks ...any) *Registry {
	reg := &Registry{}
	for _, h := range hooks {
		reg.Register(h)
	}
	return reg
}

// Register appends hook. Values implementing none of the hook interfaces
// are ignored.
func (reg *Registry) Register(hook any) {
	if hook == nil {
		return
	}
	reg.hooks = append(reg.hooks, hook)
}

// consult asks every hook implementing H in order and returns the first
// non-nil answer.
func consult[H any](reg *Registry, ask func(H) types.Type) types.Type {
	if reg == nil {
		return nil
	}
	for _, h := range reg.hooks {
		hook, ok := h.(H)
		if !ok {
			continue
		}
		if answer := ask(hook); answer != nil {
			return answer
		}
	}
	return nil
}

func (reg *Registry) classType(scope *Scope, class *php.PHPClass, obj *types.Object) types.Type {
	return consult(reg, func(h ClassHook) types.Type { return h.ClassType(scope, class, obj) })
}

func (reg *Registry) propertyType(scope *Scope, p *php.PHPProperty) types.Type {
	return consult(reg, func(h PropertyHook) types.Type { return h.PropertyType(scope, p) })
}

func (reg *Registry) methodCallReturn(call *Call) types.Type {
	return consult(reg, func(h MethodCallReturnHook) types.Type { return h.MethodCallReturn(call) })
}

func (reg *Registry) staticCallReturn(call *Call) types.Type {
	return consult(reg, func(h StaticCallReturnHook) types.Type { return h.StaticCallReturn(call) })
}

func (reg *Registry) functionCallReturn(call *Call) types.Type {
	return consult(reg, func(h FunctionCallReturnHook) types.Type { return h.FunctionCallReturn(call) })
}

func (reg *Registry) thrownType(scope *Scope, thrown types.Type) types.Type {
	return consult(reg, func(h ThrowHook) types.Type { return h.ThrownType(scope, thrown) })
}

// params asks the params hooks matching the kind of call.
func (reg *Registry) params(call *Call) []Parameter {
	if reg == nil {
		return nil
	}
	for _, h := range reg.hooks {
		var params []Parameter
		switch {
		case call.Class == "":
			if hook, ok := h.(FunctionCallParamsHook); ok {
				params = hook.FunctionCallParams(call)
			}
		case call.Static:
			if hook, ok := h.(StaticCallParamsHook); ok {
				params = hook.StaticCallParams(call)
			}
		default:
			if hook, ok := h.(MethodCallParamsHook); ok {
				params = hook.MethodCallParams(call)
			}
		}
		if params != nil {
			return params
		}
	}
	return nil
}

// Factory creates the hook value of an extension.
type Factory func() any

var ErrUnknownExtension = errors.New("unknown extension")

var (
	catalogMu sync.Mutex
	catalog   = map[string]Factory{}
	loaded    = map[string][]any{}
)

// RegisterExtension adds an extension factory to the process wide catalog.
// Registering an id twice replaces the factory.
func RegisterExtension(id string, factory Factory) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	catalog[id] = factory
	clear(loaded)
}

// LoadExtensions instantiates the extensions named by ids. The result for a
// given list is created once and shared.
func LoadExtensions(ids []string) ([]any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	key := strings.Join(ids, "\x00")

	catalogMu.Lock()
	defer catalogMu.Unlock()
	if hooks, ok := loaded[key]; ok {
		return hooks, nil
	}

	hooks := make([]any, 0, len(ids))
	for _, id := range ids {
		factory, ok := catalog[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExtension, id)
		}
		hooks = append(hooks, factory())
	}
	loaded[key] = hooks
	return hooks, nil
}
