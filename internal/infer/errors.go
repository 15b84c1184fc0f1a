package infer

import (
	"errors"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/shopware/php-typeinfer/internal/types"
)

var (
	ErrClassNotFound  = errors.New("class not found")
	ErrTemplateArity  = errors.New("template argument count mismatch")
	ErrDocSyntax      = errors.New("invalid documented type")
	ErrMethodNotFound = errors.New("method not found")
)

// Error is returned by Run entry points in strict mode. Steps lists what the
// resolver was doing, outermost first, and Location points at the innermost
// file:line involved.
type Error struct {
	Steps    []string
	Location string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	for _, step := range e.Steps {
		b.WriteString(step)
		b.WriteString(": ")
	}
	if e.Location != "" {
		b.WriteString(e.Location)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// bailout carries a strict mode failure up the resolver stack.
type bailout struct {
	err *Error
}

// step annotates a bailout passing through the deferring frame with desc.
// Use it as `defer step("resolving array type")`.
func step(desc string) {
	if v := recover(); v != nil {
		if b, ok := v.(bailout); ok {
			b.err.Steps = append([]string{desc}, b.err.Steps...)
		}
		panic(v)
	}
}

// catch converts a bailout into an error. Other panics are re-raised.
func catch(errp *error) {
	if v := recover(); v != nil {
		b, ok := v.(bailout)
		if !ok {
			panic(v)
		}
		*errp = b.err
	}
}

// fail reports err at node. In strict mode it unwinds to the entry point,
// otherwise the failure is logged and Unknown is returned.
func (r *Run) fail(ctx Context, node *tree_sitter.Node, err error) types.Type {
	location := ctx.location(node)
	if r.cfg.Strict {
		panic(bailout{err: &Error{Location: location, Err: err}})
	}
	r.logger.Debug("Inference degraded to unknown",
		zap.String("location", location),
		zap.Error(err))
	return types.Unknown()
}

func classNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrClassNotFound, strings.TrimPrefix(name, "\\"))
}
