package types

import (
	"slices"
)

// Composite is a Union or an Intersection of member types.
type Composite struct {
	kind    Kind
	meta    Meta
	members []Type
}

func (c *Composite) Kind() Kind { return c.kind }

func (c *Composite) Meta() Meta { return c.meta }

func (c *Composite) withMeta(m Meta) Type {
	cp := *c
	cp.meta = m
	return &cp
}

// Members returns the member types as stored (not unwrapped).
func (c *Composite) Members() []Type { return slices.Clone(c.members) }

// NewUnion builds a union without merging its members.
func NewUnion(members ...Type) *Composite {
	return &Composite{kind: KindUnion, members: slices.Clone(members)}
}

// NewIntersection builds an intersection without merging its members.
func NewIntersection(members ...Type) *Composite {
	return &Composite{kind: KindIntersection, members: slices.Clone(members)}
}

// Pending defers the computation of a type until it is needed. The thunk may recurse
// into the resolver; it may run more than once and must return the same result for
// the same inputs.
type Pending struct {
	meta  Meta
	label string
	thunk func() Type
}

func (p *Pending) Kind() Kind { return KindPending }

func (p *Pending) Meta() Meta { return p.meta }

func (p *Pending) withMeta(m Meta) Type {
	c := *p
	c.meta = m
	return &c
}

// Lazy wraps thunk into a pending type. The label is used for debugging output.
func Lazy(label string, thunk func() Type) *Pending {
	return &Pending{label: label, thunk: thunk}
}

// Label returns the debugging label of the pending computation.
func (p *Pending) Label() string { return p.label }

// Resolve runs the deferred computation. The result inherits the pending type's
// description and examples when it has none of its own.
func (p *Pending) Resolve() Type {
	var t Type
	if p.thunk != nil {
		t = p.thunk()
	}
	if t == nil {
		t = Unknown()
	}
	return inherit(t, p.meta)
}
