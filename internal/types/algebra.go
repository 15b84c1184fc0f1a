package types

import "sort"

// Unwrap collapses pending types and singleton unions or intersections, and flattens
// nested composites of the same kind. Empty composites become Unknown. A collapsed
// member inherits the wrapper's description and examples when it has none.
//
// Unwrap only works on the top level of the tree (and on composite members); use
// Deep to materialize a whole tree.
func Unwrap(t Type) Type {
	switch v := t.(type) {
	case nil:
		return Unknown()
	case *Pending:
		return Unwrap(v.Resolve())
	case *Composite:
		members := flatten(v.kind, v.members)
		switch len(members) {
		case 0:
			return inherit(Unknown(), v.meta)
		case 1:
			return inherit(members[0], v.meta)
		}
		return &Composite{kind: v.kind, meta: v.meta, members: members}
	}
	return t
}

func flatten(kind Kind, members []Type) []Type {
	out := make([]Type, 0, len(members))
	for _, m := range members {
		u := Unwrap(m)
		if c, ok := u.(*Composite); ok && c.kind == kind && c.meta.isZero() {
			out = append(out, c.members...)
			continue
		}
		out = append(out, u)
	}
	return out
}

// MergeMembers deduplicates the members of a union (or intersection) pairwise
// until no two members merge. Members are merged narrowest first, so the result
// does not depend on their order; merged members keep the position of their
// first contributor. Members that cannot be merged structurally stay distinct.
func MergeMembers(members []Type, asIntersection bool) []Type {
	type positioned struct {
		t   Type
		pos int
	}

	pending := make([]positioned, len(members))
	for i, m := range members {
		pending[i] = positioned{t: Unwrap(m), pos: i}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return mergeRank(pending[i].t) < mergeRank(pending[j].t)
	})

	out := make([]positioned, 0, len(pending))
	for _, p := range pending {
		for merged := true; merged; {
			merged = false
			for i, existing := range out {
				first, second := existing, p
				if p.pos < existing.pos {
					first, second = p, existing
				}
				r, ok := mergePair(first.t, second.t, asIntersection)
				if !ok {
					continue
				}
				p = positioned{t: r, pos: first.pos}
				out = append(out[:i], out[i+1:]...)
				merged = true
				break
			}
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	result := make([]Type, len(out))
	for i, p := range out {
		result[i] = p.t
	}
	return result
}

// mergeRank orders scalars along the widening chain int, float, number,
// class-string, string. Everything else ranks after them.
func mergeRank(t Type) int {
	s, ok := t.(*Scalar)
	if !ok {
		return 10
	}
	switch s.kind {
	case KindInteger:
		return 0
	case KindFloat:
		return 1
	case KindNumber:
		return 2
	case KindClassString:
		return 3
	case KindString:
		return 4
	}
	return 5
}

// Union combines types into a merged union. Nested unions are flattened first, so
// Union(Union(a, b), c) merges all three members together.
func Union(ts ...Type) Type {
	return combine(KindUnion, ts)
}

// Intersect combines types into a merged intersection.
func Intersect(ts ...Type) Type {
	return combine(KindIntersection, ts)
}

func combine(kind Kind, ts []Type) Type {
	var members []Type
	for _, t := range ts {
		if t == nil {
			continue
		}
		u := Unwrap(t)
		if c, ok := u.(*Composite); ok && c.kind == kind {
			members = append(members, c.members...)
			continue
		}
		members = append(members, u)
	}
	merged := MergeMembers(members, kind == KindIntersection)
	switch len(merged) {
	case 0:
		return Unknown()
	case 1:
		return merged[0]
	}
	return &Composite{kind: kind, members: merged}
}

func mergeTypes(a, b Type, asIntersection bool) Type {
	members := MergeMembers([]Type{a, b}, asIntersection)
	if len(members) == 1 {
		return members[0]
	}
	if asIntersection {
		return &Composite{kind: KindIntersection, members: members}
	}
	return &Composite{kind: KindUnion, members: members}
}

func mergeMeta(a, b Meta) Meta {
	m := a
	if m.Description == "" {
		m.Description = b.Description
	}
	if len(m.Examples) == 0 {
		m.Examples = b.Examples
	}
	m.Optional = a.Optional || b.Optional
	return m
}

func mergePair(a, b Type, asIntersection bool) (Type, bool) {
	switch x := a.(type) {
	case *Scalar:
		y, ok := b.(*Scalar)
		if !ok {
			return nil, false
		}
		return mergeScalars(x, y)
	case *Array:
		y, ok := b.(*Array)
		if !ok {
			return nil, false
		}
		return mergeArrays(x, y, asIntersection)
	case *Object:
		y, ok := b.(*Object)
		if !ok {
			return nil, false
		}
		return mergeObjects(x, y, asIntersection)
	}
	return nil, false
}

// widenedKind returns the common supertype of two scalar kinds, if any.
func widenedKind(a, b Kind) (Kind, bool) {
	if a == b {
		return a, true
	}
	pair := func(x, y Kind) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	switch {
	case pair(KindInteger, KindFloat):
		return KindFloat, true
	case pair(KindInteger, KindNumber), pair(KindFloat, KindNumber):
		return KindNumber, true
	case pair(KindString, KindClassString), pair(KindNumber, KindString):
		return KindString, true
	}
	return KindUnknown, false
}

func mergeScalars(a, b *Scalar) (Type, bool) {
	kind, ok := widenedKind(a.kind, b.kind)
	if !ok {
		return nil, false
	}
	if a.kind == KindClassString && b.kind == KindClassString && a.class != b.class {
		return nil, false
	}
	s := &Scalar{kind: kind, meta: mergeMeta(a.meta, b.meta)}
	if a.kind == b.kind {
		s.class = a.class
		if a.format == b.format {
			s.format = a.format
		}
	}
	if len(a.values) > 0 && len(b.values) > 0 {
		for _, v := range a.values {
			s.values = appendValue(s.values, v)
		}
		for _, v := range b.values {
			s.values = appendValue(s.values, v)
		}
		sortValues(s.values)
		s.enumerated = a.enumerated && b.enumerated
	}
	return s, true
}

func mergeArrays(a, b *Array, asIntersection bool) (Type, bool) {
	if a.shape != b.shape {
		return nil, false
	}
	meta := mergeMeta(a.meta, b.meta)
	if a.shape {
		if len(a.entries) != len(b.entries) {
			return nil, false
		}
		out := &Array{shape: true, meta: meta}
		for _, e := range a.entries {
			other, ok := b.Entry(e.Key)
			if !ok {
				return nil, false
			}
			out.entries = append(out.entries, ArrayEntry{
				Key:      e.Key,
				Type:     mergeTypes(e.Type, other.Type, asIntersection),
				Optional: e.Optional || other.Optional,
			})
		}
		return out, true
	}

	if hasStringKeys(a) != hasStringKeys(b) {
		return nil, false
	}
	out := &Array{meta: meta, item: mergeTypes(a.item, b.item, asIntersection)}
	if a.key != nil || b.key != nil {
		out.key = mergeTypes(keyOrInt(a.key), keyOrInt(b.key), asIntersection)
	}
	return out, true
}

func mergeObjects(a, b *Object, asIntersection bool) (Type, bool) {
	if a.class != b.class || !sameNames(a.props, b.props) {
		return nil, false
	}
	out := &Object{
		class:   a.class,
		meta:    mergeMeta(a.meta, b.meta),
		display: a.display,
		args:    a.args,
		stub:    a.stub && b.stub,
	}
	if out.display == nil {
		out.display = b.display
	}
	for _, p := range a.props {
		other, _ := b.Property(p.Name)
		out.props = append(out.props, Property{
			Name:     p.Name,
			Type:     mergeTypes(p.Type, other.Type, asIntersection),
			Optional: p.Optional || other.Optional,
		})
	}
	return out, true
}

// DefaultDeepLimit bounds how many nested levels Deep will materialize.
const DefaultDeepLimit = 64

// Deep unwraps t and every type nested inside it, resolving pending types on the
// way. Nesting beyond limit is left as returned by Unwrap.
func Deep(t Type, limit int) Type {
	return DeepFunc(t, limit, nil)
}

// DeepFunc is Deep, except that pending types still nested below limit are
// replaced with leaf(p) instead of being left in place.
func DeepFunc(t Type, limit int, leaf func(*Pending) Type) Type {
	if limit <= 0 {
		if leaf == nil {
			return Unwrap(t)
		}
		return replacePending(t, leaf)
	}
	return mapChildren(Unwrap(t), func(c Type) Type {
		return DeepFunc(c, limit-1, leaf)
	})
}

func replacePending(t Type, leaf func(*Pending) Type) Type {
	if p, ok := t.(*Pending); ok {
		return leaf(p)
	}
	return mapChildren(t, func(c Type) Type {
		return replacePending(c, leaf)
	})
}

// mapChildren returns a copy of t with f applied to every directly nested type.
func mapChildren(t Type, f func(Type) Type) Type {
	switch v := t.(type) {
	case *Array:
		c := *v
		if v.shape {
			c.entries = make([]ArrayEntry, len(v.entries))
			for i, e := range v.entries {
				e.Type = f(e.Type)
				c.entries[i] = e
			}
		} else {
			c.item = f(v.item)
			if v.key != nil {
				c.key = f(v.key)
			}
		}
		return &c
	case *Object:
		c := *v
		c.props = make([]Property, len(v.props))
		for i, p := range v.props {
			p.Type = f(p.Type)
			c.props[i] = p
		}
		if v.display != nil {
			c.display = f(v.display)
		}
		if len(v.args) > 0 {
			c.args = make([]Type, len(v.args))
			for i, arg := range v.args {
				c.args[i] = f(arg)
			}
		}
		return &c
	case *Composite:
		c := *v
		c.members = make([]Type, len(v.members))
		for i, m := range v.members {
			c.members[i] = f(m)
		}
		return &c
	}
	return t
}

// WithoutNull removes null members from a union. A lone null stays as is.
func WithoutNull(t Type) Type {
	u := Unwrap(t)
	c, ok := u.(*Composite)
	if !ok || c.kind != KindUnion {
		return u
	}
	kept := make([]Type, 0, len(c.members))
	for _, m := range c.members {
		if m.Kind() != KindNull {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(c.members) {
		return u
	}
	return Unwrap(&Composite{kind: KindUnion, meta: c.meta, members: kept})
}

// IsNullable reports whether null is one of the possible values of t.
func IsNullable(t Type) bool {
	u := Unwrap(t)
	if u.Kind() == KindNull {
		return true
	}
	if c, ok := u.(*Composite); ok && c.kind == KindUnion {
		for _, m := range c.members {
			if m.Kind() == KindNull {
				return true
			}
		}
	}
	return false
}

// Members returns the union members of t, or t itself when it is not a union.
func Members(t Type) []Type {
	u := Unwrap(t)
	if c, ok := u.(*Composite); ok && c.kind == KindUnion {
		return c.Members()
	}
	return []Type{u}
}
