package types

import (
	"fmt"
	"slices"
)

// Type is the result of inference. The set of implementations is closed:
// *Scalar, *Array, *Object, *Composite and *Pending.
type Type interface {
	// Kind returns the variant of the type
	Kind() Kind

	// Meta returns the description, examples and optional flag attached to the type
	Meta() Meta

	withMeta(m Meta) Type
}

// Meta is the documentation attached to a type. It travels with the type through
// unions and lazy resolution.
type Meta struct {
	Description string
	Examples    []any
	Optional    bool
}

func (m Meta) isZero() bool {
	return m.Description == "" && len(m.Examples) == 0 && !m.Optional
}

// WithMeta returns a copy of t carrying m.
func WithMeta(t Type, m Meta) Type {
	if t == nil {
		t = Unknown()
	}
	return t.withMeta(m)
}

// WithDescription returns a copy of t with the given description.
func WithDescription(t Type, description string) Type {
	if t == nil {
		t = Unknown()
	}
	m := t.Meta()
	m.Description = description
	return t.withMeta(m)
}

// WithExamples returns a copy of t with the given example values.
func WithExamples(t Type, examples ...any) Type {
	if t == nil {
		t = Unknown()
	}
	m := t.Meta()
	m.Examples = slices.Clone(examples)
	return t.withMeta(m)
}

// WithOptional returns a copy of t with the optional flag set to optional.
func WithOptional(t Type, optional bool) Type {
	if t == nil {
		t = Unknown()
	}
	m := t.Meta()
	if m.Optional == optional {
		return t
	}
	m.Optional = optional
	return t.withMeta(m)
}

// inherit fills the description and examples of t from wrapper when t has none.
func inherit(t Type, wrapper Meta) Type {
	m := t.Meta()
	changed := false
	if m.Description == "" && wrapper.Description != "" {
		m.Description = wrapper.Description
		changed = true
	}
	if len(m.Examples) == 0 && len(wrapper.Examples) > 0 {
		m.Examples = wrapper.Examples
		changed = true
	}
	if wrapper.Optional && !m.Optional {
		m.Optional = true
		changed = true
	}
	if !changed {
		return t
	}
	return t.withMeta(m)
}

// Scalar covers every variant without children: Unknown, Void, Null, Boolean,
// Integer, Float, Number, String, ClassString and Callable.
type Scalar struct {
	kind       Kind
	meta       Meta
	values     []any
	enumerated bool
	format     string
	class      string
}

func (s *Scalar) Kind() Kind { return s.kind }

func (s *Scalar) Meta() Meta { return s.meta }

func (s *Scalar) withMeta(m Meta) Type {
	c := *s
	c.meta = m
	return &c
}

// Values returns the known literal values of the scalar, nil when any value of the
// kind is possible.
func (s *Scalar) Values() []any {
	return slices.Clone(s.values)
}

// IsLiteral reports whether the scalar has exactly one known value.
func (s *Scalar) IsLiteral() bool {
	return len(s.values) == 1
}

// Enumerated reports whether the values form a closed set (enum cases, literal unions).
func (s *Scalar) Enumerated() bool { return s.enumerated }

// Format returns a format hint such as "date-time".
func (s *Scalar) Format() string { return s.format }

// Class returns the referenced class of a class-string.
func (s *Scalar) Class() string { return s.class }

// WithFormat returns a copy with the format hint set.
func (s *Scalar) WithFormat(format string) *Scalar {
	c := *s
	c.format = format
	return &c
}

// AsEnumerated returns a copy whose value set is marked as a closed enumeration.
func (s *Scalar) AsEnumerated() *Scalar {
	c := *s
	c.enumerated = len(c.values) > 0
	return &c
}

// Widen drops the literal values, keeping kind and metadata.
func (s *Scalar) Widen() *Scalar {
	c := *s
	c.values = nil
	c.enumerated = false
	return &c
}

func scalar(kind Kind) *Scalar {
	return &Scalar{kind: kind}
}

func Unknown() *Scalar  { return scalar(KindUnknown) }
func Void() *Scalar     { return scalar(KindVoid) }
func Null() *Scalar     { return scalar(KindNull) }
func Boolean() *Scalar  { return scalar(KindBoolean) }
func Integer() *Scalar  { return scalar(KindInteger) }
func Float() *Scalar    { return scalar(KindFloat) }
func Number() *Scalar   { return scalar(KindNumber) }
func String() *Scalar   { return scalar(KindString) }
func Callable() *Scalar { return scalar(KindCallable) }

// ClassString is a string known to hold the name of class (or any class when empty).
func ClassString(class string) *Scalar {
	return &Scalar{kind: KindClassString, class: class}
}

// ClassStringLiteral is the value of a Foo::class expression.
func ClassStringLiteral(class string) *Scalar {
	return &Scalar{kind: KindClassString, class: class, values: []any{class}}
}

// Literal builds a scalar with a single known value. Go ints become Integer, floats
// Float, strings String and bools Boolean; nil becomes Null.
func Literal(v any) *Scalar {
	if v == nil {
		return Null()
	}
	nv, kind := normalizeValue(v)
	return &Scalar{kind: kind, values: []any{nv}}
}

// Enum builds a scalar of kind whose possible values are exactly values.
func Enum(kind Kind, values ...any) *Scalar {
	s := &Scalar{kind: kind, enumerated: len(values) > 0}
	for _, v := range values {
		nv, _ := normalizeValue(v)
		s.values = appendValue(s.values, nv)
	}
	sortValues(s.values)
	return s
}

// IsKind reports whether the unwrapped type is of kind k.
func IsKind(t Type, k Kind) bool {
	return t != nil && Unwrap(t).Kind() == k
}

// IsUnknown reports whether t carries no information.
func IsUnknown(t Type) bool {
	return t == nil || IsKind(t, KindUnknown)
}

func normalizeValue(v any) (any, Kind) {
	switch x := v.(type) {
	case bool:
		return x, KindBoolean
	case int:
		return int64(x), KindInteger
	case int32:
		return int64(x), KindInteger
	case int64:
		return x, KindInteger
	case float32:
		return float64(x), KindFloat
	case float64:
		return x, KindFloat
	case string:
		return x, KindString
	default:
		return fmt.Sprint(x), KindString
	}
}

func appendValue(values []any, v any) []any {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

// sortValues orders literal values: bools, then numbers, then strings.
func sortValues(values []any) {
	rank := func(v any) int {
		switch v.(type) {
		case bool:
			return 0
		case int64, float64:
			return 1
		default:
			return 2
		}
	}
	num := func(v any) float64 {
		switch x := v.(type) {
		case int64:
			return float64(x)
		case float64:
			return x
		}
		return 0
	}
	slices.SortStableFunc(values, func(a, b any) int {
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra - rb
		}
		switch ra {
		case 0:
			ab, bb := a.(bool), b.(bool)
			if ab == bb {
				return 0
			}
			if !ab {
				return -1
			}
			return 1
		case 1:
			na, nb := num(a), num(b)
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
		sa, sb := fmt.Sprint(a), fmt.Sprint(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
}
