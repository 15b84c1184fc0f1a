package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Render returns a PHPStan-like textual form of t, for example
// "array{id: int, name?: string}" or "list<Foo>|null". Pending types are resolved.
func Render(t Type) string {
	var b strings.Builder
	render(&b, t, DefaultDeepLimit)
	return b.String()
}

func render(b *strings.Builder, t Type, limit int) {
	u := Unwrap(t)
	if limit <= 0 {
		b.WriteString("...")
		return
	}
	switch v := u.(type) {
	case *Scalar:
		renderScalar(b, v)
	case *Array:
		renderArray(b, v, limit)
	case *Object:
		renderObject(b, v, limit)
	case *Composite:
		sep := "|"
		if v.kind == KindIntersection {
			sep = "&"
		}
		for i, m := range v.members {
			if i > 0 {
				b.WriteString(sep)
			}
			if c, ok := Unwrap(m).(*Composite); ok && c.kind != v.kind {
				b.WriteString("(")
				render(b, c, limit-1)
				b.WriteString(")")
				continue
			}
			render(b, m, limit-1)
		}
	default:
		b.WriteString(u.Kind().String())
	}
}

func renderScalar(b *strings.Builder, s *Scalar) {
	if s.kind == KindClassString {
		if len(s.values) == 1 {
			b.WriteString(s.class + "::class")
			return
		}
		if s.class != "" {
			b.WriteString("class-string<" + s.class + ">")
			return
		}
	}
	if len(s.values) == 0 {
		b.WriteString(s.kind.String())
		if s.format != "" {
			b.WriteString("(" + s.format + ")")
		}
		return
	}
	for i, v := range s.values {
		if i > 0 {
			b.WriteString("|")
		}
		b.WriteString(RenderValue(v))
	}
}

// RenderValue renders a literal value the way PHP source would spell it.
func RenderValue(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "\\'") + "'"
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}

func renderKey(k any) string {
	if s, ok := k.(string); ok {
		if isIdentifier(s) {
			return s
		}
		return RenderValue(s)
	}
	return fmt.Sprint(k)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func renderArray(b *strings.Builder, a *Array, limit int) {
	if a.shape {
		b.WriteString("array{")
		for i, e := range a.entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(renderKey(e.Key))
			if e.Optional {
				b.WriteString("?")
			}
			b.WriteString(": ")
			render(b, e.Type, limit-1)
		}
		b.WriteString("}")
		return
	}
	if a.key == nil {
		b.WriteString("list<")
	} else {
		b.WriteString("array<")
		render(b, a.key, limit-1)
		b.WriteString(", ")
	}
	render(b, a.item, limit-1)
	b.WriteString(">")
}

func renderObject(b *strings.Builder, o *Object, limit int) {
	if o.class != "" {
		b.WriteString(o.class)
		if len(o.args) > 0 {
			b.WriteString("<")
			for i, arg := range o.args {
				if i > 0 {
					b.WriteString(", ")
				}
				render(b, arg, limit-1)
			}
			b.WriteString(">")
		}
		return
	}
	b.WriteString("object{")
	for i, p := range o.props {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if p.Optional {
			b.WriteString("?")
		}
		b.WriteString(": ")
		render(b, p.Type, limit-1)
	}
	b.WriteString("}")
}

// TypeNames returns the sorted scalar type names of t when t is a union made only of
// plain scalars (no literal values, formats or documentation). Emitters render such
// unions as a list of type names instead of anyOf.
func TypeNames(t Type) ([]string, bool) {
	var names []string
	for _, m := range Members(t) {
		s, ok := m.(*Scalar)
		if !ok || len(s.values) > 0 || s.format != "" || s.kind == KindUnknown || !s.meta.isZero() {
			return nil, false
		}
		name := s.kind.String()
		if s.kind == KindClassString {
			name = KindString.String()
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, len(names) > 0
}
