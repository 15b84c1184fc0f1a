package types

import (
	"slices"
)

// Property is a named member of an Object type.
type Property struct {
	Name     string
	Type     Type
	Optional bool
}

// Object is an instance of a class (or an anonymous object when Class is empty).
type Object struct {
	meta    Meta
	class   string
	props   []Property
	display Type
	args    []Type
	stub    bool
}

func (o *Object) Kind() Kind { return KindObject }

func (o *Object) Meta() Meta { return o.meta }

func (o *Object) withMeta(m Meta) Type {
	c := *o
	c.meta = m
	return &c
}

// NewObject builds an object of class with the given properties.
func NewObject(class string, props ...Property) *Object {
	o := &Object{class: class}
	for _, p := range props {
		o = o.WithProperty(p.Name, p.Type, p.Optional)
	}
	return o
}

// ObjectStub is an object whose properties were not expanded, because expansion was
// cut by the depth guard or because the class is opaque.
func ObjectStub(class string) *Object {
	return &Object{class: class, stub: true}
}

// Class returns the owning class identifier.
func (o *Object) Class() string { return o.class }

// Properties returns the properties in declaration order.
func (o *Object) Properties() []Property { return slices.Clone(o.props) }

// Property looks up a property by name.
func (o *Object) Property(name string) (Property, bool) {
	for _, p := range o.props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// PropertyNames returns the property names in declaration order.
func (o *Object) PropertyNames() []string {
	names := make([]string, 0, len(o.props))
	for _, p := range o.props {
		names = append(names, p.Name)
	}
	return names
}

// Display returns the type the object masquerades as (enum backing value, date
// string, ...), nil when it is shown as itself.
func (o *Object) Display() Type { return o.display }

// Args returns the generic arguments the object was bound with.
func (o *Object) Args() []Type { return slices.Clone(o.args) }

// IsStub reports whether the properties were left unexpanded.
func (o *Object) IsStub() bool { return o.stub }

// WithProperty returns a copy with the property set.
func (o *Object) WithProperty(name string, t Type, optional bool) *Object {
	if t == nil {
		t = Unknown()
	}
	c := *o
	c.props = slices.Clone(o.props)
	c.stub = false
	for i, p := range c.props {
		if p.Name == name {
			c.props[i] = Property{Name: name, Type: t, Optional: optional}
			return &c
		}
	}
	c.props = append(c.props, Property{Name: name, Type: t, Optional: optional})
	return &c
}

// WithDisplay returns a copy displayed as t.
func (o *Object) WithDisplay(t Type) *Object {
	c := *o
	c.display = t
	return &c
}

// WithArgs returns a copy bound with the given generic arguments.
func (o *Object) WithArgs(args ...Type) *Object {
	c := *o
	c.args = slices.Clone(args)
	return &c
}

func sameNames(a, b []Property) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		seen[p.Name] = true
	}
	for _, p := range b {
		if !seen[p.Name] {
			return false
		}
	}
	return true
}
