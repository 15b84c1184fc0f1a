package types

import (
	"slices"
)

// ArrayEntry is one keyed member of an array shape. Key is a string or an int64.
type ArrayEntry struct {
	Key      any
	Type     Type
	Optional bool
}

// Array is either a shape (fixed keys) or a pair (homogeneous item type with an
// optional key type), never both.
type Array struct {
	meta    Meta
	shape   bool
	entries []ArrayEntry
	item    Type
	key     Type
}

func (a *Array) Kind() Kind { return KindArray }

func (a *Array) Meta() Meta { return a.meta }

func (a *Array) withMeta(m Meta) Type {
	c := *a
	c.meta = m
	return &c
}

// Shape builds an array shape. Later entries with a duplicate key replace earlier ones.
func Shape(entries ...ArrayEntry) *Array {
	a := &Array{shape: true}
	for _, e := range entries {
		a = a.With(e.Key, e.Type, e.Optional)
	}
	return a
}

// List builds a pair array with implicit integer keys.
func List(item Type) *Array {
	if item == nil {
		item = Unknown()
	}
	return &Array{item: item}
}

// Map builds a pair array with an explicit key type.
func Map(key, item Type) *Array {
	if item == nil {
		item = Unknown()
	}
	return &Array{item: item, key: key}
}

// IsShape reports whether the array has a fixed key set.
func (a *Array) IsShape() bool { return a.shape }

// Entries returns the shape entries in declaration order.
func (a *Array) Entries() []ArrayEntry { return slices.Clone(a.entries) }

// Item returns the item type of a pair array (nil for shapes).
func (a *Array) Item() Type { return a.item }

// Key returns the key type of a pair array, nil when keys are implicit integers.
func (a *Array) Key() Type { return a.key }

// Entry looks up a shape entry by key.
func (a *Array) Entry(key any) (ArrayEntry, bool) {
	key = normalizeKey(key)
	for _, e := range a.entries {
		if e.Key == key {
			return e, true
		}
	}
	return ArrayEntry{}, false
}

// Keys returns the shape keys in order.
func (a *Array) Keys() []any {
	keys := make([]any, 0, len(a.entries))
	for _, e := range a.entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// With returns a copy of the shape with key set to t. Calling With on a pair array
// unions t into the item type instead.
func (a *Array) With(key any, t Type, optional bool) *Array {
	if t == nil {
		t = Unknown()
	}
	c := *a
	if !a.shape {
		c.item = Union(a.item, t)
		if _, isString := key.(string); isString {
			c.key = Union(keyOrInt(a.key), String())
		}
		return &c
	}
	key = normalizeKey(key)
	c.entries = slices.Clone(a.entries)
	for i, e := range c.entries {
		if e.Key == key {
			c.entries[i] = ArrayEntry{Key: key, Type: t, Optional: optional}
			return &c
		}
	}
	c.entries = append(c.entries, ArrayEntry{Key: key, Type: t, Optional: optional})
	return &c
}

// Append adds t under the next integer key of a shape, or unions it into the item
// type of a pair array.
func (a *Array) Append(t Type) *Array {
	if !a.shape {
		return a.With(nil, t, false)
	}
	return a.With(a.NextIndex(), t, false)
}

// NextIndex returns the key PHP would assign to the next appended value.
func (a *Array) NextIndex() int64 {
	next := int64(0)
	for _, e := range a.entries {
		if i, ok := e.Key.(int64); ok && i >= next {
			next = i + 1
		}
	}
	return next
}

// IsList reports whether the shape keys are exactly 0..n-1 in order.
func (a *Array) IsList() bool {
	if !a.shape {
		return a.key == nil
	}
	for i, e := range a.entries {
		if k, ok := e.Key.(int64); !ok || k != int64(i) {
			return false
		}
	}
	return true
}

// ToPair converts a shape into a pair by unioning all of its value types.
func (a *Array) ToPair() *Array {
	if !a.shape {
		return a
	}
	values := make([]Type, 0, len(a.entries))
	var keys []Type
	for _, e := range a.entries {
		values = append(values, e.Type)
		switch e.Key.(type) {
		case string:
			keys = append(keys, String())
		case int64:
			keys = append(keys, Integer())
		}
	}
	p := &Array{meta: a.meta, item: Union(values...)}
	if len(values) == 0 {
		p.item = Unknown()
	}
	if !a.IsList() && len(keys) > 0 {
		p.key = Union(keys...)
	}
	return p
}

func keyOrInt(k Type) Type {
	if k == nil {
		return Integer()
	}
	return k
}

func normalizeKey(key any) any {
	switch k := key.(type) {
	case int:
		return int64(k)
	case int32:
		return int64(k)
	}
	return key
}

func hasStringKeys(a *Array) bool {
	if a.key == nil {
		return false
	}
	k := Unwrap(a.key)
	if k.Kind() == KindString || k.Kind() == KindClassString {
		return true
	}
	if c, ok := k.(*Composite); ok {
		for _, m := range c.members {
			if m.Kind() == KindString || m.Kind() == KindClassString {
				return true
			}
		}
	}
	return false
}
