// Package typedump renders inferred types as JSON documents for debugging.
package typedump

import (
	"bytes"
	"fmt"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/shopware/php-typeinfer/internal/types"
)

// Entry is one named result of a dump. Err is rendered instead of Type when set.
type Entry struct {
	Target string
	Type   types.Type
	Err    error
}

// Marshal encodes t as compact JSON. Children deeper than types.DefaultDeepLimit are
// cut off and flagged as truncated.
func Marshal(t types.Type) ([]byte, error) {
	return encode(t, types.DefaultDeepLimit)
}

// Pretty encodes t as indented JSON.
func Pretty(t types.Type) ([]byte, error) {
	raw, err := Marshal(t)
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(raw), nil
}

// Document encodes entries as an indented JSON array, in order.
func Document(entries []Entry) ([]byte, error) {
	items := make([][]byte, 0, len(entries))
	for _, e := range entries {
		item, err := sjson.SetBytes([]byte("{}"), "target", e.Target)
		if err != nil {
			return nil, err
		}
		if e.Err != nil {
			item, err = sjson.SetBytes(item, "error", e.Err.Error())
		} else {
			var raw []byte
			if raw, err = Marshal(e.Type); err == nil {
				item, err = sjson.SetRawBytes(item, "type", raw)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", e.Target, err)
		}
		items = append(items, item)
	}
	doc := append([]byte("["), bytes.Join(items, []byte(","))...)
	return pretty.Pretty(append(doc, ']')), nil
}

func encode(t types.Type, limit int) ([]byte, error) {
	u := types.Unwrap(t)
	doc := []byte("{}")

	var err error
	set := func(path string, value any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, value)
		}
	}
	child := func(path string, c types.Type) {
		if err != nil {
			return
		}
		var raw []byte
		if raw, err = encode(c, limit-1); err == nil {
			doc, err = sjson.SetRawBytes(doc, path, raw)
		}
	}
	appendRaw := func(path string, raw []byte, rawErr error) {
		if err == nil {
			err = rawErr
		}
		if err == nil {
			doc, err = sjson.SetRawBytes(doc, path+".-1", raw)
		}
	}

	set("kind", u.Kind().String())
	set("type", types.Render(u))
	meta := u.Meta()
	if meta.Description != "" {
		set("description", meta.Description)
	}
	if len(meta.Examples) > 0 {
		set("examples", meta.Examples)
	}
	if meta.Optional {
		set("optional", true)
	}
	if limit <= 0 {
		set("truncated", true)
		return doc, err
	}

	switch v := u.(type) {
	case *types.Scalar:
		if values := v.Values(); len(values) > 0 {
			set("values", values)
		}
		if v.Enumerated() {
			set("enumerated", true)
		}
		if v.Format() != "" {
			set("format", v.Format())
		}
		if v.Class() != "" {
			set("class", v.Class())
		}
	case *types.Array:
		if v.IsShape() {
			set("entries", []any{})
			for _, e := range v.Entries() {
				raw, rawErr := member("key", e.Key, e.Optional, e.Type, limit)
				appendRaw("entries", raw, rawErr)
			}
			break
		}
		if v.Key() != nil {
			child("key", v.Key())
		}
		child("item", v.Item())
	case *types.Object:
		if v.Class() != "" {
			set("class", v.Class())
		}
		if v.IsStub() {
			set("stub", true)
		}
		if args := v.Args(); len(args) > 0 {
			set("args", []any{})
			for _, arg := range args {
				child("args.-1", arg)
			}
		}
		set("properties", []any{})
		for _, p := range v.Properties() {
			raw, rawErr := member("name", p.Name, p.Optional, p.Type, limit)
			appendRaw("properties", raw, rawErr)
		}
		if v.Display() != nil {
			child("display", v.Display())
		}
	case *types.Composite:
		set("members", []any{})
		for _, m := range v.Members() {
			child("members.-1", m)
		}
	}
	return doc, err
}

// member encodes a named child: a shape entry or an object property.
func member(field string, name any, optional bool, t types.Type, limit int) ([]byte, error) {
	item, err := sjson.SetBytes([]byte("{}"), field, name)
	if err != nil {
		return nil, err
	}
	if optional {
		if item, err = sjson.SetBytes(item, "optional", true); err != nil {
			return nil, err
		}
	}
	raw, err := encode(t, limit-1)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(item, "type", raw)
}
