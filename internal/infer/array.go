package infer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/types"
)

// arrayLiteral builds the type of an array(...) or [...] expression. Arrays
// with literal keys become shapes; the first computed key turns the array into
// a key/value pair.
func (r *Run) arrayLiteral(ctx Context, node *tree_sitter.Node) types.Type {
	defer step("resolving array type")

	shape := types.Shape()
	var keys, items []types.Type
	pair := false

	for _, element := range namedChildren(node) {
		if element.Kind() != "array_element_initializer" {
			continue
		}
		children := namedChildren(element)
		if len(children) == 0 {
			continue
		}

		if children[0].Kind() == "variadic_unpacking" {
			spread := r.resolve(ctx, firstNamed(children[0]))
			shape, keys, items, pair = r.spread(shape, keys, items, pair, spread)
			continue
		}

		var keyNode, valueNode *tree_sitter.Node
		switch len(children) {
		case 1:
			valueNode = children[0]
		default:
			keyNode, valueNode = children[0], children[len(children)-1]
		}
		if valueNode.Kind() == "by_ref" {
			valueNode = firstNamed(valueNode)
		}

		value := r.elementType(ctx, element, valueNode)

		if keyNode == nil {
			if pair {
				items = append(items, value)
				keys = append(keys, types.Integer())
				continue
			}
			shape = shape.Append(value)
			continue
		}

		keyType := r.resolve(ctx, keyNode)
		if key, ok := literalKey(keyType); ok && !pair {
			shape = shape.With(key, value, false)
			continue
		}

		if !pair {
			pair = true
			keys, items = shapeParts(shape)
		}
		keys = append(keys, widenKey(keyType))
		items = append(items, value)
	}

	if !pair {
		return shape
	}
	if len(items) == 0 {
		return anyArray()
	}
	return types.Map(types.Union(keys...), types.Union(items...))
}

// elementType resolves one array value. A docblock in front of the element
// overrides the inferred type and documents it.
func (r *Run) elementType(ctx Context, element, value *tree_sitter.Node) types.Type {
	doc := php.DocComment(element, fileContent(ctx))
	var t types.Type
	if tag, ok := doc.Var(""); ok && tag.Type != nil {
		r.checkDoc(ctx, doc, element)
		t = r.docType(ctx, tag.Type)
		if types.IsUnknown(t) {
			t = nil
		}
	}
	if t == nil {
		t = r.resolve(ctx, value)
	}
	if doc == nil {
		return t
	}
	return r.describe(t, doc.Text(), doc.Examples())
}

// spread merges ...$other into the array under construction: integer keys are
// appended, string keys overwrite.
func (r *Run) spread(shape *types.Array, keys, items []types.Type, pair bool, spread types.Type) (*types.Array, []types.Type, []types.Type, bool) {
	arr, ok := types.Unwrap(spread).(*types.Array)
	if !ok {
		if !pair {
			keys, items = shapeParts(shape)
		}
		return shape, append(keys, arrayKey()), append(items, types.Unknown()), true
	}

	if arr.IsShape() && !pair {
		for _, e := range arr.Entries() {
			if _, isInt := e.Key.(int64); isInt {
				shape = shape.Append(e.Type)
				continue
			}
			shape = shape.With(e.Key, e.Type, e.Optional)
		}
		return shape, keys, items, false
	}

	if !pair {
		keys, items = shapeParts(shape)
	}
	p := arr.ToPair()
	key := p.Key()
	if key == nil {
		key = types.Integer()
	}
	return shape, append(keys, key), append(items, p.Item()), true
}

// shapeParts returns the key and value types of the entries of shape.
func shapeParts(shape *types.Array) ([]types.Type, []types.Type) {
	var keys, items []types.Type
	for _, e := range shape.Entries() {
		if _, isInt := e.Key.(int64); isInt {
			keys = append(keys, types.Integer())
		} else {
			keys = append(keys, types.String())
		}
		items = append(items, e.Type)
	}
	return keys, items
}

// widenKey drops literal values from a computed key type.
func widenKey(t types.Type) types.Type {
	var out []types.Type
	for _, m := range types.Members(t) {
		switch m.Kind() {
		case types.KindInteger:
			out = append(out, types.Integer())
		case types.KindString, types.KindClassString:
			out = append(out, types.String())
		case types.KindBoolean, types.KindNull:
			out = append(out, types.Integer())
		default:
			out = append(out, arrayKey())
		}
	}
	if len(out) == 0 {
		return arrayKey()
	}
	return types.Union(out...)
}

func fileContent(ctx Context) []byte {
	if ctx.File == nil {
		return nil
	}
	return ctx.File.Content
}
