package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	testCases := []struct {
		name     string
		typ      Type
		expected string
	}{
		{name: "int literal", typ: Literal(5), expected: "5"},
		{name: "string literal", typ: Literal("it's"), expected: `'it\'s'`},
		{name: "float literal", typ: Literal(2.0), expected: "2.0"},
		{name: "bool", typ: Boolean(), expected: "bool"},
		{name: "date", typ: String().WithFormat("date-time"), expected: "string(date-time)"},
		{name: "class string", typ: ClassString("App\\User"), expected: "class-string<App\\User>"},
		{name: "class literal", typ: ClassStringLiteral("App\\User"), expected: "App\\User::class"},
		{name: "list", typ: List(Integer()), expected: "list<int>"},
		{name: "map", typ: Map(String(), Boolean()), expected: "array<string, bool>"},
		{
			name:     "shape",
			typ:      Shape(ArrayEntry{Key: "id", Type: Integer()}, ArrayEntry{Key: "first name", Type: String(), Optional: true}),
			expected: "array{id: int, 'first name'?: string}",
		},
		{name: "generic object", typ: NewObject("Box").WithArgs(Integer()), expected: "Box<int>"},
		{name: "anonymous object", typ: NewObject("", Property{Name: "a", Type: Null()}), expected: "object{a: null}"},
		{name: "union", typ: NewUnion(Integer(), Null()), expected: "int|null"},
		{name: "nested intersection", typ: NewUnion(NewIntersection(ObjectStub("A"), ObjectStub("B")), Null()), expected: "(A&B)|null"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Render(tc.typ))
		})
	}
}

func TestTypesAreImmutable(t *testing.T) {
	base := Integer()
	described := WithDescription(base, "age")
	assert.Empty(t, base.Meta().Description)
	assert.Equal(t, "age", described.Meta().Description)

	shape := Shape(ArrayEntry{Key: "a", Type: Integer()})
	extended := shape.With("b", String(), true)
	assert.Len(t, shape.Entries(), 1)
	assert.Len(t, extended.Entries(), 2)

	obj := NewObject("User")
	withProp := obj.WithProperty("id", Integer(), false)
	assert.Empty(t, obj.Properties())
	assert.Equal(t, []string{"id"}, withProp.PropertyNames())
}

func TestArrayShapeOperations(t *testing.T) {
	list := Shape().Append(Literal("a")).Append(Literal("b"))
	assert.True(t, list.IsList())
	assert.Equal(t, int64(2), list.NextIndex())
	assert.Equal(t, "list<'a'|'b'>", Render(list.ToPair()))

	mixed := Shape(ArrayEntry{Key: "a", Type: Integer()}, ArrayEntry{Key: 3, Type: String()})
	assert.False(t, mixed.IsList())
	assert.Equal(t, "array<string|int, int|string>", Render(mixed.ToPair()))

	pair := List(Integer()).With("x", String(), false)
	assert.False(t, pair.IsShape())
	assert.Equal(t, "array<int|string, int|string>", Render(pair))
}

func TestEnumValues(t *testing.T) {
	e := Enum(KindString, "b", "a", "b")
	assert.True(t, e.Enumerated())
	assert.Equal(t, []any{"a", "b"}, e.Values())
	assert.False(t, e.Widen().Enumerated())
	assert.Empty(t, e.Widen().Values())
}
