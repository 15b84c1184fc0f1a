package phpdoc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "int", expected: "int"},
		{input: "?string", expected: "?string"},
		{input: "int|null", expected: "int|null"},
		{input: "A & B", expected: "A&B"},
		{input: "(A&B)|null", expected: "A&B|null"},
		{input: "\\App\\User[]", expected: "\\App\\User[]"},
		{input: "string[][]", expected: "string[][]"},
		{input: "array<int, string>", expected: "array<int, string>"},
		{input: "list<array{id: int}>", expected: "list<array{id: int}>"},
		{input: "array{id: int, name?: string}", expected: "array{id: int, name?: string}"},
		{input: "array{'first name': string}", expected: "array{first name: string}"},
		{input: "array{int, string}", expected: "array{int, string}"},
		{input: "array{0: int, 1?: bool}", expected: "array{0: int, 1?: bool}"},
		{input: "array{a: int, ...}", expected: "array{a: int}"},
		{input: "object{a: int}", expected: "object{a: int}"},
		{input: "'draft'|'published'", expected: "'draft'|'published'"},
		{input: "1|2|-3", expected: "1|2|-3"},
		{input: "1.5", expected: "1.5"},
		{input: "Status::ACTIVE", expected: "Status::ACTIVE"},
		{input: "Status::*", expected: "Status::*"},
		{input: "Status::PREFIX_*", expected: "Status::PREFIX_*"},
		{input: "non-empty-string", expected: "non-empty-string"},
		{input: "callable(int, string): bool", expected: "callable(int, string): bool"},
		{input: "Closure(int $x): void", expected: "Closure(int): void"},
		{input: "callable", expected: "callable"},
		{input: "$this", expected: "$this"},
		{input: "Collection<int, User>|null", expected: "Collection<int, User>|null"},
		{input: "class-string<Foo>", expected: "class-string<Foo>"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := ParseType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, node.String())
		})
	}
}

func TestParseTypeStructure(t *testing.T) {
	node, err := ParseType("array{id: int, tags?: list<string>}|null")
	require.NoError(t, err)

	union, ok := node.(*UnionNode)
	require.True(t, ok)
	require.Len(t, union.Types, 2)

	shape, ok := union.Types[0].(*ShapeNode)
	require.True(t, ok)
	assert.Equal(t, "array", shape.Kind)
	require.Len(t, shape.Items, 2)
	assert.Equal(t, "tags", shape.Items[1].Key)
	assert.True(t, shape.Items[1].Optional)

	generic, ok := shape.Items[1].Value.(*GenericNode)
	require.True(t, ok)
	assert.Equal(t, "list", generic.Type.Name)

	num, err := ParseType("-42")
	require.NoError(t, err)
	assert.Equal(t, int64(-42), num.(*ConstNode).Value)

	list, err := ParseType("list{int, string}")
	require.NoError(t, err)
	assert.Equal(t, "list", list.(*ShapeNode).Kind)
	assert.False(t, list.(*ShapeNode).Items[0].HasKey)
}

func TestParseTypeErrors(t *testing.T) {
	tests := []string{
		"",
		"array<int",
		"array{a: }",
		"int|",
		"'unterminated",
		"int string",
		"Foo::",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseType(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var syntaxErr *SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
			assert.Equal(t, input, syntaxErr.Input)
		})
	}
}

func TestSplitType(t *testing.T) {
	tests := []struct {
		body string
		typ  string
		rest string
	}{
		{body: "int $id", typ: "int", rest: "$id"},
		{body: "array<int, string> $map the map", typ: "array<int, string>", rest: "$map the map"},
		{body: "int | string $v", typ: "int | string", rest: "$v"},
		{body: "callable(int): bool $cb", typ: "callable(int): bool", rest: "$cb"},
		{body: "array{a: int, b: 'x y'} desc", typ: "array{a: int, b: 'x y'}", rest: "desc"},
		{body: "Foo&Bar ...$items", typ: "Foo&Bar", rest: "...$items"},
		{body: "string &$ref", typ: "string", rest: "&$ref"},
		{body: "bool", typ: "bool", rest: ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			typ, rest := SplitType(tt.body)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.rest, rest)
		})
	}
}
