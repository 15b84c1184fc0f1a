package typedump

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/php-typeinfer/internal/types"
)

func TestMarshal(t *testing.T) {
	testCases := []struct {
		name     string
		typ      types.Type
		expected string
	}{
		{
			name:     "literal",
			typ:      types.Literal(1),
			expected: `{"kind":"int","type":"1","values":[1]}`,
		},
		{
			name:     "enum with format",
			typ:      types.Enum(types.KindString, "b", "a").WithFormat("slug"),
			expected: `{"kind":"string","type":"'a'|'b'","values":["a","b"],"enumerated":true,"format":"slug"}`,
		},
		{
			name: "shape",
			typ: types.Shape(
				types.ArrayEntry{Key: "id", Type: types.Literal(1)},
				types.ArrayEntry{Key: "name", Type: types.WithDescription(types.String(), "Display name"), Optional: true},
			),
			expected: `{"kind":"array","type":"array{id: 1, name?: string}","entries":[
				{"key":"id","type":{"kind":"int","type":"1","values":[1]}},
				{"key":"name","optional":true,"type":{"kind":"string","type":"string","description":"Display name"}}
			]}`,
		},
		{
			name:     "list",
			typ:      types.List(types.String()),
			expected: `{"kind":"array","type":"list<string>","item":{"kind":"string","type":"string"}}`,
		},
		{
			name:     "nullable",
			typ:      types.Union(types.Integer(), types.Null()),
			expected: `{"kind":"union","type":"int|null","members":[{"kind":"int","type":"int"},{"kind":"null","type":"null"}]}`,
		},
		{
			name: "generic object",
			typ: types.NewObject("App\\User", types.Property{Name: "id", Type: types.Integer()}).
				WithArgs(types.String()),
			expected: `{"kind":"object","type":"App\\User<string>","class":"App\\User",
				"args":[{"kind":"string","type":"string"}],
				"properties":[{"name":"id","type":{"kind":"int","type":"int"}}]}`,
		},
		{
			name:     "stub",
			typ:      types.ObjectStub("App\\Node"),
			expected: `{"kind":"object","type":"App\\Node","class":"App\\Node","stub":true,"properties":[]}`,
		},
		{
			name:     "lazy",
			typ:      types.Lazy("answer", func() types.Type { return types.Literal("yes") }),
			expected: `{"kind":"string","type":"'yes'","values":["yes"]}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Marshal(tc.typ)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(raw))
		})
	}
}

func TestMarshalTruncatesDeepTypes(t *testing.T) {
	var typ types.Type = types.Integer()
	for range types.DefaultDeepLimit + 2 {
		typ = types.List(typ)
	}

	raw, err := Marshal(typ)
	require.NoError(t, err)

	var node map[string]any
	require.NoError(t, json.Unmarshal(raw, &node))
	depth := 0
	for {
		item, ok := node["item"].(map[string]any)
		if !ok {
			break
		}
		node = item
		depth++
	}
	assert.Equal(t, types.DefaultDeepLimit, depth)
	assert.Equal(t, true, node["truncated"])
}

func TestDocument(t *testing.T) {
	raw, err := Document([]Entry{
		{Target: "App\\Controller::show", Type: types.Boolean()},
		{Target: "App\\Missing", Err: errors.New("class not found: App\\Missing")},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"target":"App\\Controller::show","type":{"kind":"bool","type":"bool"}},
		{"target":"App\\Missing","error":"class not found: App\\Missing"}
	]`, string(raw))
	assert.Contains(t, string(raw), "\n  ")
}

func TestPretty(t *testing.T) {
	raw, err := Pretty(types.Void())
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"kind\": \"void\",\n  \"type\": \"void\"\n}\n", string(raw))
}
