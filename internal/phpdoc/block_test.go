package phpdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlock(t *testing.T) {
	block := ParseBlock(`/**
	 * Returns the product listing.
	 *
	 * The listing is paginated
	 * by the limit parameter.
	 *
	 * @param int $limit maximum number
	 *        of products
	 * @param string ...$tags
	 * @return array{items: list<Product>, total: int}
	 * @throws NotFoundException when missing
	 * @example 25
	 * @deprecated
	 */`)

	assert.Equal(t, "Returns the product listing.", block.Summary)
	assert.Equal(t, "The listing is paginated\nby the limit parameter.", block.Description)
	assert.Empty(t, block.Errors)

	limit, ok := block.Param("$limit")
	require.True(t, ok)
	assert.Equal(t, "int", limit.Type.String())
	assert.Equal(t, "maximum number of products", limit.Description)

	tags, ok := block.Param("tags")
	require.True(t, ok)
	assert.True(t, tags.Variadic)

	ret, ok := block.Return()
	require.True(t, ok)
	assert.Equal(t, "array{items: list<Product>, total: int}", ret.Type.String())

	require.Len(t, block.Throws(), 1)
	assert.Equal(t, "NotFoundException", block.Throws()[0].Type.String())
	assert.Equal(t, []any{int64(25)}, block.Examples())
	assert.True(t, block.HasTag("deprecated"))
}

func TestParseBlockVendorTagsArePreferred(t *testing.T) {
	block := ParseBlock(`/**
	 * @phpstan-return list<int>
	 * @return array
	 * @param array $ids
	 * @psalm-param list<int> $ids
	 */`)

	ret, ok := block.Return()
	require.True(t, ok)
	assert.Equal(t, "list<int>", ret.Type.String())

	ids, ok := block.Param("ids")
	require.True(t, ok)
	assert.Equal(t, "list<int>", ids.Type.String())
}

func TestParseBlockVar(t *testing.T) {
	single := ParseBlock("/** @var list<string> */")
	v, ok := single.Var("anything")
	require.True(t, ok)
	assert.Equal(t, "list<string>", v.Type.String())

	named := ParseBlock("/** @var int $a\n * @var string $b */")
	b, ok := named.Var("b")
	require.True(t, ok)
	assert.Equal(t, "string", b.Type.String())
	_, ok = named.Var("c")
	assert.False(t, ok)

	var nilBlock *Block
	_, ok = nilBlock.Var("x")
	assert.False(t, ok)
	assert.Empty(t, nilBlock.Templates())
}

func TestParseBlockClassTags(t *testing.T) {
	block := ParseBlock(`/**
	 * @template TKey of array-key
	 * @template-covariant TValue
	 * @extends Collection<TKey, TValue>
	 * @implements \IteratorAggregate<TKey, TValue>
	 * @property-read int $count
	 * @property string $label the label
	 */`)

	templates := block.Templates()
	require.Len(t, templates, 2)
	assert.Equal(t, "TKey", templates[0].Name)
	assert.Equal(t, "array-key", templates[0].Bound.String())
	assert.Equal(t, "TValue", templates[1].Name)
	assert.Nil(t, templates[1].Bound)

	require.Len(t, block.Extends(), 1)
	assert.Equal(t, "Collection<TKey, TValue>", block.Extends()[0].String())
	require.Len(t, block.Implements(), 1)

	props := block.Properties()
	require.Len(t, props, 2)
	assert.Equal(t, "count", props[0].Name)
	assert.True(t, props[0].ReadOnly)
	assert.Equal(t, "the label", props[1].Description)
}

func TestParseBlockRecordsSyntaxErrors(t *testing.T) {
	block := ParseBlock("/** @return array<int */")
	_, ok := block.Return()
	assert.False(t, ok)
	require.Len(t, block.Errors, 1)
	assert.ErrorIs(t, block.Errors[0], ErrSyntax)
}

func TestParseExample(t *testing.T) {
	tests := []struct {
		body     string
		expected any
	}{
		{body: "42", expected: int64(42)},
		{body: "1.5", expected: 1.5},
		{body: "true", expected: true},
		{body: "null", expected: nil},
		{body: `"quoted"`, expected: "quoted"},
		{body: "plain text", expected: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseExample(tt.body))
		})
	}
}
