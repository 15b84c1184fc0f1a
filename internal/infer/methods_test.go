package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/types"
)

const controllerSource = `<?php

namespace App\Http;

class NotFound extends \RuntimeException
{
}

class Controller
{
    /**
     * @throws \InvalidArgumentException when the id is negative
     */
    public function show(int $id)
    {
        if ($id < 0) {
            throw new NotFound();
        }
        return ['id' => $id];
    }

    /**
     * @param string $slug the url slug
     */
    public function list(int $page = 1, ?string $slug = null, $sort = 'asc', string ...$tags): array
    {
        return ['page' => $page];
    }

    /**
     * @return array{total: int}
     */
    public function documented(): array
    {
        return [];
    }

    public function declared(): int
    {
        return 'x';
    }

    public function items(): iterable
    {
        yield 1;
    }

    public function recursive()
    {
        return $this->recursive();
    }

    public function nothing()
    {
        $a = 1;
    }
}

/**
 * @template T
 * @param T $value
 * @return list<T>
 */
function wrap($value)
{
    return [$value];
}

function wrapped()
{
    return wrap('text');
}
`

func TestReturnTypePrecedence(t *testing.T) {
	run, _ := newTestRun(t, Config{}, controllerSource)

	testCases := []struct {
		method   string
		expected string
	}{
		{method: "show", expected: "array{id: int}"},
		{method: "list", expected: "array{page: int}"},
		{method: "documented", expected: "array{total: int}"},
		{method: "declared", expected: "int"},
		{method: "items", expected: "array<int|string, unknown>"},
		{method: "recursive", expected: "unknown"},
		{method: "nothing", expected: "void"},
	}

	for _, tc := range testCases {
		t.Run(tc.method, func(t *testing.T) {
			typ, err := run.MethodReturnType("App\\Http\\Controller", tc.method)
			assert.Equal(t, tc.expected, render(t, typ, err))
		})
	}
}

func TestMissingMethod(t *testing.T) {
	run, _ := newTestRun(t, Config{}, controllerSource)
	typ, err := run.MethodReturnType("App\\Http\\Controller", "absent")
	require.NoError(t, err)
	assert.True(t, types.IsUnknown(typ))

	strict, _ := newTestRun(t, Config{Strict: true}, controllerSource)
	_, err = strict.MethodReturnType("App\\Http\\Controller", "absent")
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestFunctionTemplatesBindAtCallSite(t *testing.T) {
	run, _ := newTestRun(t, Config{}, controllerSource)

	wrapped, err := run.FunctionReturnType("App\\Http\\wrapped")
	assert.Equal(t, "list<string>", render(t, wrapped, err))

	unbound, err := run.FunctionReturnType("App\\Http\\wrap")
	assert.Equal(t, "list<unknown>", render(t, unbound, err))
}

func TestUnindexedFunctionIsUnknown(t *testing.T) {
	run, _ := newTestRun(t, Config{Strict: true}, controllerSource)
	typ, err := run.FunctionReturnType("App\\Http\\nowhere")
	require.NoError(t, err)
	assert.True(t, types.IsUnknown(typ))
}

func TestParameterTypes(t *testing.T) {
	run, _ := newTestRun(t, Config{}, controllerSource)

	params, err := run.ParameterTypes("App\\Http\\Controller", "list")
	require.NoError(t, err)
	require.Len(t, params, 4)

	testCases := []struct {
		name     string
		expected string
	}{
		{name: "page", expected: "int"},
		{name: "slug", expected: "string|null"},
		{name: "sort", expected: "string"},
		{name: "tags", expected: "list<string>"},
	}
	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, params[i].Name)
			assert.True(t, params[i].Optional)
			assert.Equal(t, tc.expected, types.Render(params[i].Type))
		})
	}
	assert.Equal(t, "the url slug", params[1].Type.Meta().Description)

	required, err := run.ParameterTypes("App\\Http\\Controller", "show")
	require.NoError(t, err)
	require.Len(t, required, 1)
	assert.False(t, required[0].Optional)
}

type statusHook struct{}

func (statusHook) ThrownType(scope *Scope, thrown types.Type) types.Type {
	obj, ok := thrown.(*types.Object)
	if !ok || !scope.Index().IsSubclassOf(obj.Class(), "RuntimeException") {
		return nil
	}
	return types.Shape(types.ArrayEntry{Key: "status", Type: types.Literal(404)})
}

func TestThrownTypes(t *testing.T) {
	run, _ := newTestRun(t, Config{}, controllerSource)

	thrown, err := run.ThrownTypes("App\\Http\\Controller", "show")
	require.NoError(t, err)
	require.Len(t, thrown, 2)
	assert.Equal(t, "App\\Http\\NotFound", types.Render(thrown[0]))
	assert.Equal(t, "InvalidArgumentException", types.Render(thrown[1]))
	assert.Equal(t, "when the id is negative", thrown[1].Meta().Description)
}

func TestThrowHooks(t *testing.T) {
	index := php.NewIndex(nil)
	t.Cleanup(func() { _ = index.Close() })
	_, err := index.AddSource("controller.php", []byte(controllerSource))
	require.NoError(t, err)

	run, err := NewRun(index, Config{}, WithHooks(statusHook{}))
	require.NoError(t, err)

	thrown, err := run.ThrownTypes("App\\Http\\Controller", "show")
	require.NoError(t, err)
	rendered := make([]string, 0, len(thrown))
	for _, typ := range thrown {
		rendered = append(rendered, types.Render(typ))
	}
	assert.Equal(t, []string{"array{status: 404}", "InvalidArgumentException"}, rendered)
}
