package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopware/php-typeinfer/internal/types"
)

const flowSource = `<?php
function maybe(bool $c)
{
    $a = 1;
    if ($c) {
        $a = 'x';
    }
    return $a;
}

function both(bool $c)
{
    if ($c) {
        $a = 1;
    } else {
        $a = 2;
    }
    return $a;
}

function looped(array $items)
{
    $count = 0;
    foreach ($items as $item) {
        $count = 'many';
    }
    return $count;
}

function build()
{
    $data = [];
    $data['id'] = 1;
    $data['tags'][] = 'new';
    return $data;
}

function split()
{
    [$first, $second] = [1, 'two'];
    ['id' => $id] = ['id' => 5, 'name' => 'x'];
    return [$first, $second, $id];
}

function switched(int $mode)
{
    switch ($mode) {
        case 1:
            $label = 'one';
            break;
        default:
            $label = 'other';
    }
    return $label;
}

function guarded()
{
    try {
        $value = 1;
    } catch (\RuntimeException $e) {
        $value = 'failed';
    }
    return $value;
}

function overridden($input)
{
    /** @var array{id: int} $input */
    return $input;
}

function object()
{
    $o = new \stdClass();
    $o->name = 'n';
    return $o;
}

function coalesced(?string $name)
{
    $name ??= 'anonymous';
    return $name;
}
`

func TestFunctionReturnFlow(t *testing.T) {
	run, _ := newTestRun(t, Config{}, flowSource)

	testCases := []struct {
		function string
		expected string
	}{
		{function: "maybe", expected: "1|'x'"},
		{function: "both", expected: "1|2"},
		{function: "looped", expected: "0|'many'"},
		{function: "build", expected: "array{id: 1, tags: array{0: 'new'}}"},
		{function: "split", expected: "array{0: 1, 1: 'two', 2: 5}"},
		{function: "switched", expected: "'one'|'other'"},
		{function: "guarded", expected: "1|'failed'"},
		{function: "overridden", expected: "array{id: int}"},
		{function: "object", expected: "stdClass"},
		{function: "coalesced", expected: "string"},
	}

	for _, tc := range testCases {
		t.Run(tc.function, func(t *testing.T) {
			typ, err := run.FunctionReturnType(tc.function)
			assert.Equal(t, tc.expected, render(t, typ, err))
		})
	}
}

func TestEarlyReturnNarrowsLaterReads(t *testing.T) {
	src := `<?php
function early(bool $c)
{
    $a = 1;
    if ($c) {
        $a = 'x';
        return $a;
    }
    return $a;
}
`
	run, index := newTestRun(t, Config{}, src)
	returns := returnedExpressions(t, index, "file0.php")
	require.Len(t, returns, 2)

	file := index.File("file0.php")
	inside, err := run.Resolve(file, returns[0])
	assert.Equal(t, "'x'", render(t, inside, err))

	after, err := run.Resolve(file, returns[1])
	assert.Equal(t, "1", render(t, after, err))

	whole, err := run.FunctionReturnType("early")
	assert.Equal(t, "'x'|1", render(t, whole, err))
}

func TestStdClassPropertyWrites(t *testing.T) {
	run, _ := newTestRun(t, Config{}, flowSource)

	typ, err := run.FunctionReturnType("object")
	require.NoError(t, err)
	obj, ok := typ.(*types.Object)
	require.True(t, ok)
	name, ok := obj.Property("name")
	require.True(t, ok)
	assert.Equal(t, "'n'", types.Render(name.Type))
}

func TestForeachBindsKeyAndValue(t *testing.T) {
	src := `<?php
/**
 * @param list<array{id: int}> $rows
 */
function ids(array $rows)
{
    foreach ($rows as $key => $row) {
        $last = $key;
        $current = $row;
    }
}
`
	run, index := newTestRun(t, Config{}, src)
	file := index.File("file0.php")

	assignments := nodesOfKind(t, index, "file0.php", "assignment_expression")
	require.Len(t, assignments, 2)

	key, err := run.Resolve(file, assignments[0].ChildByFieldName("right"))
	assert.Equal(t, "int", render(t, key, err))

	row, err := run.Resolve(file, assignments[1].ChildByFieldName("right"))
	assert.Equal(t, "array{id: int}", render(t, row, err))
}

func TestClosureVariables(t *testing.T) {
	src := `<?php
function closures()
{
    $factor = 3;
    $double = function (int $x) use ($factor) {
        return $factor;
    };
    $arrow = fn () => $factor;
}
`
	run, index := newTestRun(t, Config{}, src)
	file := index.File("file0.php")

	returns := returnedExpressions(t, index, "file0.php")
	require.Len(t, returns, 1)
	used, err := run.Resolve(file, returns[0])
	assert.Equal(t, "3", render(t, used, err))

	arrows := nodesOfKind(t, index, "file0.php", "arrow_function")
	require.Len(t, arrows, 1)
	captured, err := run.Resolve(file, arrows[0].ChildByFieldName("body"))
	assert.Equal(t, "3", render(t, captured, err))
}

func TestCaughtExceptionVariable(t *testing.T) {
	src := `<?php
function failing()
{
    try {
        $result = 1;
    } catch (\RuntimeException|\LogicException $e) {
        $error = $e;
    }
}
`
	run, index := newTestRun(t, Config{}, src)
	file := index.File("file0.php")

	assignments := nodesOfKind(t, index, "file0.php", "assignment_expression")
	require.Len(t, assignments, 2)

	caught, err := run.Resolve(file, assignments[1].ChildByFieldName("right"))
	assert.Equal(t, "RuntimeException|LogicException", render(t, caught, err))
}

func TestReadBeforeAnyWriteIsUnknown(t *testing.T) {
	src := `<?php
function undefined()
{
    return $nothing;
}
`
	run, _ := newTestRun(t, Config{}, src)
	typ, err := run.FunctionReturnType("undefined")
	require.NoError(t, err)
	assert.True(t, types.IsUnknown(typ))
}
