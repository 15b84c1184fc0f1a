package infer

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap/zaptest"

	"github.com/shopware/php-typeinfer/internal/php"
	treesitterhelper "github.com/shopware/php-typeinfer/internal/tree_sitter_helper"
	"github.com/shopware/php-typeinfer/internal/types"
)

// newTestRun indexes sources as file0.php, file1.php, ... and creates a run
// over them.
func newTestRun(t *testing.T, cfg Config, sources ...string) (*Run, *php.Index) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	index := php.NewIndex(logger)
	t.Cleanup(func() { _ = index.Close() })

	for i, src := range sources {
		_, err := index.AddSource(fmt.Sprintf("file%d.php", i), []byte(src))
		require.NoError(t, err)
	}

	run, err := NewRun(index, cfg, WithLogger(logger))
	require.NoError(t, err)
	return run, index
}

// nodesOfKind returns every node of kind in the file at path, in source order.
func nodesOfKind(t *testing.T, index *php.Index, path, kind string) []*tree_sitter.Node {
	t.Helper()
	f := index.File(path)
	require.NotNil(t, f, "file %s not indexed", path)
	return treesitterhelper.FindAll(f.Root(), treesitterhelper.NodeKind(kind), f.Content)
}

// returnedExpressions returns the expressions of the return statements of the
// file at path, in source order.
func returnedExpressions(t *testing.T, index *php.Index, path string) []*tree_sitter.Node {
	t.Helper()
	var out []*tree_sitter.Node
	for _, ret := range nodesOfKind(t, index, path, "return_statement") {
		if expr := firstNamed(ret); expr != nil {
			out = append(out, expr)
		}
	}
	return out
}

func render(t *testing.T, typ types.Type, err error) string {
	t.Helper()
	require.NoError(t, err)
	return types.Render(typ)
}

const missingClassSource = `<?php

namespace App;

class Holder
{
    public Missing $missing;

    public int $id = 0;
}
`

func TestMissingClassLenientAndStrict(t *testing.T) {
	t.Run("lenient", func(t *testing.T) {
		run, _ := newTestRun(t, Config{}, missingClassSource)

		typ, err := run.ClassType("App\\Missing")
		require.NoError(t, err)
		assert.True(t, types.IsUnknown(typ))

		holder, err := run.ClassType("App\\Holder")
		require.NoError(t, err)
		obj, ok := holder.(*types.Object)
		require.True(t, ok)
		missing, ok := obj.Property("missing")
		require.True(t, ok)
		assert.True(t, types.IsUnknown(missing.Type))
	})

	t.Run("strict", func(t *testing.T) {
		run, _ := newTestRun(t, Config{Strict: true}, missingClassSource)

		_, err := run.ClassType("App\\Missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClassNotFound)
		assert.Contains(t, err.Error(), "App\\Missing")

		_, err = run.ClassType("App\\Holder")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "App\\Missing")

		var inferErr *Error
		require.True(t, errors.As(err, &inferErr))
		assert.Contains(t, inferErr.Location, "file0.php")
	})
}

func TestStrictErrorListsSteps(t *testing.T) {
	src := `<?php
function rows()
{
    return ['a' => new Unknown()];
}

class Users
{
    public function first()
    {
        return new Missing();
    }

    public function all()
    {
        return [$this->first()];
    }
}
`
	run, _ := newTestRun(t, Config{Strict: true}, src)

	testCases := []struct {
		name     string
		resolve  func() (types.Type, error)
		steps    []string
		location string
		message  string
	}{
		{
			name:     "function",
			resolve:  func() (types.Type, error) { return run.FunctionReturnType("rows") },
			steps:    []string{"resolving return type of rows", "resolving array type"},
			location: "file0.php:4",
			message:  "resolving return type of rows: resolving array type: file0.php:4: class not found: Unknown",
		},
		{
			name:     "method",
			resolve:  func() (types.Type, error) { return run.MethodReturnType("Users", "first") },
			steps:    []string{"resolving return type of Users::first"},
			location: "file0.php:11",
			message:  "resolving return type of Users::first: file0.php:11: class not found: Missing",
		},
		{
			name:    "nested method",
			resolve: func() (types.Type, error) { return run.MethodReturnType("Users", "all") },
			steps: []string{
				"resolving return type of Users::all",
				"resolving array type",
				"resolving return type of Users::first",
			},
			location: "file0.php:11",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.resolve()
			require.Error(t, err)

			var inferErr *Error
			require.True(t, errors.As(err, &inferErr))
			assert.Equal(t, tc.steps, inferErr.Steps)
			assert.Equal(t, tc.location, inferErr.Location)
			if tc.message != "" {
				assert.Equal(t, tc.message, err.Error())
			}
		})
	}
}

func TestStrictErrorListsClassAndPropertySteps(t *testing.T) {
	src := `<?php

namespace App;

class Holder
{
    public $code = Gone::CODE;
}
`
	run, _ := newTestRun(t, Config{Strict: true}, src)

	_, err := run.ClassType("App\\Holder")
	require.Error(t, err)

	var inferErr *Error
	require.True(t, errors.As(err, &inferErr))
	assert.Equal(t, []string{"resolving class App\\Holder", "resolving property App\\Holder::$code"}, inferErr.Steps)
	assert.Equal(t, "file0.php:7", inferErr.Location)
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestUnknownExtensionFailsRun(t *testing.T) {
	index := php.NewIndex(nil)
	_, err := NewRun(index, Config{Extensions: []string{"does-not-exist"}})
	assert.ErrorIs(t, err, ErrUnknownExtension)
}

func TestResetDropsCaches(t *testing.T) {
	src := `<?php
class Counter
{
    public int $count = 0;
}
`
	run, index := newTestRun(t, Config{}, src)

	first, err := run.ClassType("Counter")
	require.NoError(t, err)
	assert.Equal(t, "Counter", types.Render(first))
	assert.NotEmpty(t, run.classes)

	_, err = index.AddSource("file0.php", []byte(`<?php
class Counter
{
    public string $label = '';
}
`))
	require.NoError(t, err)

	run.Reset()
	assert.Empty(t, run.classes)

	second, err := run.ClassType("Counter")
	require.NoError(t, err)
	obj := second.(*types.Object)
	assert.Equal(t, []string{"label"}, obj.PropertyNames())
}

func TestEntryPointsAreSafeForConcurrentUse(t *testing.T) {
	src := `<?php
class Item
{
    public int $id = 0;

    /** @var list<string> */
    public array $tags = [];
}
`
	run, _ := newTestRun(t, Config{}, src)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			typ, err := run.PropertyType("Item", "tags")
			if err == nil {
				results[i] = types.Render(typ)
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "list<string>", r)
	}
}

func TestPendingTypesOutliveTheEntryPoint(t *testing.T) {
	run, _ := newTestRun(t, Config{Strict: true}, `<?php
class Item
{
    public int $id = 0;
}
`)

	const depth = types.DefaultDeepLimit + 6
	typ, err := run.enter(func() types.Type {
		var nested types.Type = run.lazy("gone", func() types.Type {
			return run.fail(Context{}, nil, classNotFound("Gone"))
		})
		for range depth {
			nested = types.List(nested)
		}
		return nested
	})
	require.NoError(t, err)

	leaf := typ
	for range depth {
		list, ok := types.Unwrap(leaf).(*types.Array)
		require.True(t, ok)
		leaf = list.Item()
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = run.PropertyType("Item", "id")
		}()
	}
	assert.NotPanics(t, func() {
		assert.True(t, types.IsUnknown(types.Unwrap(leaf)))
	})
	wg.Wait()
}
