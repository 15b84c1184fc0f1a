package php

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopware/php-typeinfer/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassIndexerWithScanner(t *testing.T) {
	root := t.TempDir()
	cacheDir := t.TempDir()

	controller := filepath.Join(root, "src", "Controller", "ProductController.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(controller), 0o755))
	require.NoError(t, os.WriteFile(controller, []byte(`<?php
namespace App\Controller;

use App\Entity\Product;

class ProductController
{
    public function show(): Product
    {
        return new Product();
    }
}

function helper(): int { return 1; }
`), 0o644))

	entity := filepath.Join(root, "src", "Entity", "Product.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(entity), 0o755))
	require.NoError(t, os.WriteFile(entity, []byte(`<?php
namespace App\Entity;

enum Kind: string { case Physical = 'physical'; }

class Product
{
    public int $id;
    public Kind $kind;
}
`), 0o644))

	classIndexer, err := NewClassIndexer(cacheDir)
	require.NoError(t, err)

	scanner, err := indexer.NewFileScanner(root, filepath.Join(cacheDir, "files.db"), nil)
	require.NoError(t, err)
	defer scanner.Close()
	scanner.AddIndexer(classIndexer)

	require.NoError(t, scanner.IndexAll(context.Background()))

	path, ok := classIndexer.ClassFile("\\App\\Entity\\Product")
	require.True(t, ok)
	assert.Equal(t, entity, path)

	path, ok = classIndexer.FunctionFile("App\\Controller\\helper")
	require.True(t, ok)
	assert.Equal(t, controller, path)

	_, ok = classIndexer.ClassFile("App\\Entity\\Missing")
	assert.False(t, ok)

	names, err := classIndexer.ClassNames()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"App\\Controller\\ProductController", "App\\Entity\\Kind", "App\\Entity\\Product"}, names)

	inEntity, err := classIndexer.ClassesInNamespace("App\\Entity")
	require.NoError(t, err)
	require.Len(t, inEntity, 2)
	assert.Equal(t, "App\\Entity\\Kind", inEntity[0].Name)
	assert.Equal(t, "enum", inEntity[0].Kind)
	assert.Equal(t, 4, inEntity[0].Line)

	idx := NewIndex(nil)
	defer idx.Close()
	idx.SetLocator(classIndexer)

	product := idx.GetClass("App\\Entity\\Product")
	require.NotNil(t, product)
	assert.Equal(t, "App\\Entity\\Kind", product.Resolver.ResolveType("Kind"))
	assert.NotNil(t, idx.GetClass("App\\Entity\\Kind"))
	assert.NotNil(t, idx.GetFunction("App\\Controller\\helper"))

	require.NoError(t, scanner.RemoveFiles(context.Background(), []string{entity}))
	_, ok = classIndexer.ClassFile("App\\Entity\\Product")
	assert.False(t, ok)
}
