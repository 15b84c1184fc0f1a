package php

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasResolver(t *testing.T) {
	tests := []struct {
		name           string
		namespace      string
		useStatements  map[string]string
		aliases        map[string]string
		typeName       string
		expectedResult string
	}{
		{
			name:           "Primitive type",
			namespace:      "App\\Controller",
			typeName:       "string",
			expectedResult: "string",
		},
		{
			name:           "Special type",
			namespace:      "App\\Controller",
			typeName:       "self",
			expectedResult: "self",
		},
		{
			name:      "Use statement",
			namespace: "App\\Controller",
			useStatements: map[string]string{
				"Request": "Symfony\\Component\\HttpFoundation\\Request",
			},
			typeName:       "Request",
			expectedResult: "Symfony\\Component\\HttpFoundation\\Request",
		},
		{
			name:      "Use statement is case insensitive",
			namespace: "App\\Controller",
			useStatements: map[string]string{
				"Request": "Symfony\\Component\\HttpFoundation\\Request",
			},
			typeName:       "request",
			expectedResult: "Symfony\\Component\\HttpFoundation\\Request",
		},
		{
			name:      "Alias",
			namespace: "App\\Controller",
			aliases: map[string]string{
				"HttpRequest": "Symfony\\Component\\HttpFoundation\\Request",
			},
			typeName:       "HttpRequest",
			expectedResult: "Symfony\\Component\\HttpFoundation\\Request",
		},
		{
			name:           "Current namespace",
			namespace:      "App\\Controller",
			typeName:       "ProductController",
			expectedResult: "App\\Controller\\ProductController",
		},
		{
			name:           "Leading backslash is fully qualified",
			namespace:      "App\\Controller",
			typeName:       "\\App\\Entity\\User",
			expectedResult: "App\\Entity\\User",
		},
		{
			name:      "Qualified name through import",
			namespace: "App\\Controller",
			useStatements: map[string]string{
				"Entity": "App\\Entity",
			},
			typeName:       "Entity\\User",
			expectedResult: "App\\Entity\\User",
		},
		{
			name:           "Qualified name relative to namespace",
			namespace:      "App",
			typeName:       "Entity\\User",
			expectedResult: "App\\Entity\\User",
		},
		{
			name:           "No namespace",
			typeName:       "ProductEntity",
			expectedResult: "ProductEntity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewAliasResolver(tt.namespace, tt.useStatements, tt.aliases)
			result := resolver.ResolveType(tt.typeName)
			assert.Equal(t, tt.expectedResult, result)
		})
	}
}

func TestAliasResolverNilIsPassThrough(t *testing.T) {
	var resolver *AliasResolver
	assert.Equal(t, "User", resolver.ResolveType("User"))
	assert.Equal(t, "App\\User", resolver.ResolveType("\\App\\User"))
	assert.Equal(t, "", resolver.Namespace())
}

func TestResolveFunction(t *testing.T) {
	resolver := NewAliasResolver("App", nil, nil)
	resolver.functions["helper"] = "App\\Util\\helper"

	assert.Equal(t, "App\\Util\\helper", resolver.ResolveFunction("helper"))
	assert.Equal(t, "array_map", resolver.ResolveFunction("array_map"))
	assert.Equal(t, "strlen", resolver.ResolveFunction("\\strlen"))
	assert.Equal(t, "App\\Util\\fn", resolver.ResolveFunction("Util\\fn"))
}

func TestIsPrimitiveType(t *testing.T) {
	primitiveTypes := []string{
		"string", "int", "integer", "float", "double", "bool", "boolean",
		"array", "object", "callable", "iterable", "void", "null",
		"mixed", "never", "resource", "false", "true", "number",
		"non-empty-string", "list", "array-key", "class-string", "Int",
	}

	for _, typeName := range primitiveTypes {
		t.Run(typeName, func(t *testing.T) {
			assert.True(t, IsPrimitiveType(typeName))
		})
	}

	nonPrimitiveTypes := []string{
		"Request", "ProductEntity", "App\\Entity\\ProductEntity",
		"self", "static", "parent", "$this",
	}

	for _, typeName := range nonPrimitiveTypes {
		t.Run(typeName, func(t *testing.T) {
			assert.False(t, IsPrimitiveType(typeName))
		})
	}
}

func TestIsSpecialType(t *testing.T) {
	for _, typeName := range []string{"self", "static", "parent", "$this", "Static"} {
		t.Run(typeName, func(t *testing.T) {
			assert.True(t, IsSpecialType(typeName))
		})
	}

	for _, typeName := range []string{"string", "int", "Request", "App\\Entity\\ProductEntity"} {
		t.Run(typeName, func(t *testing.T) {
			assert.False(t, IsSpecialType(typeName))
		})
	}
}

func BenchmarkResolveType(b *testing.B) {
	namespace := "App\\Controller\\Admin"
	useStatements := map[string]string{
		"Request":          "Symfony\\Component\\HttpFoundation\\Request",
		"Response":         "Symfony\\Component\\HttpFoundation\\Response",
		"EntityRepository": "Doctrine\\ORM\\EntityRepository",
	}
	aliases := map[string]string{
		"HttpRequest": "Symfony\\Component\\HttpFoundation\\Request",
	}

	resolver := NewAliasResolver(namespace, useStatements, aliases)
	types := []string{"Request", "Response", "EntityRepository", "UserController", "HttpRequest", "string", "int"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, typeName := range types {
			_ = resolver.ResolveType(typeName)
		}
	}
}
