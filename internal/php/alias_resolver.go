package php

import (
	"strings"
)

// AliasResolver handles the resolution of PHP type aliases to their fully qualified class names (FQCN).
// It provides methods to resolve PHP types based on namespace, use statements, and aliases.
type AliasResolver struct {
	// Map of alias name to fully qualified class name
	aliases map[string]string
	// Map of class name to fully qualified class name
	useStatements map[string]string
	// Map of imported function name to fully qualified function name
	functions map[string]string
	// Current namespace
	currentNamespace string
}

// NewAliasResolver creates a new alias resolver with the given namespace, use statements, and aliases.
func NewAliasResolver(namespace string, useStatements, aliases map[string]string) *AliasResolver {
	if useStatements == nil {
		useStatements = map[string]string{}
	}
	if aliases == nil {
		aliases = map[string]string{}
	}
	return &AliasResolver{
		aliases:          aliases,
		useStatements:    useStatements,
		functions:        map[string]string{},
		currentNamespace: namespace,
	}
}

// Namespace returns the namespace the resolver was created for.
func (r *AliasResolver) Namespace() string {
	if r == nil {
		return ""
	}
	return r.currentNamespace
}

// ResolveType resolves a PHP type name to its fully qualified class name (FQCN).
// It handles various PHP type resolution scenarios including:
// - Primitive types (string, int, etc.)
// - Special types (self, static, etc.)
// - Fully qualified names (leading backslash is stripped)
// - Aliased types (from "use X as Y" statements)
// - Imported types (from "use X" statements, also as prefix of a qualified name)
// - Types in the current namespace
func (r *AliasResolver) ResolveType(typeName string) string {
	if strings.HasPrefix(typeName, "\\") {
		return strings.TrimPrefix(typeName, "\\")
	}

	// Skip resolution for primitive types and special types
	if IsPrimitiveType(typeName) || IsSpecialType(typeName) {
		return typeName
	}
	if r == nil {
		return typeName
	}

	// A qualified name resolves its first segment through the imports
	if first, rest, ok := strings.Cut(typeName, "\\"); ok {
		if fqcn, ok := r.lookup(first); ok {
			return fqcn + "\\" + rest
		}
		if r.currentNamespace != "" {
			return r.currentNamespace + "\\" + typeName
		}
		return typeName
	}

	if fqcn, ok := r.lookup(typeName); ok {
		return fqcn
	}

	// If not found in aliases or use statements, assume it's in the current namespace
	if r.currentNamespace != "" {
		return r.currentNamespace + "\\" + typeName
	}

	return typeName
}

// ResolveFunction resolves a called function name. Unqualified names that were not
// imported stay unqualified so the caller can fall back to the global function.
func (r *AliasResolver) ResolveFunction(name string) string {
	if strings.HasPrefix(name, "\\") {
		return strings.TrimPrefix(name, "\\")
	}
	if r == nil {
		return name
	}
	if fqn, ok := r.functions[strings.ToLower(name)]; ok {
		return fqn
	}
	if strings.Contains(name, "\\") {
		return r.ResolveType(name)
	}
	return name
}

// Namespaced returns name inside the current namespace.
func (r *AliasResolver) Namespaced(name string) string {
	if r == nil || r.currentNamespace == "" {
		return name
	}
	return r.currentNamespace + "\\" + name
}

func (r *AliasResolver) lookup(name string) (string, bool) {
	if fqcn, ok := r.aliases[name]; ok {
		return fqcn, true
	}
	if fqcn, ok := r.useStatements[name]; ok {
		return fqcn, true
	}
	// PHP class names are case-insensitive
	lower := strings.ToLower(name)
	for alias, fqcn := range r.aliases {
		if strings.ToLower(alias) == lower {
			return fqcn, true
		}
	}
	for short, fqcn := range r.useStatements {
		if strings.ToLower(short) == lower {
			return fqcn, true
		}
	}
	return "", false
}

// IsPrimitiveType checks if the given type is a PHP primitive or PHPDoc pseudo type.
// Such types don't need to be resolved to FQCNs.
func IsPrimitiveType(typeName string) bool {
	switch strings.ToLower(typeName) {
	case "string", "int", "integer", "float", "double", "bool", "boolean",
		"array", "object", "callable", "iterable", "void", "null",
		"mixed", "never", "resource", "false", "true", "number", "numeric",
		"scalar", "list", "non-empty-array", "non-empty-list", "positive-int",
		"negative-int", "non-negative-int", "non-positive-int", "non-empty-string",
		"numeric-string", "lowercase-string", "literal-string", "non-falsy-string",
		"truthy-string", "callable-string", "array-key", "class-string",
		"interface-string", "trait-string", "enum-string", "key-of", "value-of",
		"int-mask", "int-mask-of", "noreturn", "never-return", "never-returns",
		"no-return", "empty", "closed-resource", "open-resource", "pure-callable",
		"iterable-object", "associative-array":
		return true
	default:
		return false
	}
}

// IsSpecialType checks if the given type is a PHP special type.
// PHP special types are keywords that refer to the current class context.
func IsSpecialType(typeName string) bool {
	switch strings.ToLower(typeName) {
	case "self", "static", "parent", "$this":
		return true
	default:
		return false
	}
}
