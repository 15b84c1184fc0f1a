package php

import (
	"testing"
)

// BenchmarkTreeSitterParsing measures raw tree-sitter parsing time
func BenchmarkTreeSitterParsing(b *testing.B) {
	content := []byte(productLoader)

	parser, err := NewParser()
	if err != nil {
		b.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree := parser.Parse(content, nil)
		tree.Close()
	}
}

// BenchmarkParseFile measures parsing plus declaration extraction
func BenchmarkParseFile(b *testing.B) {
	content := []byte(productLoader)

	parser, err := NewParser()
	if err != nil {
		b.Fatalf("Failed to create parser: %v", err)
	}
	defer parser.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f := ParseFile(parser, "ProductLoader.php", content)
		f.Close()
	}
}

// BenchmarkIndexLookup measures inherited member lookups on a warm index
func BenchmarkIndexLookup(b *testing.B) {
	idx := NewIndex(nil)
	defer idx.Close()
	if _, err := idx.AddSource("ProductLoader.php", []byte(productLoader)); err != nil {
		b.Fatalf("Failed to add source: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if idx.GetMethod("App\\Service\\ProductLoader", "load") == nil {
			b.Fatal("method not found")
		}
		if idx.GetProperty("App\\Service\\ProductLoader", "repository") == nil {
			b.Fatal("property not found")
		}
	}
}
