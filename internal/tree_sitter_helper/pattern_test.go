package treesitterhelper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

func parsePHP(t *testing.T, code string) (*tree_sitter.Tree, []byte) {
	t.Helper()
	parser := tree_sitter.NewParser()
	defer parser.Close()
	require.NoError(t, parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())))

	content := []byte(code)
	tree := parser.Parse(content, nil)
	t.Cleanup(tree.Close)
	return tree, content
}

func TestPHPTerminatorPattern(t *testing.T) {
	tree, content := parsePHP(t, `<?php
	return 1;
	throw new \Exception();
	exit(1);
	die('x');
	exiting();
	`)

	matches := FindAll(tree.RootNode(), PHPTerminatorPattern, content)
	require.Len(t, matches, 4)
	assert.Equal(t, "return_statement", matches[0].Kind())
	assert.Equal(t, "throw_expression", matches[1].Kind())
	assert.True(t, strings.HasPrefix(string(matches[2].Utf8Text(content)), "exit(1)"))
	assert.True(t, strings.HasPrefix(string(matches[3].Utf8Text(content)), "die('x')"))

	first := FindFirst(tree.RootNode(), Or(PHPThrowPattern, PHPExitPattern), content)
	require.NotNil(t, first)
	assert.Equal(t, "throw_expression", first.Kind())
}

func TestFindAllInScope(t *testing.T) {
	tree, content := parsePHP(t, `<?php
function outer() {
    if ($a) {
        return 1;
    }
    $f = function () { return 2; };
    $g = fn () => 3;
    return 4;
}
`)

	fn := FindFirst(tree.RootNode(), NodeKind("function_definition"), content)
	require.NotNil(t, fn)

	returns := FindAllInScope(fn.ChildByFieldName("body"), PHPReturnPattern, content)
	require.Len(t, returns, 2)
	assert.Equal(t, "return 1;", string(returns[0].Utf8Text(content)))
	assert.Equal(t, "return 4;", string(returns[1].Utf8Text(content)))

	all := FindAll(fn.ChildByFieldName("body"), PHPReturnPattern, content)
	assert.Len(t, all, 3)
}

func TestTerminates(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected bool
	}{
		{"return", `return 1;`, true},
		{"throw", `throw new \Exception();`, true},
		{"exit call", `exit(1);`, true},
		{"die", `die('x');`, true},
		{"assignment", `$a = 1;`, false},
		{"block ending in return", `{ $a = 1; return $a; }`, true},
		{"if without else", `if ($a) { return 1; }`, false},
		{"if else both return", `if ($a) { return 1; } else { throw new \Exception(); }`, true},
		{"if elseif else mixed", `if ($a) { return 1; } elseif ($b) { $c = 1; } else { return 2; }`, false},
		{"try catch", `try { return 1; } catch (\Exception $e) { return 2; }`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, content := parsePHP(t, "<?php\n"+tt.code)
			root := tree.RootNode()
			stmt := root.NamedChild(root.NamedChildCount() - 1)
			assert.Equal(t, tt.expected, Terminates(stmt, content))
		})
	}
}

func TestEnclosingScope(t *testing.T) {
	tree, content := parsePHP(t, `<?php
class A {
    public function run() {
        $x = function () { return $y; };
    }
}
`)

	y := FindFirst(tree.RootNode(), And(NodeKind("variable_name"), FuncPattern(func(node *tree_sitter.Node, content []byte) bool {
		return string(node.Utf8Text(content)) == "$y"
	})), content)
	require.NotNil(t, y)

	scope := EnclosingScope(y, content)
	require.NotNil(t, scope)
	assert.Equal(t, "anonymous_function", scope.Kind())

	method := EnclosingScope(scope, content)
	require.NotNil(t, method)
	assert.Equal(t, "method_declaration", method.Kind())
	assert.True(t, Contains(method, y))
	assert.False(t, Contains(y, method))
}
