package php

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productLoader = `<?php

namespace App\Service;

use App\Entity\Product;
use Doctrine\ORM\EntityRepository as Repository;
use function App\Util\slugify;

/**
 * Loads products.
 */
final class ProductLoader extends BaseLoader implements LoaderInterface, \Countable
{
    use LoggerTrait;

    public const DEFAULT_LIMIT = 10;

    /** @var list<Product> */
    private array $loaded = [];

    public ?string $label = null, $other;

    public function __construct(
        private readonly Repository $repository,
        public int $limit = 10,
    ) {
    }

    /**
     * @return list<Product>
     */
    public function load(int $id, string ...$tags): array
    {
        return [];
    }

    protected static function validateId(int $id): bool
    {
        return $id > 0;
    }

    public function count(): int
    {
        return 0;
    }
}

enum Status: string
{
    case Active = 'active';
    case Inactive = 'inactive';
}

function helper(int $a): int
{
    return $a;
}
`

func TestParseFileExtractsClasses(t *testing.T) {
	f, err := ParseSource("ProductLoader.php", []byte(productLoader))
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, f.Classes, 2)
	class := f.Classes[0]

	assert.Equal(t, "App\\Service\\ProductLoader", class.Name)
	assert.Equal(t, "ProductLoader", class.ShortName())
	assert.Equal(t, 12, class.Line)
	assert.Equal(t, "App\\Service\\BaseLoader", class.Parent)
	assert.Equal(t, []string{"App\\Service\\LoaderInterface", "Countable"}, class.Interfaces)
	assert.Equal(t, []string{"App\\Service\\LoggerTrait"}, class.Traits)
	assert.Equal(t, "Loads products.", class.Doc.Summary)
	assert.Contains(t, class.Constants, "DEFAULT_LIMIT")

	assert.Equal(t, []string{"loaded", "label", "other", "repository", "limit"}, class.PropertyOrder)

	loaded := class.Properties["loaded"]
	assert.Equal(t, Private, loaded.Visibility)
	assert.Equal(t, "array", loaded.Type.String())
	v, ok := loaded.Doc.Var("loaded")
	require.True(t, ok)
	assert.Equal(t, "list<Product>", v.Type.String())
	assert.NotNil(t, loaded.Default)

	assert.Equal(t, "?string", class.Properties["label"].Type.String())
	assert.Equal(t, "?string", class.Properties["other"].Type.String())

	repo := class.Properties["repository"]
	assert.True(t, repo.Promoted)
	assert.True(t, repo.ReadOnly)
	assert.Equal(t, Private, repo.Visibility)
	assert.Equal(t, "Repository", repo.Type.String())
	assert.Equal(t, "Doctrine\\ORM\\EntityRepository", class.Resolver.ResolveType("Repository"))

	load := class.Method("load")
	require.NotNil(t, load)
	assert.Equal(t, "array", load.ReturnType.String())
	require.Len(t, load.Params, 2)
	assert.Equal(t, "id", load.Params[0].Name)
	assert.True(t, load.Params[1].Variadic)
	ret, ok := load.Doc.Return()
	require.True(t, ok)
	assert.Equal(t, "list<Product>", ret.Type.String())
	assert.NotNil(t, load.Body)

	validate := class.Method("VALIDATEID")
	require.NotNil(t, validate)
	assert.Equal(t, Protected, validate.Visibility)
	assert.True(t, validate.Static)

	assert.Equal(t, "App\\Util\\slugify", class.Resolver.ResolveFunction("slugify"))
}

func TestParseFileExtractsEnumsAndFunctions(t *testing.T) {
	f, err := ParseSource("ProductLoader.php", []byte(productLoader))
	require.NoError(t, err)
	defer f.Close()

	enum := f.Classes[1]
	assert.Equal(t, "App\\Service\\Status", enum.Name)
	assert.True(t, enum.IsEnum())
	assert.Equal(t, "string", enum.EnumBacking)
	require.Len(t, enum.Cases, 2)
	assert.Equal(t, "Active", enum.Cases[0].Name)
	assert.Equal(t, "'active'", f.Text(enum.Cases[0].Value))
	assert.NotNil(t, enum.Case("Inactive"))

	require.Len(t, f.Functions, 1)
	assert.Equal(t, "App\\Service\\helper", f.Functions[0].Name)
	assert.Equal(t, "int", f.Functions[0].ReturnType.String())
}

func TestParseFileGroupUse(t *testing.T) {
	source := `<?php
namespace App\Controller;

use Symfony\Component\HttpFoundation\{Request, Response as HttpResponse};

class TestController
{
    public Request $request;
    public HttpResponse $response;
}
`
	f, err := ParseSource("TestController.php", []byte(source))
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, f.Classes, 1)
	resolver := f.Classes[0].Resolver
	assert.Equal(t, "Symfony\\Component\\HttpFoundation\\Request", resolver.ResolveType("Request"))
	assert.Equal(t, "Symfony\\Component\\HttpFoundation\\Response", resolver.ResolveType("HttpResponse"))
}

func TestInterfaceIndexing(t *testing.T) {
	source := `<?php
namespace App\Interfaces;

interface CustomInterface extends \Traversable, LoggerInterface
{
    public function getCustomValue(): string;
    public function setCustomValue(string $value): void;
}
`
	f, err := ParseSource("CustomInterface.php", []byte(source))
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, f.Classes, 1)
	iface := f.Classes[0]
	assert.True(t, iface.IsInterface())
	assert.Equal(t, []string{"Traversable", "App\\Interfaces\\LoggerInterface"}, iface.Interfaces)
	assert.Empty(t, iface.Parent)
	assert.Len(t, iface.Methods, 2)
	assert.True(t, iface.Method("getCustomValue").Abstract)
	assert.Empty(t, iface.Properties)
}

func TestIndexLookupsFollowInheritance(t *testing.T) {
	idx := NewIndex(nil)
	defer idx.Close()

	_, err := idx.AddSource("base.php", []byte(`<?php
namespace App;
trait Named { public string $name; public function getName(): string { return $this->name; } }
interface HasId { const PREFIX = 'id_'; public function getId(): int; }
abstract class Base implements HasId { use Named; public int $id; }
`))
	require.NoError(t, err)
	_, err = idx.AddSource("product.php", []byte(`<?php
namespace App;
class Product extends Base { public float $price; public function getId(): int { return 1; } }
`))
	require.NoError(t, err)

	assert.NotNil(t, idx.GetClass("\\App\\Product"))
	assert.NotNil(t, idx.GetClass("app\\product"))
	assert.NotNil(t, idx.GetProperty("App\\Product", "id"))
	assert.NotNil(t, idx.GetProperty("App\\Product", "name"))
	assert.Nil(t, idx.GetProperty("App\\Product", "missing"))

	getName := idx.GetMethod("App\\Product", "getName")
	require.NotNil(t, getName)
	assert.Equal(t, "App\\Named", getName.Class)
	assert.Equal(t, "App\\Product", idx.GetMethod("App\\Product", "getId").Class)
	assert.NotNil(t, idx.GetConstant("App\\Product", "PREFIX"))

	ancestors := idx.Ancestors("App\\Product")
	require.Len(t, ancestors, 1)
	assert.Equal(t, "App\\Base", ancestors[0].Name)
	assert.True(t, idx.IsSubclassOf("App\\Product", "App\\HasId"))
	assert.False(t, idx.IsSubclassOf("App\\Base", "App\\Product"))

	assert.Equal(t, []string{"App\\Base", "App\\HasId", "App\\Named", "App\\Product"}, idx.GetClassNames())

	idx.RemoveFile("product.php")
	assert.Nil(t, idx.GetClass("App\\Product"))
}

func TestIndexLoadDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "A.php"), []byte("<?php\nclass A {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "b.php"), []byte("<?php\nfunction b() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "C.php"), []byte("<?php\nclass C {}\n"), 0o644))

	idx := NewIndex(nil)
	defer idx.Close()
	require.NoError(t, idx.LoadDir(context.Background(), root))

	assert.NotNil(t, idx.GetClass("A"))
	assert.NotNil(t, idx.GetFunction("b"))
	assert.Nil(t, idx.GetClass("C"))
}

type mapLocator map[string]string

func (m mapLocator) ClassFile(name string) (string, bool) {
	path, ok := m[name]
	return path, ok
}

func (m mapLocator) FunctionFile(name string) (string, bool) {
	return "", false
}

func TestIndexLoadsLocatedClasses(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Lazy.php")
	require.NoError(t, os.WriteFile(path, []byte("<?php\nnamespace App;\nclass Lazy { public int $id; }\n"), 0o644))

	idx := NewIndex(nil)
	defer idx.Close()
	idx.SetLocator(mapLocator{"App\\Lazy": path})

	class := idx.GetClass("App\\Lazy")
	require.NotNil(t, class)
	assert.Contains(t, class.Properties, "id")
	assert.Nil(t, idx.GetClass("App\\Missing"))
}

func TestDebugAST(t *testing.T) {
	f, err := ParseSource("x.php", []byte("<?php $a = 1;"))
	require.NoError(t, err)
	defer f.Close()

	var buf bytes.Buffer
	require.NoError(t, DebugAST(&buf, f))
	assert.Contains(t, buf.String(), "assignment_expression")
	assert.Contains(t, buf.String(), "left: variable_name")
}
