package infer

// DefaultMaxDepth is the number of nested class expansions before objects are
// returned as stubs.
const DefaultMaxDepth = 5

// Config controls a single inference run. It is usually derived from the
// per-route settings of the documentation generator.
type Config struct {
	// MaxDepth bounds how many classes deep property and return types are
	// expanded. Zero means DefaultMaxDepth.
	MaxDepth int `mapstructure:"max_depth"`

	// Strict turns unresolvable classes, bad doc types and template arity
	// mismatches into errors instead of Unknown types.
	Strict bool `mapstructure:"strict"`

	// CollectEnumValues enumerates the case values of enums instead of
	// reporting only their backing type.
	CollectEnumValues bool `mapstructure:"collect_enum_values"`

	// Extensions lists catalog identifiers of hook factories to enable.
	Extensions []string `mapstructure:"extensions"`
}

func (c Config) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}
