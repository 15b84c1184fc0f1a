// Package types holds the structural type model produced by the inference engine
// and the algebra used to combine types (unwrapping, union and intersection merges).
package types

// Kind identifies the variant of a Type.
type Kind int

const (
	KindUnknown Kind = iota
	KindVoid
	KindNull
	KindBoolean
	KindInteger
	KindFloat
	KindNumber
	KindString
	KindClassString
	KindCallable
	KindArray
	KindObject
	KindUnion
	KindIntersection
	KindPending
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindVoid:         "void",
	KindNull:         "null",
	KindBoolean:      "bool",
	KindInteger:      "int",
	KindFloat:        "float",
	KindNumber:       "number",
	KindString:       "string",
	KindClassString:  "class-string",
	KindCallable:     "callable",
	KindArray:        "array",
	KindObject:       "object",
	KindUnion:        "union",
	KindIntersection: "intersection",
	KindPending:      "pending",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsScalar reports whether values of this kind are represented by *Scalar.
func (k Kind) IsScalar() bool {
	return k <= KindCallable
}
