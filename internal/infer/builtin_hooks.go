package infer

import (
	"strings"

	"github.com/shopware/php-typeinfer/internal/types"
)

func builtinHooks() []any {
	return []any{arrayFunctions{}, phpFunctions{}}
}

// arrayFunctions knows how the array functions of the standard library
// transform their arguments.
type arrayFunctions struct{}

func (arrayFunctions) FunctionCallReturn(call *Call) types.Type {
	switch strings.ToLower(call.Name) {
	case "array_map":
		return arrayMap(call)
	case "array_filter":
		if _, ok := call.Arg(1, "callback"); ok {
			return mapArrays(call.ArgType(0, "array"), func(a *types.Array) types.Type {
				if !a.IsShape() {
					return a
				}
				out := types.Shape()
				for _, e := range a.Entries() {
					out = out.With(e.Key, e.Type, true)
				}
				return out
			})
		}
		return mapArrays(call.ArgType(0, "array"), func(a *types.Array) types.Type {
			if !a.IsShape() {
				return a
			}
			out := types.Shape()
			for _, e := range a.Entries() {
				truthy, falsy := truthiness(e.Type)
				if falsy {
					continue
				}
				out = out.With(e.Key, e.Type, e.Optional || !truthy)
			}
			return out
		})
	case "array_values":
		return mapArrays(call.ArgType(0, "array"), func(a *types.Array) types.Type {
			if !a.IsShape() {
				return types.List(a.Item())
			}
			if optionalEntries(a) {
				return types.List(a.ToPair().Item())
			}
			out := types.Shape()
			for _, e := range a.Entries() {
				out = out.Append(e.Type)
			}
			return out
		})
	case "array_keys":
		if _, filtered := call.Arg(1, "filter_value"); filtered {
			return mapArrays(call.ArgType(0, "array"), func(a *types.Array) types.Type {
				return types.List(pairKey(a))
			})
		}
		return mapArrays(call.ArgType(0, "array"), func(a *types.Array) types.Type {
			if !a.IsShape() || optionalEntries(a) {
				return types.List(pairKey(a))
			}
			out := types.Shape()
			for _, e := range a.Entries() {
				out = out.Append(types.Literal(e.Key))
			}
			return out
		})
	case "array_merge":
		return arrayMerge(call)
	case "array_flip":
		return mapArrays(call.ArgType(0, "array"), func(a *types.Array) types.Type {
			if a.IsShape() {
				out := types.Shape()
				flipped := true
				for _, e := range a.Entries() {
					key, ok := literalKey(e.Type)
					if !ok {
						flipped = false
						break
					}
					out = out.With(key, types.Literal(e.Key), e.Optional)
				}
				if flipped {
					return out
				}
			}
			p := a.ToPair()
			return types.Map(widenKey(p.Item()), pairKey(a))
		})
	case "array_search":
		return types.Union(keyOf(call.ArgType(1, "haystack")), types.Literal(false))
	case "array_key_first", "array_key_last":
		return types.Union(keyOf(call.ArgType(0, "array")), types.Null())
	case "array_pop", "array_shift", "end", "reset", "current", "next", "prev":
		return types.Union(iterationValue(call.ArgType(0, "array")), types.Null())
	case "array_combine":
		keys := call.ArgType(0, "keys")
		values := call.ArgType(1, "values")
		ka, kok := types.Unwrap(keys).(*types.Array)
		va, vok := types.Unwrap(values).(*types.Array)
		if kok && vok && ka.IsShape() && va.IsShape() && len(ka.Entries()) == len(va.Entries()) {
			out := types.Shape()
			combined := true
			for i, k := range ka.Entries() {
				key, ok := literalKey(k.Type)
				if !ok {
					combined = false
					break
				}
				out = out.With(key, va.Entries()[i].Type, false)
			}
			if combined {
				return out
			}
		}
		return types.Map(widenKey(iterationValue(keys)), iterationValue(values))
	case "array_fill_keys":
		return types.Map(widenKey(iterationValue(call.ArgType(0, "keys"))), call.ArgType(1, "value"))
	case "array_fill":
		return types.List(call.ArgType(2, "value"))
	case "array_slice", "array_reverse", "array_unique", "array_diff", "array_diff_key", "array_intersect", "array_intersect_key":
		return mapArrays(call.ArgType(0, "array"), func(a *types.Array) types.Type { return a.ToPair() })
	case "array_chunk":
		return types.List(types.List(iterationValue(call.ArgType(0, "array"))))
	case "array_column":
		return types.List(types.Unknown())
	case "array_key_exists", "key_exists", "in_array", "array_is_list", "sort", "rsort", "usort", "uasort", "uksort", "ksort", "krsort", "asort", "arsort", "shuffle":
		return types.Boolean()
	case "array_sum", "array_product":
		return types.Number()
	case "count", "sizeof", "array_push", "array_unshift":
		return types.Integer()
	case "iterator_to_array":
		it := call.ArgType(0, "iterator")
		if _, ok := call.Arg(1, "preserve_keys"); ok {
			return types.List(iterationValue(it))
		}
		return types.Map(iterationKey(it), iterationValue(it))
	case "range":
		return types.List(types.Integer())
	case "compact":
		return compact(call)
	}
	return nil
}

func arrayMap(call *Call) types.Type {
	callback, ok := call.Arg(0, "callback")
	if !ok || call.Scope == nil {
		return nil
	}
	array := call.ArgType(1, "array")
	if callback.Node == nil || callback.Node.Kind() == "null" {
		if len(call.Args) <= 2 {
			return array
		}
		zipped := types.Shape()
		for _, a := range call.Args[1:] {
			zipped = zipped.Append(iterationValue(a.Type()))
		}
		return types.List(zipped)
	}

	if len(call.Args) > 2 {
		params := make([]types.Type, 0, len(call.Args)-1)
		for _, a := range call.Args[1:] {
			params = append(params, iterationValue(a.Type()))
		}
		return types.List(call.Scope.ResolveCallable(callback.Node, params...))
	}

	return mapArrays(array, func(a *types.Array) types.Type {
		if a.IsShape() {
			out := types.Shape()
			for _, e := range a.Entries() {
				out = out.With(e.Key, call.Scope.ResolveCallable(callback.Node, e.Type), e.Optional)
			}
			return out
		}
		item := call.Scope.ResolveCallable(callback.Node, a.Item())
		if a.Key() == nil {
			return types.List(item)
		}
		return types.Map(a.Key(), item)
	})
}

// arrayMerge appends integer keys and overwrites string keys, argument by
// argument.
func arrayMerge(call *Call) types.Type {
	merged := types.Shape()
	var keys, items []types.Type
	pair := false
	for _, arg := range call.Args {
		t := arg.Type()
		if arg.Spread {
			t = iterationValue(t)
		}
		merged, keys, items, pair = call.Scope.run.spread(merged, keys, items, pair, t)
	}
	if !pair {
		return merged
	}
	return types.Map(types.Union(keys...), types.Union(items...))
}

func compact(call *Call) types.Type {
	out := types.Shape()
	for _, arg := range call.Args {
		value, ok := literalValue(arg.Type())
		name, isString := value.(string)
		if !ok || !isString {
			return anyArray()
		}
		out = out.With(name, call.Scope.ResolveVariable(name, call.Node), false)
	}
	return out
}

// mapArrays applies fn to the array members of t. Anything else makes the
// result a generic array.
func mapArrays(t types.Type, fn func(*types.Array) types.Type) types.Type {
	var out []types.Type
	for _, m := range types.Members(t) {
		switch v := m.(type) {
		case *types.Array:
			out = append(out, fn(v))
		default:
			if m.Kind() == types.KindNull {
				continue
			}
			out = append(out, anyArray())
		}
	}
	if len(out) == 0 {
		return anyArray()
	}
	return types.Union(out...)
}

func optionalEntries(a *types.Array) bool {
	for _, e := range a.Entries() {
		if e.Optional {
			return true
		}
	}
	return false
}

func pairKey(a *types.Array) types.Type {
	if k := a.ToPair().Key(); k != nil {
		return k
	}
	return types.Integer()
}

func keyOf(t types.Type) types.Type {
	var out []types.Type
	for _, m := range types.Members(t) {
		if a, ok := m.(*types.Array); ok {
			out = append(out, pairKey(a))
			continue
		}
		out = append(out, arrayKey())
	}
	return types.Union(out...)
}

// phpFunctions types the scalar functions of the standard library.
type phpFunctions struct{}

var functionResults = map[string]func() types.Type{
	"strlen":              integer,
	"mb_strlen":           integer,
	"intval":              integer,
	"time":                integer,
	"crc32":               integer,
	"random_int":          integer,
	"mt_rand":             integer,
	"rand":                integer,
	"ord":                 integer,
	"substr_count":        integer,
	"json_last_error":     integer,
	"strcmp":              integer,
	"strcasecmp":          integer,
	"floatval":            float,
	"round":               float,
	"floor":               float,
	"ceil":                float,
	"fmod":                float,
	"sqrt":                float,
	"pow":                 number,
	"abs":                 number,
	"max":                 number,
	"min":                 number,
	"array_sum":           number,
	"sprintf":             str,
	"vsprintf":            str,
	"implode":             str,
	"join":                str,
	"trim":                str,
	"ltrim":               str,
	"rtrim":               str,
	"strtolower":          str,
	"strtoupper":          str,
	"mb_strtolower":       str,
	"mb_strtoupper":       str,
	"ucfirst":             str,
	"lcfirst":             str,
	"ucwords":             str,
	"str_replace":         str,
	"str_ireplace":        str,
	"str_pad":             str,
	"str_repeat":          str,
	"substr":              str,
	"mb_substr":           str,
	"number_format":       str,
	"md5":                 str,
	"sha1":                str,
	"hash":                str,
	"uniqid":              str,
	"date":                str,
	"strval":              str,
	"nl2br":               str,
	"htmlspecialchars":    str,
	"strip_tags":          str,
	"base64_encode":       str,
	"bin2hex":             str,
	"dechex":              str,
	"http_build_query":    str,
	"urlencode":           str,
	"rawurlencode":        str,
	"wordwrap":            str,
	"chr":                 str,
	"gettype":             str,
	"get_debug_type":      str,
	"json_last_error_msg": str,
	"var_export":          str,
	"serialize":           str,
	"boolval":             boolean,
	"is_array":            boolean,
	"is_string":           boolean,
	"is_int":              boolean,
	"is_integer":          boolean,
	"is_float":            boolean,
	"is_bool":             boolean,
	"is_null":             boolean,
	"is_numeric":          boolean,
	"is_object":           boolean,
	"is_callable":         boolean,
	"is_iterable":         boolean,
	"is_countable":        boolean,
	"is_scalar":           boolean,
	"str_contains":        boolean,
	"str_starts_with":     boolean,
	"str_ends_with":       boolean,
	"method_exists":       boolean,
	"property_exists":     boolean,
	"class_exists":        boolean,
	"interface_exists":    boolean,
	"function_exists":     boolean,
	"defined":             boolean,
	"array_key_exists":    boolean,
	"ctype_digit":         boolean,
	"ctype_alpha":         boolean,
	"file_exists":         boolean,
	"is_file":             boolean,
	"is_dir":              boolean,
	"explode":             func() types.Type { return types.List(types.String()) },
	"str_split":           func() types.Type { return types.List(types.String()) },
	"mb_str_split":        func() types.Type { return types.List(types.String()) },
	"array_rand":          func() types.Type { return arrayKey() },
	"json_encode":         func() types.Type { return types.Union(types.String(), types.Literal(false)) },
	"strpos":              func() types.Type { return types.Union(types.Integer(), types.Literal(false)) },
	"stripos":             func() types.Type { return types.Union(types.Integer(), types.Literal(false)) },
	"strrpos":             func() types.Type { return types.Union(types.Integer(), types.Literal(false)) },
	"mb_strpos":           func() types.Type { return types.Union(types.Integer(), types.Literal(false)) },
	"preg_match":          func() types.Type { return types.Union(types.Integer(), types.Literal(false)) },
	"preg_match_all":      func() types.Type { return types.Union(types.Integer(), types.Literal(false)) },
	"preg_replace":        func() types.Type { return types.Union(types.String(), types.Null()) },
	"preg_split":          func() types.Type { return types.Union(types.List(types.String()), types.Literal(false)) },
	"file_get_contents":   func() types.Type { return types.Union(types.String(), types.Literal(false)) },
	"strtotime":           func() types.Type { return types.Union(types.Integer(), types.Literal(false)) },
	"microtime":           func() types.Type { return types.Union(types.String(), types.Float()) },
}

func integer() types.Type { return types.Integer() }
func float() types.Type   { return types.Float() }
func number() types.Type  { return types.Number() }
func str() types.Type     { return types.String() }
func boolean() types.Type { return types.Boolean() }

func (phpFunctions) FunctionCallReturn(call *Call) types.Type {
	name := strings.ToLower(call.Name)
	switch name {
	case "get_class", "get_parent_class":
		if _, ok := call.Arg(0, "object"); !ok && call.Scope != nil && call.Scope.Class() != nil {
			return types.ClassString(call.Scope.Class().Name)
		}
		for _, m := range types.Members(call.ArgType(0, "object")) {
			if obj, ok := m.(*types.Object); ok && obj.Class() != "" {
				return types.ClassString(obj.Class())
			}
		}
		return types.ClassString("")
	case "json_decode":
		if assoc, ok := call.Arg(1, "associative"); ok {
			if v, literal := literalValue(assoc.Type()); literal && v == true {
				return types.Union(anyArray(), types.Null())
			}
		}
		return types.Unknown()
	}
	if fn, ok := functionResults[name]; ok {
		return fn()
	}
	return nil
}

// truthiness reports whether every value of t converts to true, or every
// value converts to false.
func truthiness(t types.Type) (truthy, falsy bool) {
	truthy, falsy = true, true
	for _, m := range types.Members(t) {
		switch v := m.(type) {
		case *types.Object:
			falsy = false
		case *types.Array:
			if !v.IsShape() {
				return false, false
			}
			required := false
			for _, e := range v.Entries() {
				required = required || !e.Optional
			}
			if required {
				falsy = false
			} else if len(v.Entries()) == 0 {
				truthy = false
			} else {
				return false, false
			}
		case *types.Scalar:
			if v.Kind() == types.KindNull {
				truthy = false
				continue
			}
			values := v.Values()
			if len(values) == 0 {
				return false, false
			}
			for _, value := range values {
				if literalTruthy(value) {
					falsy = false
				} else {
					truthy = false
				}
			}
		default:
			return false, false
		}
	}
	return truthy, falsy
}

func literalTruthy(value any) bool {
	switch x := value.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != "" && x != "0"
	}
	return value != nil
}
