package infer

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/phpdoc"
	"github.com/shopware/php-typeinfer/internal/types"
)

// Scope is the resolution context handed to hooks.
type Scope struct {
	run *Run
	ctx Context
}

// Resolve infers the type of an expression in this scope.
func (s *Scope) Resolve(node *tree_sitter.Node) types.Type {
	return s.run.resolve(s.ctx, node)
}

// ResolveVariable infers the type of $name as read at node.
func (s *Scope) ResolveVariable(name string, at *tree_sitter.Node) types.Type {
	return s.run.resolveVariable(s.ctx, strings.TrimPrefix(name, "$"), at)
}

// ResolveCallable returns what the closure, arrow function or function name
// at node returns when called with params.
func (s *Scope) ResolveCallable(node *tree_sitter.Node, params ...types.Type) types.Type {
	return s.run.callableReturn(s.ctx, node, params)
}

// ClassType returns the object type of class name bound to args.
func (s *Scope) ClassType(name string, args ...types.Type) types.Type {
	return s.run.classType(s.ctx, s.ctx.resolveName(name), args, nil)
}

// DocType converts a documented type expression written in this scope.
func (s *Scope) DocType(node phpdoc.Node) types.Type {
	return s.run.docType(s.ctx, node)
}

// Class returns the class the resolved code belongs to, nil outside classes.
func (s *Scope) Class() *php.PHPClass { return s.ctx.Class }

// File returns the file the resolved code lives in.
func (s *Scope) File() *php.File { return s.ctx.File }

// Index returns the class index of the run.
func (s *Scope) Index() *php.Index { return s.run.index }

// Text returns the source text of node.
func (s *Scope) Text(node *tree_sitter.Node) string { return s.ctx.text(node) }

// resolve infers the type of node: an attached @var comment wins when it says
// more than Unknown, then hooks get a chance, then the structure of the node.
func (r *Run) resolve(ctx Context, node *tree_sitter.Node) types.Type {
	if node == nil {
		return types.Unknown()
	}
	if t := r.attachedDocType(ctx, node); t != nil {
		return t
	}

	text := ctx.text(node)
	switch node.Kind() {
	case "parenthesized_expression", "error_suppression_expression", "clone_expression":
		return r.resolve(ctx, firstNamed(node))
	case "integer":
		return integerLiteral(text)
	case "float":
		f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
		if err != nil {
			return types.Float()
		}
		return types.Literal(f)
	case "string":
		return types.Literal(unquoteSingle(text))
	case "encapsed_string":
		return r.encapsedString(node, text)
	case "heredoc", "nowdoc", "shell_command_expression":
		return types.String()
	case "boolean":
		return types.Literal(strings.EqualFold(text, "true"))
	case "null":
		return types.Null()
	case "variable_name":
		name := strings.TrimPrefix(text, "$")
		if name == "this" {
			return r.selfType(ctx, "$this")
		}
		return r.resolveVariable(ctx, name, node)
	case "assignment_expression", "reference_assignment_expression":
		return r.resolve(ctx, node.ChildByFieldName("right"))
	case "augmented_assignment_expression":
		return r.augmentedAssignment(ctx, node)
	case "binary_expression":
		return r.binary(ctx, node)
	case "unary_op_expression":
		return r.unary(ctx, node)
	case "update_expression":
		switch types.Unwrap(r.resolve(ctx, firstNamed(node))).Kind() {
		case types.KindFloat:
			return types.Float()
		case types.KindNumber, types.KindUnknown:
			return types.Number()
		}
		return types.Integer()
	case "conditional_expression":
		return r.ternary(ctx, node)
	case "cast_expression":
		return r.cast(ctx, node)
	case "match_expression":
		return r.match(ctx, node)
	case "throw_expression":
		return types.Void()
	case "object_creation_expression":
		return r.newExpression(ctx, node)
	case "member_access_expression", "nullsafe_member_access_expression":
		return r.memberAccess(ctx, node)
	case "scoped_property_access_expression":
		return r.staticProperty(ctx, node)
	case "class_constant_access_expression":
		return r.classConstantAccess(ctx, node)
	case "member_call_expression", "nullsafe_member_call_expression":
		return r.methodCall(ctx, node)
	case "scoped_call_expression":
		return r.staticCall(ctx, node)
	case "function_call_expression":
		return r.functionCall(ctx, node)
	case "array_creation_expression":
		return r.arrayLiteral(ctx, node)
	case "subscript_expression":
		return r.subscript(ctx, node)
	case "anonymous_function", "arrow_function":
		return types.Callable()
	case "print_intrinsic":
		return types.Literal(1)
	case "name", "qualified_name":
		return r.globalConstant(ctx, text)
	}
	return types.Unknown()
}

// attachedDocType returns the type given by a /** @var */ comment in front of
// the statement node is the value of.
func (r *Run) attachedDocType(ctx Context, node *tree_sitter.Node) types.Type {
	if ctx.File == nil {
		return nil
	}
	parent := node.Parent()
	if parent == nil {
		return nil
	}

	variable := ""
	statement := parent
	switch parent.Kind() {
	case "assignment_expression":
		right := parent.ChildByFieldName("right")
		if right == nil || right.Id() != node.Id() {
			return nil
		}
		if left := parent.ChildByFieldName("left"); left != nil && left.Kind() == "variable_name" {
			variable = ctx.text(left)
		}
		statement = parent.Parent()
	case "return_statement", "expression_statement":
	default:
		return nil
	}
	if statement == nil || (statement.Kind() != "expression_statement" && statement.Kind() != "return_statement") {
		return nil
	}

	doc := php.DocComment(statement, ctx.File.Content)
	tag, ok := doc.Var(variable)
	if !ok || tag.Type == nil {
		return nil
	}
	r.checkDoc(ctx, doc, statement)
	t := r.docType(ctx, tag.Type)
	if types.IsUnknown(t) {
		return nil
	}
	return r.describe(t, tag.Description, nil)
}

func integerLiteral(text string) types.Type {
	clean := strings.ReplaceAll(text, "_", "")
	if len(clean) > 1 && clean[0] == '0' && clean[1] >= '0' && clean[1] <= '9' {
		clean = "0o" + clean[1:]
	}
	i, err := strconv.ParseInt(clean, 0, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(clean, 64); ferr == nil {
			return types.Literal(f)
		}
		return types.Integer()
	}
	return types.Literal(i)
}

// unquoteSingle decodes a single-quoted PHP string literal.
func unquoteSingle(text string) string {
	text = strings.TrimPrefix(text, "b")
	if len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'' {
		text = text[1 : len(text)-1]
	}
	return strings.NewReplacer(`\\`, `\`, `\'`, `'`).Replace(text)
}

var doubleQuoteEscapes = strings.NewReplacer(
	`\n`, "\n",
	`\t`, "\t",
	`\r`, "\r",
	`\v`, "\v",
	`\f`, "\f",
	`\e`, "\x1b",
	`\0`, "\x00",
	`\$`, "$",
	`\"`, `"`,
	`\\`, `\`,
)

// encapsedString folds double-quoted strings without interpolation into
// literals.
func (r *Run) encapsedString(node *tree_sitter.Node, text string) types.Type {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		switch node.NamedChild(i).Kind() {
		case "string_content", "string_value", "escape_sequence":
		default:
			return types.String()
		}
	}
	text = strings.TrimPrefix(text, "b")
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	return types.Literal(doubleQuoteEscapes.Replace(text))
}

func (r *Run) augmentedAssignment(ctx Context, node *tree_sitter.Node) types.Type {
	left := r.resolve(ctx, node.ChildByFieldName("left"))
	right := r.resolve(ctx, node.ChildByFieldName("right"))
	switch operatorOf(ctx, node) {
	case ".=":
		return r.concat(left, right)
	case "??=":
		return valueUnion(types.WithoutNull(left), right)
	case "+=":
		if merged := arrayUnion(left, right); merged != nil {
			return merged
		}
		return types.Number()
	case "&=", "|=", "^=", "<<=", ">>=":
		return types.Integer()
	}
	return types.Number()
}

// operatorOf returns the operator token of a binary, unary or assignment node.
func operatorOf(ctx Context, node *tree_sitter.Node) string {
	if op := node.ChildByFieldName("operator"); op != nil {
		return strings.ToLower(ctx.text(op))
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if !child.IsNamed() {
			return strings.ToLower(ctx.text(child))
		}
	}
	return ""
}

func (r *Run) binary(ctx Context, node *tree_sitter.Node) types.Type {
	op := operatorOf(ctx, node)
	switch op {
	case "==", "!=", "<>", "===", "!==", "<", ">", "<=", ">=", "&&", "||", "and", "or", "xor", "instanceof":
		return types.Boolean()
	case "<=>":
		return types.Enum(types.KindInteger, -1, 0, 1)
	case "&", "|", "^", "<<", ">>":
		return types.Integer()
	}

	left := r.resolve(ctx, node.ChildByFieldName("left"))
	right := r.resolve(ctx, node.ChildByFieldName("right"))
	switch op {
	case ".":
		return r.concat(left, right)
	case "??":
		return valueUnion(types.WithoutNull(left), right)
	case "+":
		if merged := arrayUnion(left, right); merged != nil {
			return merged
		}
	}
	return types.Number()
}

// concat folds the concatenation of two literals, anything else is a string.
func (r *Run) concat(left, right types.Type) types.Type {
	l, lok := literalText(left)
	rt, rok := literalText(right)
	if lok && rok {
		return types.Literal(l + rt)
	}
	return types.String()
}

func literalText(t types.Type) (string, bool) {
	v, ok := literalValue(t)
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

// arrayUnion is the + operator on arrays: keys of the left side win.
func arrayUnion(left, right types.Type) types.Type {
	l, lok := types.Unwrap(left).(*types.Array)
	rt, rok := types.Unwrap(right).(*types.Array)
	if !lok || !rok {
		return nil
	}
	if !l.IsShape() || !rt.IsShape() {
		return types.Union(l.ToPair(), rt.ToPair())
	}
	out := l
	for _, e := range rt.Entries() {
		if _, exists := out.Entry(e.Key); !exists {
			out = out.With(e.Key, e.Type, e.Optional)
		}
	}
	return out
}

func (r *Run) unary(ctx Context, node *tree_sitter.Node) types.Type {
	op := operatorOf(ctx, node)
	arg := node.ChildByFieldName("argument")
	if arg == nil {
		arg = lastNamed(node)
	}
	switch op {
	case "!":
		return types.Boolean()
	case "~":
		return types.Integer()
	case "@":
		return r.resolve(ctx, arg)
	}

	t := r.resolve(ctx, arg)
	if op == "+" {
		return t
	}
	switch v := types.Unwrap(t).(type) {
	case *types.Scalar:
		if value, ok := literalValue(v); ok {
			switch x := value.(type) {
			case int64:
				return types.Literal(-x)
			case float64:
				return types.Literal(-x)
			}
		}
		switch v.Kind() {
		case types.KindInteger, types.KindFloat:
			return v.Widen()
		}
	}
	return types.Number()
}

func (r *Run) ternary(ctx Context, node *tree_sitter.Node) types.Type {
	condition := node.ChildByFieldName("condition")
	body := node.ChildByFieldName("body")
	alternative := node.ChildByFieldName("alternative")
	if body == nil {
		return valueUnion(types.WithoutNull(r.resolve(ctx, condition)), r.resolve(ctx, alternative))
	}
	return valueUnion(r.resolve(ctx, body), r.resolve(ctx, alternative))
}

// valueUnion unions the values of alternative branches, dropping the ones
// that never produce a value.
func valueUnion(ts ...types.Type) types.Type {
	kept := make([]types.Type, 0, len(ts))
	for _, t := range ts {
		if !types.IsKind(t, types.KindVoid) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return types.Void()
	}
	return types.Union(kept...)
}

func (r *Run) cast(ctx Context, node *tree_sitter.Node) types.Type {
	castType := node.ChildByFieldName("type")
	value := node.ChildByFieldName("value")
	if value == nil {
		value = lastNamed(node)
	}
	kind := strings.ToLower(strings.Trim(ctx.text(castType), "() \t"))

	switch kind {
	case "int", "integer":
		return types.Integer()
	case "float", "double", "real":
		return types.Float()
	case "string", "binary":
		return types.String()
	case "bool", "boolean":
		return types.Boolean()
	case "unset":
		return types.Null()
	case "array":
		switch v := types.Unwrap(r.resolve(ctx, value)).(type) {
		case *types.Array:
			return v
		case *types.Object:
			shape := types.Shape()
			for _, p := range v.Properties() {
				shape = shape.With(p.Name, p.Type, p.Optional)
			}
			return shape
		case *types.Scalar:
			if v.Kind() == types.KindNull {
				return types.Shape()
			}
			return types.Shape(types.ArrayEntry{Key: int64(0), Type: v})
		}
		return anyArray()
	case "object":
		switch v := types.Unwrap(r.resolve(ctx, value)).(type) {
		case *types.Object:
			return v
		case *types.Array:
			obj := types.NewObject("stdClass")
			for _, e := range v.Entries() {
				obj = obj.WithProperty(keyString(e.Key), e.Type, e.Optional)
			}
			return obj
		}
		return types.NewObject("stdClass")
	}
	return types.Unknown()
}

func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case int64:
		return strconv.FormatInt(k, 10)
	}
	return ""
}

func (r *Run) match(ctx Context, node *tree_sitter.Node) types.Type {
	body := node.ChildByFieldName("body")
	if body == nil {
		return types.Unknown()
	}
	var arms []types.Type
	for i := uint(0); i < body.NamedChildCount(); i++ {
		arm := body.NamedChild(i)
		switch arm.Kind() {
		case "match_conditional_expression", "match_default_expression":
			ret := arm.ChildByFieldName("return_expression")
			if ret == nil {
				ret = lastNamed(arm)
			}
			arms = append(arms, r.resolve(ctx, ret))
		}
	}
	return valueUnion(arms...)
}

// memberAccess resolves $object->property, distributing over union members.
func (r *Run) memberAccess(ctx Context, node *tree_sitter.Node) types.Type {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || nameNode.Kind() != "name" {
		return types.Unknown()
	}
	name := ctx.text(nameNode)
	receiver := r.resolve(ctx, node.ChildByFieldName("object"))

	var results []types.Type
	nullable := false
	for _, m := range types.Members(receiver) {
		switch v := m.(type) {
		case *types.Object:
			if p, ok := v.Property(name); ok && !v.IsStub() {
				results = append(results, p.Type)
				continue
			}
			if v.Class() == "" || strings.EqualFold(v.Class(), "stdClass") {
				results = append(results, types.Unknown())
				continue
			}
			results = append(results, r.propertyOf(ctx, v.Class(), v.Args(), name, node))
		default:
			if m.Kind() == types.KindNull {
				nullable = true
				continue
			}
			results = append(results, types.Unknown())
		}
	}

	t := types.Union(results...)
	if nullable && node.Kind() == "nullsafe_member_access_expression" {
		t = types.Union(t, types.Null())
	}
	return t
}

func (r *Run) staticProperty(ctx Context, node *tree_sitter.Node) types.Type {
	className := r.scopeClass(ctx, node.ChildByFieldName("scope"))
	nameNode := node.ChildByFieldName("name")
	if className == "" || nameNode == nil {
		return types.Unknown()
	}
	return r.propertyOf(ctx, className, nil, strings.TrimPrefix(ctx.text(nameNode), "$"), node)
}

// scopeClass returns the class named by the scope of a static access: a
// name, self/static/parent, or an expression holding an object or class
// string.
func (r *Run) scopeClass(ctx Context, scope *tree_sitter.Node) string {
	if scope == nil {
		return ""
	}
	switch scope.Kind() {
	case "name", "qualified_name", "relative_scope", "relative_name":
		return ctx.resolveName(ctx.text(scope))
	}
	for _, m := range types.Members(r.resolve(ctx, scope)) {
		switch v := m.(type) {
		case *types.Object:
			return v.Class()
		case *types.Scalar:
			if v.Kind() == types.KindClassString {
				return v.Class()
			}
		}
	}
	return ""
}

func (r *Run) classConstantAccess(ctx Context, node *tree_sitter.Node) types.Type {
	scope := firstNamed(node)
	nameNode := lastNamed(node)
	if scope == nil || nameNode == nil || scope.Id() == nameNode.Id() {
		return types.Unknown()
	}
	name := ctx.text(nameNode)

	if strings.EqualFold(name, "class") {
		if strings.EqualFold(ctx.text(scope), "static") {
			return types.ClassString(ctx.staticName())
		}
		className := r.scopeClass(ctx, scope)
		if className == "" {
			return types.ClassString("")
		}
		if scope.Kind() == "name" || scope.Kind() == "qualified_name" || scope.Kind() == "relative_scope" {
			return types.ClassStringLiteral(className)
		}
		return types.ClassString(className)
	}

	className := r.scopeClass(ctx, scope)
	if className == "" {
		return types.Unknown()
	}
	class := r.index.GetClass(className)
	if class == nil {
		return r.fail(ctx, node, classNotFound(className))
	}
	return r.classConstant(ctx, class, name, node)
}

func (r *Run) subscript(ctx Context, node *tree_sitter.Node) types.Type {
	base := r.resolve(ctx, firstNamed(node))
	var index *tree_sitter.Node
	if node.NamedChildCount() > 1 {
		index = lastNamed(node)
	}

	var results []types.Type
	for _, m := range types.Members(base) {
		switch v := m.(type) {
		case *types.Array:
			results = append(results, r.offset(ctx, v, index))
		case *types.Object:
			if v.Class() != "" && r.index.GetMethod(v.Class(), "offsetGet") != nil {
				results = append(results, r.methodReturn(ctx, v.Class(), v.Args(), "offsetGet", nil))
				continue
			}
			results = append(results, types.Unknown())
		case *types.Scalar:
			switch v.Kind() {
			case types.KindNull:
				continue
			case types.KindString, types.KindNumber:
				results = append(results, types.String())
				continue
			}
			results = append(results, types.Unknown())
		default:
			results = append(results, types.Unknown())
		}
	}
	if len(results) == 0 {
		return types.Unknown()
	}
	return types.Union(results...)
}

// offset returns the type stored in array under the key expression index.
func (r *Run) offset(ctx Context, array *types.Array, index *tree_sitter.Node) types.Type {
	if !array.IsShape() {
		return array.Item()
	}
	if index == nil {
		return types.Unknown()
	}
	if key, ok := literalKey(r.resolve(ctx, index)); ok {
		if e, found := array.Entry(key); found {
			return e.Type
		}
		return types.Unknown()
	}
	return array.ToPair().Item()
}

// globalConstant types predefined constants and magic constants.
func (r *Run) globalConstant(ctx Context, name string) types.Type {
	name = strings.TrimPrefix(name, "\\")
	upper := strings.ToUpper(name)
	switch upper {
	case "__LINE__":
		return types.Integer()
	case "__CLASS__":
		if ctx.Class != nil {
			return types.ClassStringLiteral(ctx.Class.Name)
		}
		return types.String()
	case "PHP_EOL", "PHP_VERSION", "PHP_OS", "PHP_OS_FAMILY", "DIRECTORY_SEPARATOR", "PATH_SEPARATOR":
		return types.String()
	case "PHP_INT_MAX", "PHP_INT_MIN", "PHP_INT_SIZE", "PHP_MAJOR_VERSION", "PHP_MINOR_VERSION":
		return types.Integer()
	case "PHP_FLOAT_EPSILON", "PHP_FLOAT_MAX", "PHP_FLOAT_MIN", "M_PI", "M_E", "NAN", "INF":
		return types.Float()
	}
	if strings.HasPrefix(upper, "__") && strings.HasSuffix(upper, "__") {
		return types.String()
	}
	for _, prefix := range []string{"JSON_", "E_", "SORT_", "ARRAY_FILTER_", "PREG_", "ENT_", "COUNT_", "LOCK_", "FILTER_"} {
		if strings.HasPrefix(upper, prefix) {
			return types.Integer()
		}
	}
	return types.Unknown()
}

// literalKey converts a literal scalar into an array key the way PHP does.
func literalKey(t types.Type) (any, bool) {
	v, ok := literalValue(t)
	if !ok {
		return nil, false
	}
	switch x := v.(type) {
	case int64:
		return x, true
	case string:
		return shapeKey(x, false), true
	case bool:
		if x {
			return int64(1), true
		}
		return int64(0), true
	case float64:
		return int64(x), true
	}
	return nil, false
}

func firstNamed(node *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

func lastNamed(node *tree_sitter.Node) *tree_sitter.Node {
	for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
		if child := node.NamedChild(uint(i)); child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

func namedChildren(node *tree_sitter.Node) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child.Kind() != "comment" {
			out = append(out, child)
		}
	}
	return out
}
