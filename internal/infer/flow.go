package infer

import (
	"cmp"
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/phpdoc"
	treesitterhelper "github.com/shopware/php-typeinfer/internal/tree_sitter_helper"
	"github.com/shopware/php-typeinfer/internal/types"
)

var superglobals = map[string]bool{
	"GLOBALS":  true,
	"_SERVER":  true,
	"_GET":     true,
	"_POST":    true,
	"_FILES":   true,
	"_COOKIE":  true,
	"_SESSION": true,
	"_REQUEST": true,
	"_ENV":     true,
}

type flowKey struct {
	path   string
	id     uintptr
	depth  int
	static string
}

// flowIndex records every write to a variable inside one function body.
type flowIndex struct {
	mutations  map[string][]*mutation
	constructs map[uintptr]*construct
}

type branchKind int

const (
	branchAlternative branchKind = iota
	branchLoop
)

// branch is one conditionally executed region: an if/elseif/else body, a
// switch case, a try body or catch clause, or a loop.
type branch struct {
	kind       branchKind
	construct  uintptr
	body       *tree_sitter.Node
	terminates bool
}

// construct groups the alternatives of one if, switch or try statement.
// complete is set when one of the alternatives always runs.
type construct struct {
	alternatives []*branch
	complete     bool
	try          bool
}

type pathKind int

const (
	pathIndex pathKind = iota
	pathAppend
	pathProperty
)

type pathKey struct {
	kind pathKind
	node *tree_sitter.Node
	name string
}

// mutation is one write to a variable. A write with a path only changes
// part of the value: $a['k'] = v, $a[] = v or $a->p = v.
type mutation struct {
	name     string
	path     []pathKey
	start    uint
	end      uint
	branches []*branch
	value    func() types.Type

	done   bool
	result types.Type
}

func (m *mutation) get() types.Type {
	if !m.done {
		m.result = m.value()
		m.done = true
	}
	return m.result
}

type reachability int

const (
	reachCertain reachability = iota
	reachMaybe
	reachNever
)

// resolveVariable returns the type $name holds when read at node.
func (r *Run) resolveVariable(ctx Context, name string, at *tree_sitter.Node) types.Type {
	if t, ok := ctx.Vars[name]; ok {
		return t
	}
	if name == "this" {
		return r.selfType(ctx, "$this")
	}
	if superglobals[name] {
		return anyArray()
	}
	if ctx.Body == nil || ctx.File == nil || at == nil {
		return types.Unknown()
	}

	t, found := r.readVariable(ctx, r.flowFor(ctx), name, at)
	if !found && ctx.Body.Kind() == "arrow_function" {
		return r.resolveVariable(r.outerContext(ctx), name, ctx.Body)
	}
	return t
}

// outerContext returns the context of the scope enclosing the body of ctx.
func (r *Run) outerContext(ctx Context) Context {
	outer := r.contextAt(ctx.File, ctx.Body)
	outer.Static = ctx.Static
	outer.Depth = ctx.Depth
	outer.Bindings = ctx.Bindings
	outer.Vars = ctx.Vars
	return outer
}

func (r *Run) flowFor(ctx Context) *flowIndex {
	key := flowKey{path: ctx.File.Path, id: ctx.Body.Id(), depth: ctx.Depth, static: ctx.staticName()}
	cacheable := len(ctx.Bindings) == 0 && len(ctx.Vars) == 0
	if cacheable {
		r.cacheMu.Lock()
		fi, ok := r.flows[key]
		r.cacheMu.Unlock()
		if ok {
			return fi
		}
	}

	b := &flowBuilder{
		run: r,
		ctx: ctx,
		index: &flowIndex{
			mutations:  map[string][]*mutation{},
			constructs: map[uintptr]*construct{},
		},
	}
	b.build()

	if cacheable {
		r.cacheMu.Lock()
		r.flows[key] = b.index
		r.cacheMu.Unlock()
	}
	return b.index
}

// readVariable finds the last write that certainly reaches at and replays
// the writes that may have happened after it.
func (r *Run) readVariable(ctx Context, fi *flowIndex, name string, at *tree_sitter.Node) (types.Type, bool) {
	pos := at.StartByte()
	var visible []*mutation
	for _, m := range fi.mutations[name] {
		if m.end <= pos {
			visible = append(visible, m)
		}
	}
	if len(visible) == 0 {
		return types.Unknown(), false
	}
	slices.SortStableFunc(visible, func(a, b *mutation) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.end, b.end)
	})

	reach := make([]reachability, len(visible))
	base := -1
	for i := len(visible) - 1; i >= 0; i-- {
		reach[i] = fi.reach(visible[i], at)
		if len(visible[i].path) == 0 && reach[i] == reachCertain {
			base = i
			break
		}
	}

	var t types.Type
	from := 0
	if base >= 0 {
		t = visible[base].get()
		from = base + 1
	}
	for i := from; i < len(visible); i++ {
		if reach[i] == reachNever {
			continue
		}
		m := visible[i]
		certain := reach[i] == reachCertain
		if len(m.path) == 0 {
			if t == nil || certain {
				t = m.get()
			} else {
				t = types.Union(t, m.get())
			}
			continue
		}
		t = r.applyPath(ctx, t, m.path, m.get(), certain)
	}
	if t == nil {
		return types.Unknown(), false
	}
	return t, true
}

// reach reports whether the write m happens on every path to at, on some,
// or on none.
func (fi *flowIndex) reach(m *mutation, at *tree_sitter.Node) reachability {
	uncertain := false
	for i := len(m.branches) - 1; i >= 0; i-- {
		br := m.branches[i]
		if treesitterhelper.Contains(br.body, at) {
			break
		}
		c := fi.constructs[br.construct]
		if c != nil {
			for _, alt := range c.alternatives {
				if alt != br && treesitterhelper.Contains(alt.body, at) {
					if c.try {
						return reachMaybe
					}
					return reachNever
				}
			}
		}
		if br.terminates {
			return reachNever
		}
		if br.kind == branchLoop || c == nil || !c.complete {
			uncertain = true
			continue
		}
		for _, alt := range c.alternatives {
			if alt != br && !alt.terminates {
				uncertain = true
				break
			}
		}
	}
	if uncertain {
		return reachMaybe
	}
	return reachCertain
}

// applyPath writes value below path into current. Uncertain writes keep the
// previous value as an alternative and make new keys optional.
func (r *Run) applyPath(ctx Context, current types.Type, path []pathKey, value types.Type, certain bool) types.Type {
	if len(path) == 0 {
		if current == nil || certain {
			return value
		}
		return types.Union(current, value)
	}

	var members []types.Type
	if current == nil {
		if path[0].kind == pathProperty {
			members = []types.Type{types.NewObject("stdClass")}
		} else {
			members = []types.Type{types.Shape()}
		}
	} else {
		members = types.Members(current)
	}

	key, rest := path[0], path[1:]
	out := make([]types.Type, 0, len(members))
	for _, m := range members {
		if m.Kind() == types.KindNull {
			if key.kind == pathProperty {
				m = types.NewObject("stdClass")
			} else {
				m = types.Shape()
			}
		}
		switch v := m.(type) {
		case *types.Array:
			if key.kind == pathProperty {
				out = append(out, v)
				continue
			}
			out = append(out, r.applyArrayKey(ctx, v, key, rest, value, certain))
		case *types.Object:
			if key.kind != pathProperty || (v.Class() != "" && !strings.EqualFold(v.Class(), "stdClass")) {
				out = append(out, v)
				continue
			}
			if p, ok := v.Property(key.name); ok {
				out = append(out, v.WithProperty(key.name, r.applyPath(ctx, p.Type, rest, value, certain), p.Optional))
				continue
			}
			out = append(out, v.WithProperty(key.name, r.applyPath(ctx, nil, rest, value, true), !certain))
		default:
			out = append(out, m)
		}
	}
	return types.Union(out...)
}

func (r *Run) applyArrayKey(ctx Context, a *types.Array, key pathKey, rest []pathKey, value types.Type, certain bool) types.Type {
	if key.kind == pathAppend {
		if !a.IsShape() {
			return a.With(nil, r.applyPath(ctx, nil, rest, value, true), false)
		}
		return a.With(a.NextIndex(), r.applyPath(ctx, nil, rest, value, true), !certain)
	}

	keyType := r.resolve(ctx, key.node)
	literal, isLiteral := literalKey(keyType)
	if !isLiteral || !a.IsShape() {
		if a.IsShape() && len(a.Entries()) == 0 {
			return types.Map(widenKey(keyType), r.applyPath(ctx, nil, rest, value, true))
		}
		p := a.ToPair()
		child := r.applyPath(ctx, p.Item(), rest, value, false)
		k := p.Key()
		if k == nil {
			k = types.Integer()
		}
		return types.Map(types.Union(k, widenKey(keyType)), types.Union(p.Item(), child))
	}

	if e, ok := a.Entry(literal); ok {
		return a.With(literal, r.applyPath(ctx, e.Type, rest, value, certain), e.Optional)
	}
	return a.With(literal, r.applyPath(ctx, nil, rest, value, true), !certain)
}

// flowBuilder walks a function body once and records its writes.
type flowBuilder struct {
	run   *Run
	ctx   Context
	index *flowIndex
}

func (b *flowBuilder) build() {
	body := b.ctx.Body
	b.parameters()

	switch body.Kind() {
	case "function_definition", "method_declaration", "anonymous_function", "arrow_function":
		if body.Kind() == "anonymous_function" {
			b.closureUses(body)
		}
		b.walk(body.ChildByFieldName("body"), nil)
	default:
		for _, child := range namedChildren(body) {
			b.walk(child, nil)
		}
	}
}

// function returns the declaration owning the body, nil for file level code.
func (b *flowBuilder) function() *php.Function {
	body := b.ctx.Body
	if fn := b.ctx.Function; fn != nil && fn.Node != nil && fn.Node.Id() == body.Id() {
		return fn
	}
	switch body.Kind() {
	case "anonymous_function", "arrow_function":
		return b.ctx.File.Closure(body, b.ctx.resolver())
	}
	return nil
}

func (b *flowBuilder) parameters() {
	fn := b.function()
	if fn == nil {
		return
	}
	for _, p := range fn.Params {
		pos := p.Node.EndByte()
		b.add(&mutation{
			name:  p.Name,
			start: pos,
			end:   pos,
			value: func() types.Type { return b.run.parameterType(b.ctx, fn, p) },
		})
	}
}

// closureUses imports the variables listed in use (...) from the enclosing
// scope, as they are when the closure is created.
func (b *flowBuilder) closureUses(closure *tree_sitter.Node) {
	var clause *tree_sitter.Node
	for _, child := range namedChildren(closure) {
		if child.Kind() == "anonymous_function_use_clause" {
			clause = child
		}
	}
	if clause == nil {
		return
	}
	for _, v := range namedChildren(clause) {
		if v.Kind() == "by_ref" {
			v = firstNamed(v)
		}
		if v == nil || v.Kind() != "variable_name" {
			continue
		}
		name := strings.TrimPrefix(b.ctx.text(v), "$")
		b.add(&mutation{
			name:  name,
			start: clause.EndByte(),
			end:   clause.EndByte(),
			value: func() types.Type {
				return b.run.resolveVariable(b.run.outerContext(b.ctx), name, closure)
			},
		})
	}
}

func (b *flowBuilder) add(m *mutation) {
	b.index.mutations[m.name] = append(b.index.mutations[m.name], m)
}

func with(branches []*branch, br *branch) []*branch {
	return slices.Concat(branches, []*branch{br})
}

func (b *flowBuilder) content() []byte {
	return b.ctx.File.Content
}

func (b *flowBuilder) walk(node *tree_sitter.Node, branches []*branch) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "function_definition", "method_declaration", "anonymous_function", "arrow_function",
		"class_declaration", "anonymous_class", "interface_declaration", "trait_declaration", "enum_declaration":
		return
	case "comment":
		b.docOverride(node, branches)
	case "if_statement":
		b.ifStatement(node, branches)
	case "switch_statement":
		b.switchStatement(node, branches)
	case "while_statement", "for_statement":
		b.loop(node, branches)
	case "foreach_statement":
		b.foreach(node, branches)
	case "try_statement":
		b.tryStatement(node, branches)
	case "assignment_expression", "reference_assignment_expression":
		right := node.ChildByFieldName("right")
		b.walk(right, branches)
		b.assign(node, node.ChildByFieldName("left"), branches, memo(func() types.Type {
			return b.run.resolve(b.ctx, right)
		}))
	case "augmented_assignment_expression":
		b.walk(node.ChildByFieldName("right"), branches)
		b.assign(node, node.ChildByFieldName("left"), branches, func() types.Type {
			return b.run.resolve(b.ctx, node)
		})
	case "function_static_declaration":
		for _, decl := range namedChildren(node) {
			if decl.Kind() != "static_variable_declaration" {
				continue
			}
			value := decl.ChildByFieldName("value")
			b.assign(decl, decl.ChildByFieldName("name"), branches, func() types.Type {
				if value == nil {
					return types.Null()
				}
				return b.run.resolve(b.ctx, value)
			})
		}
	case "global_declaration":
		for _, v := range namedChildren(node) {
			b.assign(node, v, branches, func() types.Type { return types.Unknown() })
		}
	case "unset_statement":
		for _, v := range namedChildren(node) {
			if v.Kind() == "variable_name" {
				b.assign(node, v, branches, func() types.Type { return types.Null() })
			}
		}
	default:
		for _, child := range namedChildren(node) {
			b.walk(child, branches)
		}
	}
}

// assign records a write of value to target, which is a variable, a
// subscript or property of one, or a destructuring list.
func (b *flowBuilder) assign(at, target *tree_sitter.Node, branches []*branch, value func() types.Type) {
	if target == nil {
		return
	}
	switch target.Kind() {
	case "by_ref":
		b.assign(at, firstNamed(target), branches, value)
	case "list_literal":
		b.destructure(at, target, branches, value)
	default:
		name, path, ok := b.lvalue(target)
		if !ok {
			return
		}
		b.add(&mutation{
			name:     name,
			path:     path,
			start:    at.StartByte(),
			end:      at.EndByte(),
			branches: branches,
			value:    value,
		})
	}
}

// lvalue splits an assignment target into the variable written and the path
// below it.
func (b *flowBuilder) lvalue(node *tree_sitter.Node) (string, []pathKey, bool) {
	switch node.Kind() {
	case "variable_name":
		name := strings.TrimPrefix(b.ctx.text(node), "$")
		return name, nil, name != "this"
	case "subscript_expression":
		name, path, ok := b.lvalue(firstNamed(node))
		if !ok {
			return "", nil, false
		}
		key := pathKey{kind: pathAppend}
		if children := namedChildren(node); len(children) > 1 {
			key = pathKey{kind: pathIndex, node: children[len(children)-1]}
		}
		return name, slices.Concat(path, []pathKey{key}), true
	case "member_access_expression", "nullsafe_member_access_expression":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "name" {
			return "", nil, false
		}
		name, path, ok := b.lvalue(node.ChildByFieldName("object"))
		if !ok {
			return "", nil, false
		}
		return name, slices.Concat(path, []pathKey{{kind: pathProperty, name: b.ctx.text(nameNode)}}), true
	}
	return "", nil, false
}

// destructure handles [$a, 'k' => $b] = $value and list(...) = $value.
func (b *flowBuilder) destructure(at, list *tree_sitter.Node, branches []*branch, value func() types.Type) {
	position := int64(0)
	var key *tree_sitter.Node
	for i := uint(0); i < list.ChildCount(); i++ {
		child := list.Child(i)
		if !child.IsNamed() {
			if b.ctx.text(child) == "," {
				position++
			}
			continue
		}
		if child.Kind() == "comment" {
			continue
		}
		if next := nextToken(list, i); next == "=>" {
			key = child
			continue
		}

		keyNode, index := key, position
		key = nil
		b.assign(at, child, branches, memo(func() types.Type {
			if keyNode != nil {
				k, ok := literalKey(b.run.resolve(b.ctx, keyNode))
				if !ok {
					return elementOf(value(), nil)
				}
				return elementOf(value(), k)
			}
			return elementOf(value(), index)
		}))
	}
}

// nextToken returns the text of the first anonymous child of parent after
// index i.
func nextToken(parent *tree_sitter.Node, i uint) string {
	for j := i + 1; j < parent.ChildCount(); j++ {
		child := parent.Child(j)
		if child.Kind() == "comment" {
			continue
		}
		if child.IsNamed() {
			return ""
		}
		return child.Kind()
	}
	return ""
}

// elementOf returns the type stored under key in t, the item type when key
// is nil or the array has no fixed keys.
func elementOf(t types.Type, key any) types.Type {
	var out []types.Type
	for _, m := range types.Members(t) {
		a, ok := m.(*types.Array)
		if !ok {
			out = append(out, types.Unknown())
			continue
		}
		if !a.IsShape() || key == nil {
			out = append(out, a.ToPair().Item())
			continue
		}
		if e, found := a.Entry(key); found {
			out = append(out, e.Type)
			continue
		}
		out = append(out, types.Null())
	}
	if len(out) == 0 {
		return types.Unknown()
	}
	return types.Union(out...)
}

func (b *flowBuilder) alternative(c *construct, owner, body *tree_sitter.Node, branches []*branch) []*branch {
	br := &branch{
		kind:       branchAlternative,
		construct:  owner.Id(),
		body:       body,
		terminates: treesitterhelper.Terminates(body, b.content()),
	}
	c.alternatives = append(c.alternatives, br)
	return with(branches, br)
}

func (b *flowBuilder) ifStatement(node *tree_sitter.Node, branches []*branch) {
	b.walk(node.ChildByFieldName("condition"), branches)

	c := &construct{}
	b.index.constructs[node.Id()] = c

	if body := node.ChildByFieldName("body"); body != nil {
		b.walk(body, b.alternative(c, node, body, branches))
	}
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "else_if_clause":
			b.walk(child.ChildByFieldName("condition"), branches)
			if body := child.ChildByFieldName("body"); body != nil {
				b.walk(body, b.alternative(c, node, body, branches))
			}
		case "else_clause":
			c.complete = true
			if body := child.ChildByFieldName("body"); body != nil {
				b.walk(body, b.alternative(c, node, body, branches))
			}
		}
	}
}

func (b *flowBuilder) switchStatement(node *tree_sitter.Node, branches []*branch) {
	b.walk(node.ChildByFieldName("condition"), branches)

	c := &construct{}
	b.index.constructs[node.Id()] = c

	block := node.ChildByFieldName("body")
	if block == nil {
		return
	}
	for _, child := range namedChildren(block) {
		switch child.Kind() {
		case "default_statement":
			c.complete = true
		case "case_statement":
		default:
			continue
		}
		inner := b.alternative(c, node, child, branches)
		for _, stmt := range namedChildren(child) {
			b.walk(stmt, inner)
		}
	}
}

func (b *flowBuilder) loop(node *tree_sitter.Node, branches []*branch) {
	inner := with(branches, &branch{kind: branchLoop, construct: node.Id(), body: node})

	once := map[uintptr]bool{}
	for _, field := range []string{"condition", "initialize"} {
		if child := node.ChildByFieldName(field); child != nil {
			once[child.Id()] = true
		}
	}
	for _, child := range namedChildren(node) {
		if once[child.Id()] {
			b.walk(child, branches)
			continue
		}
		b.walk(child, inner)
	}
}

func (b *flowBuilder) foreach(node *tree_sitter.Node, branches []*branch) {
	children := namedChildren(node)
	if len(children) < 2 {
		return
	}
	iterable, target := children[0], children[1]
	b.walk(iterable, branches)

	inner := with(branches, &branch{kind: branchLoop, construct: node.Id(), body: node})
	items := memo(func() types.Type { return b.run.resolve(b.ctx, iterable) })
	doc := php.DocComment(node, b.content())

	if target.Kind() == "pair" {
		pair := namedChildren(target)
		if len(pair) == 2 {
			b.assign(pair[0], pair[0], inner, func() types.Type { return iterationKey(items()) })
			target = pair[1]
		}
	}

	value := func() types.Type { return iterationValue(items()) }
	if target.Kind() == "variable_name" {
		if tag, ok := doc.Var(b.ctx.text(target)); ok && tag.Type != nil {
			value = func() types.Type {
				b.run.checkDoc(b.ctx, doc, node)
				return b.run.docType(b.ctx, tag.Type)
			}
		}
	}
	b.assign(target, target, inner, value)

	if body := node.ChildByFieldName("body"); body != nil {
		b.walk(body, inner)
	}
}

// iterationValue is the type of the value variable of foreach over t.
func iterationValue(t types.Type) types.Type {
	var out []types.Type
	for _, m := range types.Members(t) {
		switch v := m.(type) {
		case *types.Array:
			out = append(out, v.ToPair().Item())
		case *types.Object:
			if args := v.Args(); len(args) > 0 {
				out = append(out, args[len(args)-1])
				continue
			}
			out = append(out, types.Unknown())
		default:
			if m.Kind() != types.KindNull {
				out = append(out, types.Unknown())
			}
		}
	}
	if len(out) == 0 {
		return types.Unknown()
	}
	return types.Union(out...)
}

// iterationKey is the type of the key variable of foreach over t.
func iterationKey(t types.Type) types.Type {
	var out []types.Type
	for _, m := range types.Members(t) {
		switch v := m.(type) {
		case *types.Array:
			if k := v.ToPair().Key(); k != nil {
				out = append(out, k)
				continue
			}
			out = append(out, types.Integer())
		case *types.Object:
			if args := v.Args(); len(args) > 1 {
				out = append(out, args[0])
				continue
			}
			out = append(out, arrayKey())
		default:
			if m.Kind() != types.KindNull {
				out = append(out, types.Unknown())
			}
		}
	}
	if len(out) == 0 {
		return types.Unknown()
	}
	return types.Union(out...)
}

func (b *flowBuilder) tryStatement(node *tree_sitter.Node, branches []*branch) {
	c := &construct{complete: true, try: true}
	b.index.constructs[node.Id()] = c

	if body := node.ChildByFieldName("body"); body != nil {
		b.walk(body, b.alternative(c, node, body, branches))
	}
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "catch_clause":
			body := child.ChildByFieldName("body")
			inner := with(branches, &branch{
				kind:       branchAlternative,
				construct:  node.Id(),
				body:       child,
				terminates: treesitterhelper.Terminates(body, b.content()),
			})
			c.alternatives = append(c.alternatives, inner[len(inner)-1])

			if name := child.ChildByFieldName("name"); name != nil {
				typeList := child.ChildByFieldName("type")
				b.assign(name, name, inner, func() types.Type { return b.caughtType(typeList) })
			}
			b.walk(body, inner)
		case "finally_clause":
			b.walk(child.ChildByFieldName("body"), branches)
		}
	}
}

func (b *flowBuilder) caughtType(typeList *tree_sitter.Node) types.Type {
	if typeList == nil {
		return types.Unknown()
	}
	var out []types.Type
	for _, named := range namedChildren(typeList) {
		out = append(out, b.run.classType(b.ctx, b.ctx.resolveName(b.ctx.text(named)), nil, named))
	}
	if len(out) == 0 {
		return types.Unknown()
	}
	return types.Union(out...)
}

// docOverride applies a standalone /** @var Type $name */ comment from the
// point it appears at.
func (b *flowBuilder) docOverride(comment *tree_sitter.Node, branches []*branch) {
	text := b.ctx.text(comment)
	if !phpdoc.IsDocComment(text) {
		return
	}
	block := phpdoc.ParseBlock(text)
	for _, v := range block.Vars() {
		if v.Variable == "" || v.Type == nil {
			continue
		}
		b.add(&mutation{
			name:     v.Variable,
			start:    comment.EndByte(),
			end:      comment.EndByte(),
			branches: branches,
			value: func() types.Type {
				b.run.checkDoc(b.ctx, block, comment)
				return b.run.describe(b.run.docType(b.ctx, v.Type), v.Description, nil)
			},
		})
	}
}

// memo returns fn wrapped so it runs at most once successfully.
func memo(fn func() types.Type) func() types.Type {
	var done bool
	var result types.Type
	return func() types.Type {
		if !done {
			result = fn()
			done = true
		}
		return result
	}
}
