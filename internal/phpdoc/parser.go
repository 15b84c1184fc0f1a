package phpdoc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every type expression parse error.
var ErrSyntax = errors.New("phpdoc syntax error")

// SyntaxError describes where a type expression could not be parsed.
type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s in %q at offset %d", e.Msg, e.Input, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// ParseType parses a documented type expression such as
// "array{id: int, tags?: list<string>}|null".
func ParseType(input string) (Node, error) {
	p := &typeParser{src: input}
	node, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return node, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return &SyntaxError{Input: p.src, Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *typeParser) eof() bool { return p.pos >= len(p.src) }

func (p *typeParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *typeParser) accept(c byte) bool {
	p.skipSpace()
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) expect(c byte) error {
	if !p.accept(c) {
		if p.eof() {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, p.peek())
	}
	return nil
}

func (p *typeParser) parseUnion() (Node, error) {
	first, err := p.parseIntersection()
	if err != nil {
		return nil, err
	}
	types := []Node{first}
	for p.accept('|') {
		next, err := p.parseIntersection()
		if err != nil {
			return nil, err
		}
		types = append(types, next)
	}
	if len(types) == 1 {
		return first, nil
	}
	return &UnionNode{Types: types}, nil
}

func (p *typeParser) parseIntersection() (Node, error) {
	first, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	types := []Node{first}
	for {
		p.skipSpace()
		// "&..." would be a by-reference variadic parameter, not an intersection.
		if p.peek() != '&' || strings.HasPrefix(p.src[p.pos:], "&...") || strings.HasPrefix(p.src[p.pos:], "&$") {
			break
		}
		p.pos++
		next, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		types = append(types, next)
	}
	if len(types) == 1 {
		return first, nil
	}
	return &IntersectionNode{Types: types}, nil
}

func (p *typeParser) parsePostfix() (Node, error) {
	node, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if !strings.HasPrefix(p.src[p.pos:], "[]") {
			return node, nil
		}
		p.pos += 2
		node = &ArrayNode{Type: node}
	}
}

func (p *typeParser) parseAtom() (Node, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of type")
	}

	switch c := p.peek(); {
	case c == '?':
		p.pos++
		inner, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return &NullableNode{Type: inner}, nil
	case c == '(':
		p.pos++
		inner, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil
	case c == '\'' || c == '"':
		s, err := p.parseQuoted()
		if err != nil {
			return nil, err
		}
		return &ConstNode{Value: s}, nil
	case c == '-' || isDigit(c):
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseNamed()
	}
	return nil, p.errorf("unexpected %q", p.peek())
}

func (p *typeParser) parseQuoted() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
			continue
		}
		if c == quote {
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

func (p *typeParser) parseNumber() (Node, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	isFloat := false
	for !p.eof() {
		c := p.peek()
		if c == '.' {
			isFloat = true
		} else if !isDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf("invalid float %q", text)
		}
		return &ConstNode{Value: f}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errorf("invalid integer %q", text)
	}
	return &ConstNode{Value: i}, nil
}

func (p *typeParser) readIdentifier() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if isIdentPart(c) {
			p.pos++
			continue
		}
		// dashes are part of names like non-empty-string, not of ranges
		if c == '-' && p.pos+1 < len(p.src) && isIdentStart(p.src[p.pos+1]) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parseNamed() (Node, error) {
	name := p.readIdentifier()
	ident := &IdentifierNode{Name: name}
	lower := strings.ToLower(name)

	if strings.HasPrefix(p.src[p.pos:], "::") {
		p.pos += 2
		if p.peek() == '*' {
			p.pos++
			return &ConstFetchNode{Class: name, Name: "*"}, nil
		}
		constName := p.readIdentifier()
		if constName == "" {
			return nil, p.errorf("expected constant name after %s::", name)
		}
		if p.peek() == '*' {
			p.pos++
			constName += "*"
		}
		return &ConstFetchNode{Class: name, Name: constName}, nil
	}

	switch p.peek() {
	case '<':
		p.pos++
		args, err := p.parseList('>')
		if err != nil {
			return nil, err
		}
		return &GenericNode{Type: ident, Args: args}, nil
	case '{':
		if lower == "array" || lower == "list" || lower == "object" || lower == "non-empty-array" || lower == "non-empty-list" {
			p.pos++
			return p.parseShape(lower)
		}
	case '(':
		if lower == "callable" || lower == "closure" || lower == "\\closure" || lower == "pure-callable" || lower == "pure-closure" {
			p.pos++
			return p.parseCallable(name)
		}
	}
	return ident, nil
}

func (p *typeParser) parseList(end byte) ([]Node, error) {
	var nodes []Node
	for {
		p.skipSpace()
		if p.accept(end) {
			return nodes, nil
		}
		node, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		if p.accept(',') {
			continue
		}
		if err := p.expect(end); err != nil {
			return nil, err
		}
		return nodes, nil
	}
}

func (p *typeParser) parseShape(kind string) (Node, error) {
	shape := &ShapeNode{Kind: strings.TrimPrefix(kind, "non-empty-")}
	for {
		p.skipSpace()
		if p.accept('}') {
			return shape, nil
		}
		if strings.HasPrefix(p.src[p.pos:], "...") {
			// unsealed shape marker
			p.pos += 3
			p.accept(',')
			continue
		}
		item, err := p.parseShapeItem()
		if err != nil {
			return nil, err
		}
		shape.Items = append(shape.Items, item)
		if p.accept(',') {
			continue
		}
		if err := p.expect('}'); err != nil {
			return nil, err
		}
		return shape, nil
	}
}

func (p *typeParser) parseShapeItem() (ShapeItem, error) {
	p.skipSpace()
	save := p.pos

	// Try "key:" / "key?:" first, fall back to a bare value.
	var item ShapeItem
	switch c := p.peek(); {
	case c == '\'' || c == '"':
		key, err := p.parseQuoted()
		if err == nil {
			item.Key, item.HasKey = key, true
		}
	case isDigit(c):
		start := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		item.Key, item.HasKey, item.IntKey = p.src[start:p.pos], true, true
	case isIdentStart(c):
		item.Key, item.HasKey = p.readIdentifier(), true
	}
	if item.HasKey {
		p.skipSpace()
		if p.peek() == '?' && p.pos+1 < len(p.src) && p.src[p.pos+1] == ':' {
			item.Optional = true
			p.pos++
		}
		if p.peek() == ':' && !strings.HasPrefix(p.src[p.pos:], "::") {
			p.pos++
			value, err := p.parseUnion()
			if err != nil {
				return ShapeItem{}, err
			}
			item.Value = value
			return item, nil
		}
	}

	p.pos = save
	value, err := p.parseUnion()
	if err != nil {
		return ShapeItem{}, err
	}
	return ShapeItem{Value: value}, nil
}

func (p *typeParser) parseCallable(name string) (Node, error) {
	node := &CallableNode{Name: name}
	for {
		p.skipSpace()
		if p.accept(')') {
			break
		}
		param, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		node.Params = append(node.Params, param)
		// skip "...", "&", "$name" and "=" decorations of callable parameters
		p.skipSpace()
		for !p.eof() && p.peek() != ',' && p.peek() != ')' {
			p.pos++
		}
		if p.accept(',') {
			continue
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		break
	}
	save := p.pos
	if p.accept(':') {
		ret, err := p.parsePostfix()
		if err != nil {
			p.pos = save
			return node, nil
		}
		node.Return = ret
	}
	return node, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '\\' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
