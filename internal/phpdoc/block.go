package phpdoc

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is a raw docblock tag: "@param int $id the id" has Name "param" and Body
// "int $id the id". Vendor prefixes (phpstan-, psalm-) are stripped from Name and
// recorded in Vendor.
type Tag struct {
	Name   string
	Vendor string
	Body   string
	Line   int
}

// VarTag is @var Type [$name] [description].
type VarTag struct {
	Type        Node
	Variable    string
	Description string
}

// ParamTag is @param Type [...]$name [description].
type ParamTag struct {
	Type        Node
	Variable    string
	Variadic    bool
	Description string
}

// ReturnTag is @return Type [description].
type ReturnTag struct {
	Type        Node
	Description string
}

// TemplateTag is @template T [of Bound] [= Default].
type TemplateTag struct {
	Name    string
	Bound   Node
	Default Node
}

// PropertyTag is @property[-read|-write] Type $name [description] on a class docblock.
type PropertyTag struct {
	Type        Node
	Name        string
	ReadOnly    bool
	Description string
}

// ThrowsTag is @throws Type [description].
type ThrowsTag struct {
	Type        Node
	Description string
}

// Block is a parsed /** ... */ comment.
type Block struct {
	Summary     string
	Description string
	Tags        []Tag

	// Errors collects type expressions that failed to parse. The offending tags are
	// left out of the typed accessors.
	Errors []error

	vars      []VarTag
	params    []ParamTag
	returns   []ReturnTag
	templates []TemplateTag
	extends   []Node
	implement []Node
	uses      []Node
	props     []PropertyTag
	throws    []ThrowsTag
	examples  []any
}

// IsDocComment reports whether text is a /** docblock rather than a plain comment.
func IsDocComment(text string) bool {
	return strings.HasPrefix(text, "/**") && !strings.HasPrefix(text, "/***/")
}

// ParseBlock parses a docblock comment including its /** and */ delimiters. Plain
// text without delimiters is accepted too.
func ParseBlock(comment string) *Block {
	b := &Block{}
	var text []string
	var current *Tag

	for i, line := range cleanLines(comment) {
		if strings.HasPrefix(line, "@") {
			name, body, _ := strings.Cut(line[1:], " ")
			if tab := strings.IndexByte(name, '\t'); tab >= 0 {
				body = name[tab+1:] + " " + body
				name = name[:tab]
			}
			tag := Tag{Name: strings.ToLower(name), Body: strings.TrimSpace(body), Line: i}
			for _, vendor := range []string{"phpstan-", "psalm-"} {
				if strings.HasPrefix(tag.Name, vendor) {
					tag.Vendor = strings.TrimSuffix(vendor, "-")
					tag.Name = strings.TrimPrefix(tag.Name, vendor)
				}
			}
			b.Tags = append(b.Tags, tag)
			current = &b.Tags[len(b.Tags)-1]
			continue
		}
		if current != nil {
			if line != "" {
				current.Body = strings.TrimSpace(current.Body + " " + line)
			}
			continue
		}
		text = append(text, line)
	}

	b.Summary, b.Description = splitSummary(text)
	for _, tag := range b.Tags {
		b.addTag(tag)
	}
	return b
}

func cleanLines(comment string) []string {
	comment = strings.TrimSpace(comment)
	comment = strings.TrimPrefix(comment, "/**")
	comment = strings.TrimSuffix(comment, "*/")

	raw := strings.Split(strings.ReplaceAll(comment, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "*") {
			l = strings.TrimSpace(l[1:])
		}
		lines = append(lines, l)
	}
	return lines
}

func splitSummary(lines []string) (string, string) {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var summary []string
	i := 0
	for ; i < len(lines) && lines[i] != ""; i++ {
		summary = append(summary, lines[i])
	}
	rest := strings.TrimSpace(strings.Join(lines[i:], "\n"))
	return strings.Join(summary, " "), rest
}

func (b *Block) addTag(tag Tag) {
	switch tag.Name {
	case "var":
		typ, rest, ok := b.parseLeadingType(tag)
		if !ok {
			return
		}
		v := VarTag{Type: typ}
		v.Variable, v.Description = splitVariable(rest)
		b.vars = preferVendor(b.vars, v, tag.Vendor != "", func(e VarTag) bool { return e.Variable == v.Variable })
	case "param":
		typ, rest, ok := b.parseLeadingType(tag)
		if !ok {
			return
		}
		p := ParamTag{Type: typ}
		if strings.HasPrefix(rest, "...") {
			p.Variadic = true
			rest = rest[3:]
		}
		rest = strings.TrimPrefix(rest, "&")
		p.Variable, p.Description = splitVariable(rest)
		b.params = preferVendor(b.params, p, tag.Vendor != "", func(e ParamTag) bool { return e.Variable == p.Variable })
	case "return":
		typ, rest, ok := b.parseLeadingType(tag)
		if !ok {
			return
		}
		b.returns = preferVendor(b.returns, ReturnTag{Type: typ, Description: rest}, tag.Vendor != "", func(ReturnTag) bool { return true })
	case "template", "template-covariant", "template-contravariant":
		b.addTemplate(tag)
	case "extends", "implements", "use", "template-extends", "template-implements", "template-use":
		typ, _, ok := b.parseLeadingType(tag)
		if !ok {
			return
		}
		switch strings.TrimPrefix(tag.Name, "template-") {
		case "extends":
			b.extends = append(b.extends, typ)
		case "implements":
			b.implement = append(b.implement, typ)
		default:
			b.uses = append(b.uses, typ)
		}
	case "property", "property-read", "property-write":
		typ, rest, ok := b.parseLeadingType(tag)
		if !ok {
			return
		}
		p := PropertyTag{Type: typ, ReadOnly: tag.Name == "property-read"}
		p.Name, p.Description = splitVariable(rest)
		p.Name = strings.TrimPrefix(p.Name, "$")
		if p.Name == "" {
			return
		}
		b.props = preferVendor(b.props, p, tag.Vendor != "", func(e PropertyTag) bool { return e.Name == p.Name })
	case "throws":
		typ, rest, ok := b.parseLeadingType(tag)
		if !ok {
			return
		}
		b.throws = append(b.throws, ThrowsTag{Type: typ, Description: rest})
	case "example":
		if tag.Body != "" {
			b.examples = append(b.examples, ParseExample(tag.Body))
		}
	}
}

func (b *Block) addTemplate(tag Tag) {
	fields := strings.Fields(tag.Body)
	if len(fields) == 0 {
		return
	}
	tpl := TemplateTag{Name: fields[0]}
	rest := strings.TrimSpace(strings.TrimPrefix(tag.Body, fields[0]))
	if strings.HasPrefix(rest, "of ") || strings.HasPrefix(rest, "as ") {
		bound, after, ok := b.parseTypeText(tag, strings.TrimSpace(rest[3:]))
		if !ok {
			return
		}
		tpl.Bound = bound
		rest = after
	}
	if strings.HasPrefix(rest, "=") {
		def, _, ok := b.parseTypeText(tag, strings.TrimSpace(rest[1:]))
		if !ok {
			return
		}
		tpl.Default = def
	}
	for _, existing := range b.templates {
		if existing.Name == tpl.Name {
			return
		}
	}
	b.templates = append(b.templates, tpl)
}

func (b *Block) parseLeadingType(tag Tag) (Node, string, bool) {
	return b.parseTypeText(tag, tag.Body)
}

func (b *Block) parseTypeText(tag Tag, text string) (Node, string, bool) {
	typeText, rest := SplitType(text)
	if typeText == "" {
		return nil, rest, false
	}
	node, err := ParseType(typeText)
	if err != nil {
		b.Errors = append(b.Errors, fmt.Errorf("@%s: %w", tag.Name, err))
		return nil, rest, false
	}
	return node, rest, true
}

// preferVendor appends v unless an entry matching same exists. A vendor-prefixed tag
// replaces an existing plain one and is never replaced by one.
func preferVendor[T any](list []T, v T, vendor bool, same func(T) bool) []T {
	for i, e := range list {
		if same(e) {
			if vendor {
				list[i] = v
			}
			return list
		}
	}
	return append(list, v)
}

// SplitType splits a tag body into its leading type expression and the remaining
// text. Whitespace inside brackets, quotes or around | & , : does not end the type.
func SplitType(body string) (string, string) {
	body = strings.TrimSpace(body)
	depth := 0
	var quote byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '<', '{', '(', '[':
			depth++
		case '>', '}', ')', ']':
			if depth > 0 {
				depth--
			}
		case ' ', '\t':
			if depth > 0 {
				continue
			}
			if continuesType(body, i) {
				continue
			}
			return body[:i], strings.TrimSpace(body[i:])
		}
	}
	return body, ""
}

func continuesType(body string, i int) bool {
	prev := strings.TrimRight(body[:i], " \t")
	if prev != "" && strings.ContainsRune("|&:,", rune(prev[len(prev)-1])) {
		return true
	}
	next := strings.TrimLeft(body[i:], " \t")
	if next == "" {
		return false
	}
	switch next[0] {
	case '|':
		return true
	case '&':
		return !strings.HasPrefix(next, "&$") && !strings.HasPrefix(next, "&...")
	case ':':
		return strings.HasSuffix(prev, ")")
	}
	return false
}

func splitVariable(rest string) (string, string) {
	if !strings.HasPrefix(rest, "$") {
		return "", rest
	}
	name, desc, _ := strings.Cut(rest, " ")
	return strings.TrimPrefix(name, "$"), strings.TrimSpace(desc)
}

// ParseExample converts the body of an @example tag into a value: numbers, booleans,
// null and quoted strings are decoded, anything else is kept verbatim.
func ParseExample(body string) any {
	body = strings.TrimSpace(body)
	switch strings.ToLower(body) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(body, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(body, 64); err == nil {
		return f
	}
	if len(body) >= 2 && (body[0] == '"' || body[0] == '\'') && body[len(body)-1] == body[0] {
		return body[1 : len(body)-1]
	}
	return body
}

// Var returns the @var tag for variable name. An empty name matches an @var tag
// without a variable; when no such tag exists, a lone @var tag matches any name.
func (b *Block) Var(name string) (VarTag, bool) {
	if b == nil {
		return VarTag{}, false
	}
	name = strings.TrimPrefix(name, "$")
	for _, v := range b.vars {
		if v.Variable == name {
			return v, true
		}
	}
	if len(b.vars) == 1 && b.vars[0].Variable == "" {
		return b.vars[0], true
	}
	return VarTag{}, false
}

// Vars returns all @var tags.
func (b *Block) Vars() []VarTag {
	if b == nil {
		return nil
	}
	return b.vars
}

// Param returns the @param tag documenting $name.
func (b *Block) Param(name string) (ParamTag, bool) {
	if b == nil {
		return ParamTag{}, false
	}
	name = strings.TrimPrefix(name, "$")
	for _, p := range b.params {
		if p.Variable == name {
			return p, true
		}
	}
	return ParamTag{}, false
}

// Return returns the @return tag, preferring the vendor-prefixed one.
func (b *Block) Return() (ReturnTag, bool) {
	if b == nil || len(b.returns) == 0 {
		return ReturnTag{}, false
	}
	return b.returns[0], true
}

// Templates returns the declared template parameters in order.
func (b *Block) Templates() []TemplateTag {
	if b == nil {
		return nil
	}
	return b.templates
}

// Extends returns the @extends types.
func (b *Block) Extends() []Node {
	if b == nil {
		return nil
	}
	return b.extends
}

// Implements returns the @implements types.
func (b *Block) Implements() []Node {
	if b == nil {
		return nil
	}
	return b.implement
}

// Uses returns the @use types.
func (b *Block) Uses() []Node {
	if b == nil {
		return nil
	}
	return b.uses
}

// Properties returns the @property tags of a class docblock.
func (b *Block) Properties() []PropertyTag {
	if b == nil {
		return nil
	}
	return b.props
}

// Throws returns the @throws tags.
func (b *Block) Throws() []ThrowsTag {
	if b == nil {
		return nil
	}
	return b.throws
}

// Examples returns the decoded @example values.
func (b *Block) Examples() []any {
	if b == nil {
		return nil
	}
	return b.examples
}

// HasTag reports whether a tag with the given name (without @) is present.
func (b *Block) HasTag(name string) bool {
	if b == nil {
		return false
	}
	for _, t := range b.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Text returns the summary and description joined, the human documentation of the
// commented element.
func (b *Block) Text() string {
	if b == nil {
		return ""
	}
	if b.Description == "" {
		return b.Summary
	}
	if b.Summary == "" {
		return b.Description
	}
	return b.Summary + "\n\n" + b.Description
}
