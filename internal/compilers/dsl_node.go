package compilers

import (
	"fmt"
	"strings"
)

// nodeKind tags the variant held by a node.
type nodeKind int

const (
	nodeElement nodeKind = iota
	nodeAttribute
	nodeText
	nodeStyle
	nodeScript
	nodeComment
	nodeOrigin
	nodeSkipped
)

// node is one parsed DSL construct. Which fields are meaningful depends on
// kind: elements use name and children, attributes use name and value,
// origins use name for the embed type, and the remaining kinds use value.
type node struct {
	kind     nodeKind
	name     string
	value    string
	children []*node
	offset   int // in the shielded text
}

// nodeParser is a recursive descent parser over shielded DSL text. String
// literals and style/script bodies appear as single placeholder tokens.
type nodeParser struct {
	src     string
	pos     int
	resolve func(string) string
}

type parseError struct {
	offset int
	msg    string
}

func (e *parseError) Error() string { return e.msg }

func (p *nodeParser) fail(offset int, format string, args ...interface{}) error {
	return &parseError{offset: offset, msg: fmt.Sprintf(format, args...)}
}

// parseDocument parses statements until the end of input.
func (p *nodeParser) parseDocument() ([]*node, error) {
	nodes, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.src) {
		return nil, p.fail(p.pos, "unexpected '%c'", p.src[p.pos])
	}
	return nodes, nil
}

// parseItems parses statements until a closing brace or the end of input.
// The closing brace is not consumed.
func (p *nodeParser) parseItems() ([]*node, error) {
	var nodes []*node
	for {
		p.skipTrivia()
		if p.pos >= len(p.src) || p.src[p.pos] == '}' {
			return nodes, nil
		}
		n, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
}

func (p *nodeParser) parseStatement() (*node, error) {
	start := p.pos
	rest := p.src[p.pos:]

	switch {
	case strings.HasPrefix(rest, "--"):
		end := endOfLine(p.src, p.pos)
		p.pos = end
		return &node{kind: nodeComment, value: strings.TrimSpace(p.resolve(rest[2 : end-start])), offset: start}, nil
	case rest[0] == ';':
		p.pos++
		return nil, nil
	case rest[0] == '[':
		return p.parseDeclaration()
	case rest[0] == '@':
		// Template and custom usages are resolved elsewhere.
		if err := p.skipStatement(); err != nil {
			return nil, err
		}
		return &node{kind: nodeSkipped, value: strings.TrimSpace(p.src[start:p.pos]), offset: start}, nil
	}

	name := p.readName()
	if name == "" {
		return nil, p.fail(start, "unexpected '%c'", rest[0])
	}
	p.skipBlank()
	if p.pos >= len(p.src) {
		return nil, p.fail(start, "%q is missing a block or value", name)
	}

	switch p.src[p.pos] {
	case '{':
		return p.parseBlock(name, start)
	case ':', '=':
		p.pos++
		value := p.readValue()
		if name == "text" {
			return &node{kind: nodeText, value: value, offset: start}, nil
		}
		return &node{kind: nodeAttribute, name: name, value: value, offset: start}, nil
	case ';':
		p.pos++
		return &node{kind: nodeElement, name: name, offset: start}, nil
	default:
		return nil, p.fail(p.pos, "expected '{', ':' or '=' after %q", name)
	}
}

// parseBlock parses the braced body following name. p.pos is at '{'.
func (p *nodeParser) parseBlock(name string, start int) (*node, error) {
	open := p.pos
	p.pos++

	switch name {
	case "text", "style", "script":
		end := matchBrace(p.src, open)
		if end < 0 {
			return nil, p.fail(open, "unclosed %s block", name)
		}
		body := p.src[open+1 : end]
		p.pos = end + 1
		kind := map[string]nodeKind{"text": nodeText, "style": nodeStyle, "script": nodeScript}[name]
		if kind == nodeText {
			return &node{kind: nodeText, value: textValue(p.resolve(body)), offset: start}, nil
		}
		return &node{kind: kind, value: p.resolve(body), offset: start}, nil
	}

	children, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.src) {
		return nil, p.fail(open, "unclosed block for element %q", name)
	}
	p.pos++
	return &node{kind: nodeElement, name: name, children: children, offset: start}, nil
}

// parseDeclaration parses a [Keyword] construct. Only [Origin] produces a
// node with content; every other keyword is skipped.
func (p *nodeParser) parseDeclaration() (*node, error) {
	start := p.pos
	bracket := strings.IndexByte(p.src[p.pos:], ']')
	if bracket < 0 {
		return nil, p.fail(start, "unclosed '[' in declaration")
	}
	keyword := p.src[p.pos+1 : p.pos+bracket]
	p.pos += bracket + 1

	headerEnd := strings.IndexAny(p.src[p.pos:], "{;")
	if headerEnd < 0 {
		header := strings.TrimSpace(p.src[p.pos:])
		p.pos = len(p.src)
		return &node{kind: nodeSkipped, value: "[" + keyword + "] " + header, offset: start}, nil
	}
	header := strings.TrimSpace(p.src[p.pos : p.pos+headerEnd])
	p.pos += headerEnd

	if p.src[p.pos] == ';' {
		p.pos++
		return &node{kind: nodeSkipped, value: "[" + keyword + "] " + header, offset: start}, nil
	}

	open := p.pos
	end := matchBrace(p.src, open)
	if end < 0 {
		return nil, p.fail(open, "unclosed [%s] block", keyword)
	}
	body := p.resolve(p.src[open+1 : end])
	p.pos = end + 1

	if keyword != "Origin" {
		return &node{kind: nodeSkipped, value: "[" + keyword + "] " + header, offset: start}, nil
	}
	fields := strings.Fields(header)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "@") {
		return nil, p.fail(start, "[Origin] needs a type such as @Html, @Style or @JavaScript")
	}
	return &node{kind: nodeOrigin, name: fields[0], value: body, offset: start}, nil
}

// skipStatement advances past the next ';' or balanced block.
func (p *nodeParser) skipStatement() error {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ';':
			p.pos++
			return nil
		case '{':
			end := matchBrace(p.src, p.pos)
			if end < 0 {
				return p.fail(p.pos, "unclosed block")
			}
			p.pos = end + 1
			return nil
		case '}':
			return nil
		}
		p.pos++
	}
	return nil
}

func (p *nodeParser) readName() string {
	start := p.pos
	if p.pos < len(p.src) && isNameStart(p.src[p.pos]) {
		for p.pos < len(p.src) && isNameByte(p.src[p.pos]) {
			p.pos++
		}
	}
	return p.src[start:p.pos]
}

// readValue reads an attribute value up to ';' or '}' and restores any
// shielded text in it.
func (p *nodeParser) readValue() string {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != ';' && p.src[p.pos] != '}' {
		p.pos++
	}
	value := p.src[start:p.pos]
	if p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
	}
	return unquote(strings.TrimSpace(p.resolve(value)))
}

func (p *nodeParser) skipBlank() {
	p.pos = skipBlank(p.src, p.pos)
}

// skipTrivia skips whitespace and // and /* */ comments.
func (p *nodeParser) skipTrivia() {
	for p.pos < len(p.src) {
		p.skipBlank()
		rest := p.src[p.pos:]
		switch {
		case strings.HasPrefix(rest, "//"):
			p.pos = endOfLine(p.src, p.pos)
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 4
		default:
			return
		}
	}
}

// textValue turns a text block body into its literal text. A body that is
// a single quoted string is unquoted; otherwise surrounding whitespace is
// trimmed.
func textValue(body string) string {
	return unquote(strings.TrimSpace(body))
}

// unquote strips matching quotes and resolves backslash escapes. Text that
// is not a single quoted literal is returned unchanged.
func unquote(s string) string {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return s
	}
	if stringEnd(s, 0) != len(s) {
		return s
	}
	inner := s[1 : len(s)-1]
	if !strings.Contains(inner, `\`) {
		return inner
	}

	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' || i+1 == len(inner) {
			b.WriteByte(c)
			continue
		}
		i++
		switch inner[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(inner[i])
		}
	}
	return b.String()
}
