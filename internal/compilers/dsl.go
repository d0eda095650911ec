package compilers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/logging"
	"github.com/conneroisu/chtl/internal/merger"
	"github.com/conneroisu/chtl/internal/placeholder"
)

// voidElements never take content or a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// DSL compiles element blocks and declaration blocks.
//
// An element block such as
//
//	div {
//	    id: main;
//	    text { "hello" }
//	    style { color: red; .card { padding: 0; } }
//	}
//
// becomes HTML. Bare declarations of a local style block turn into the
// element's style attribute; nested rules are emitted as CSS and their
// class and id selectors are added to the element. Local script blocks
// are emitted as dsl_script. [Origin] blocks are passed through by type;
// other declaration blocks produce nothing and are counted as skipped.
type DSL struct {
	logger  logging.Logger
	skipped atomic.Int64
}

// NewDSL creates a DSL compiler.
func NewDSL(logger logging.Logger) *DSL {
	return &DSL{logger: logging.OrNop(logger).WithComponent("dsl")}
}

// Skipped returns how many declarations were skipped because they need
// template or import resolution.
func (d *DSL) Skipped() int64 {
	return d.skipped.Load()
}

// Compile implements dispatcher.Compiler.
func (d *DSL) Compile(ctx context.Context, cc *dispatcher.CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
	manager := placeholder.NewManager()
	file := ""
	if cc != nil {
		file = cc.File
		if cc.Placeholders != nil {
			manager = cc.Placeholders
		}
	}

	sh, err := newShield(manager, frag.Content)
	if err != nil {
		return nil, errors.WrapInternal(err, errors.ErrCodeInternalError, "shield dsl text")
	}

	p := &nodeParser{src: sh.text, resolve: manager.Replace}
	nodes, err := p.parseDocument()
	if err != nil {
		return nil, d.syntaxError(frag, sh, err)
	}

	g := &generator{frag: frag}
	if err := g.nodes(nodes, &g.html, true); err != nil {
		return nil, d.syntaxError(frag, sh, err)
	}

	if g.skipped > 0 {
		d.skipped.Add(int64(g.skipped))
		d.logger.Debug(ctx, "declarations skipped", "file", file, "line", frag.Line, "count", g.skipped)
	}
	return g.outputs(), nil
}

func (d *DSL) syntaxError(frag fragment.CodeFragment, sh *shield, err error) error {
	var pe *parseError
	if !stderrors.As(err, &pe) {
		return err
	}
	line, col := position(frag, sh.original(pe.offset))
	return errors.NewSyntaxError("dsl", pe.msg, line, col).
		WithSuggestion("element blocks hold 'name: value;' attributes, text { }, style { }, script { } and child elements")
}

// generator walks parsed nodes and accumulates each output kind.
type generator struct {
	frag    fragment.CodeFragment
	html    strings.Builder
	css     []string
	scripts []string
	js      []string
	autoID  int
	skipped int
}

func (g *generator) outputs() []merger.Output {
	var outs []merger.Output
	if g.html.Len() > 0 {
		outs = append(outs, merger.Output{Type: merger.DSL, Content: g.html.String()})
	}
	if len(g.css) > 0 {
		outs = append(outs, merger.Output{Type: merger.CSS, Content: strings.Join(g.css, "\n")})
	}
	if len(g.scripts) > 0 {
		outs = append(outs, merger.Output{Type: merger.DSLScript, Content: strings.Join(g.scripts, "\n")})
	}
	if len(g.js) > 0 {
		outs = append(outs, merger.Output{Type: merger.JS, Content: strings.Join(g.js, "\n")})
	}
	return outs
}

func (g *generator) fail(n *node, format string, args ...interface{}) error {
	return &parseError{offset: n.offset, msg: fmt.Sprintf(format, args...)}
}

// nodes renders a list of sibling nodes. topLevel is false inside an
// element, where attribute nodes have already been consumed.
func (g *generator) nodes(nodes []*node, b *strings.Builder, topLevel bool) error {
	for _, n := range nodes {
		switch n.kind {
		case nodeElement:
			if err := g.element(n, b); err != nil {
				return err
			}
		case nodeText:
			b.WriteString(html.EscapeString(n.value))
		case nodeComment:
			b.WriteString(generatorComment(n.value))
		case nodeOrigin:
			if err := g.origin(n, b); err != nil {
				return err
			}
		case nodeSkipped:
			g.skipped++
		case nodeAttribute:
			if topLevel {
				return g.fail(n, "attribute %q outside of an element", n.name)
			}
		case nodeStyle:
			if !topLevel {
				continue
			}
			if css, err := normalizeCSS(n.value); err != nil {
				return g.fail(n, "style block: %v", err)
			} else if css != "" {
				g.css = append(g.css, css)
			}
		case nodeScript:
			if err := g.script(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// attribute is an ordered name/value pair on an element.
type attribute struct {
	name  string
	value string
}

func (g *generator) element(n *node, b *strings.Builder) error {
	var attrs []attribute
	var styles []*localStyle
	for _, child := range n.children {
		switch child.kind {
		case nodeAttribute:
			attrs = append(attrs, attribute{name: child.name, value: child.value})
		case nodeStyle:
			ls, err := parseLocalStyle(child.value)
			if err != nil {
				return g.fail(child, "style block of %q: %v", n.name, err)
			}
			styles = append(styles, ls)
		}
	}

	attrs = g.applyStyles(n.name, attrs, styles)

	b.WriteByte('<')
	b.WriteString(n.name)
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.value))
		b.WriteByte('"')
	}
	b.WriteByte('>')

	if voidElements[strings.ToLower(n.name)] {
		for _, child := range n.children {
			switch child.kind {
			case nodeElement, nodeText, nodeOrigin:
				return g.fail(child, "void element %q cannot have content", n.name)
			}
		}
		return g.nodes(n.children, b, false)
	}

	if err := g.nodes(n.children, b, false); err != nil {
		return err
	}
	b.WriteString("</")
	b.WriteString(n.name)
	b.WriteByte('>')
	return nil
}

// applyStyles merges local style blocks into the attribute list and queues
// their rules for the stylesheet.
func (g *generator) applyStyles(tag string, attrs []attribute, styles []*localStyle) []attribute {
	if len(styles) == 0 {
		return attrs
	}

	var inline []string
	for _, ls := range styles {
		classes, ids := selectorNames(ls.rules)
		for _, c := range classes {
			attrs = addClass(attrs, c)
		}
		if len(ids) > 0 && attrValue(attrs, "id") == "" {
			attrs = setAttr(attrs, "id", ids[0])
		}
		if s := inlineStyle(ls.inline); s != "" {
			inline = append(inline, s)
		}
	}

	for _, ls := range styles {
		if len(ls.rules) == 0 {
			continue
		}
		self := ""
		if cls := strings.Fields(attrValue(attrs, "class")); len(cls) > 0 {
			self = "." + cls[0]
		} else if id := attrValue(attrs, "id"); id != "" {
			self = "#" + id
		} else {
			g.autoID++
			name := fmt.Sprintf("chtl-%s-%d", contentID(g.frag.Content), g.autoID)
			attrs = addClass(attrs, name)
			self = "." + name
		}
		g.css = append(g.css, renderRules(ls.rules, self))
	}

	if len(inline) > 0 {
		style := strings.Join(inline, "; ")
		if existing := strings.TrimRight(strings.TrimSpace(attrValue(attrs, "style")), ";"); existing != "" {
			style = existing + "; " + style
		}
		attrs = setAttr(attrs, "style", style)
	}
	return attrs
}

// contentID names a fragment by its content alone, so compiled output is
// the same wherever the fragment sits and whichever file it came from.
func contentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:4])
}

func (g *generator) script(n *node) error {
	code, _, err := expandSelectors(n.value)
	if err != nil {
		return g.fail(n, "script block: %v", err)
	}
	if code = strings.TrimSpace(code); code != "" {
		g.scripts = append(g.scripts, code)
	}
	return nil
}

func (g *generator) origin(n *node, b *strings.Builder) error {
	body := strings.TrimSpace(n.value)
	switch strings.ToLower(n.name) {
	case "@html":
		b.WriteString(body)
	case "@style":
		if body != "" {
			g.css = append(g.css, body)
		}
	case "@javascript":
		if body != "" {
			g.js = append(g.js, body)
		}
	default:
		return g.fail(n, "unknown origin type %q", n.name)
	}
	return nil
}

func attrValue(attrs []attribute, name string) string {
	for _, a := range attrs {
		if a.name == name {
			return a.value
		}
	}
	return ""
}

func setAttr(attrs []attribute, name, value string) []attribute {
	for i := range attrs {
		if attrs[i].name == name {
			attrs[i].value = value
			return attrs
		}
	}
	return append(attrs, attribute{name: name, value: value})
}

func addClass(attrs []attribute, class string) []attribute {
	existing := strings.Fields(attrValue(attrs, "class"))
	for _, c := range existing {
		if c == class {
			return attrs
		}
	}
	return setAttr(attrs, "class", strings.Join(append(existing, class), " "))
}
