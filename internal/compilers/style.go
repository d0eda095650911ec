package compilers

import (
	"context"
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/lexers"
	"github.com/conneroisu/chtl/internal/merger"
)

// Style compiles <style> blocks into stylesheet text. A media attribute
// wraps the rules in an @media block.
type Style struct{}

// Compile implements dispatcher.Compiler.
func (Style) Compile(ctx context.Context, cc *dispatcher.CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
	body := frag.Body()
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	sheet, err := parser.Parse(body)
	if err != nil {
		return nil, errors.NewSyntaxError("style", err.Error(), frag.Line, frag.Column).
			WithSuggestion("check for a missing ';' or '}' in the stylesheet")
	}
	if cc != nil && cc.Logger != nil {
		cc.Logger.Debug(ctx, "stylesheet parsed", "file", cc.File, "rules", len(sheet.Rules))
	}

	css, err := normalizeCSS(body)
	if err != nil {
		return nil, errors.NewSyntaxError("style", err.Error(), frag.Line, frag.Column)
	}
	if media := tagAttrs(frag.Content)["media"]; media != "" && media != "all" {
		css = "@media " + media + " {\n" + css + "\n}"
	}
	return []merger.Output{{Type: merger.CSS, Content: css}}, nil
}

// normalizeCSS collapses every run of whitespace to a single space and trims
// the ends. Strings and comments are kept as written.
func normalizeCSS(src string) (string, error) {
	tokens, err := lexers.CSS(src)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(src))
	for _, tok := range tokens {
		if tok.IsWhitespace() {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(tok.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

// tagAttrs returns the attributes of the opening tag at the start of
// content, keyed by lower-case name.
func tagAttrs(content string) map[string]string {
	attrs := make(map[string]string)
	z := html.NewTokenizer(strings.NewReader(content))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken:
	default:
		return attrs
	}
	_, more := z.TagName()
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		attrs[string(key)] = string(val)
	}
	return attrs
}
