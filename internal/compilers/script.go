package compilers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/lexers"
	"github.com/conneroisu/chtl/internal/merger"
)

// Script compiles <script> blocks and {{ }} inline selector blocks.
//
// A {{selector}} block becomes a DOM query: {{.box}} queries the first
// match, {{button[1]}} indexes into all matches. Selector blocks inside a
// <script> body are expanded the same way and mark the output as
// dsl_script. A <script src=...> element is kept as markup.
type Script struct{}

var selectorPattern = regexp.MustCompile(`^([.#]?[A-Za-z_][\w-]*(?:\s+[.#]?[A-Za-z_][\w-]*)*)(?:\[(\d+)\])?$`)

// Compile implements dispatcher.Compiler.
func (Script) Compile(_ context.Context, _ *dispatcher.CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
	body := frag.Body()

	if frag.IsInline() {
		expr, ok := selectorQuery(body)
		if !ok {
			expr = strings.TrimSpace(body)
			if _, err := lexers.JS(expr); err != nil {
				return nil, errors.NewSyntaxError("script", err.Error(), frag.Line, frag.Column)
			}
		}
		if expr == "" {
			return nil, nil
		}
		return []merger.Output{{Type: merger.DSLScript, Content: expr}}, nil
	}

	if _, ok := tagAttrs(frag.Content)["src"]; ok && strings.TrimSpace(body) == "" {
		return []merger.Output{{Type: merger.HTML, Content: frag.Content}}, nil
	}

	code, expanded, err := expandSelectors(body)
	if err != nil {
		return nil, errors.NewSyntaxError("script", err.Error(), frag.Line, frag.Column).
			WithSuggestion("check for an unclosed string, template or regular expression")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	if expanded {
		return []merger.Output{{Type: merger.DSLScript, Content: code}}, nil
	}
	return []merger.Output{{Type: merger.JS, Content: code}}, nil
}

// selectorQuery converts selector text into a DOM query expression.
func selectorQuery(text string) (string, bool) {
	m := selectorPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	sel := strconv.Quote(m[1])
	if m[2] != "" {
		return fmt.Sprintf("document.querySelectorAll(%s)[%s]", sel, m[2]), true
	}
	return fmt.Sprintf("document.querySelector(%s)", sel), true
}

// expandSelectors rewrites {{selector}} blocks found in code position. Text
// inside strings, templates, regular expressions and comments is left
// alone.
func expandSelectors(src string) (string, bool, error) {
	tokens, err := lexers.JS(src)
	if err != nil {
		return "", false, err
	}

	var b strings.Builder
	b.Grow(len(src))
	expanded := false
	skipTo := 0
	for i, tok := range tokens {
		if tok.Offset < skipTo {
			continue
		}
		if tok.Text == "{" && i+1 < len(tokens) && tokens[i+1].Text == "{" {
			if end := strings.Index(src[tok.Offset+2:], "}}"); end >= 0 {
				inner := src[tok.Offset+2 : tok.Offset+2+end]
				if expr, ok := selectorQuery(inner); ok {
					b.WriteString(expr)
					skipTo = tok.Offset + 2 + end + 2
					expanded = true
					continue
				}
			}
		}
		b.WriteString(tok.Text)
	}
	return b.String(), expanded, nil
}
