package compilers

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// localStyle is a style block written inside an element. Bare declarations
// become the element's inline style; nested rules go to the stylesheet.
type localStyle struct {
	inline []*css.Declaration
	rules  []*css.Rule
}

func parseLocalStyle(body string) (*localStyle, error) {
	decls, rules := splitStyleBody(body)
	ls := &localStyle{}

	if strings.TrimSpace(decls) != "" {
		parsed, err := parser.ParseDeclarations(decls)
		if err != nil {
			return nil, err
		}
		ls.inline = parsed
	}
	if strings.TrimSpace(rules) != "" {
		// The parser does not accept '&', so it is swapped for a marker
		// selector and restored afterwards.
		sheet, err := parser.Parse(strings.ReplaceAll(rules, "&", ampMarker))
		if err != nil {
			return nil, err
		}
		ls.rules = sheet.Rules
	}
	return ls, nil
}

const ampMarker = ".__chtl_self__"

// splitStyleBody separates top-level declarations from nested rules.
func splitStyleBody(body string) (decls, rules string) {
	var d, r strings.Builder
	segStart := 0
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '"' || c == '\'':
			if end := stringEnd(body, i); end > 0 {
				i = end - 1
			}
		case c == '/' && i+1 < len(body) && body[i+1] == '*':
			if j := strings.Index(body[i+2:], "*/"); j >= 0 {
				i += j + 3
			}
		case c == ';':
			d.WriteString(body[segStart : i+1])
			segStart = i + 1
		case c == '{':
			end := matchBrace(body, i)
			if end < 0 {
				end = len(body) - 1
			}
			r.WriteString(body[segStart : end+1])
			r.WriteByte('\n')
			i = end
			segStart = end + 1
		}
	}
	if segStart < len(body) {
		d.WriteString(body[segStart:])
	}
	return d.String(), r.String()
}

// selectorNames collects the class and id names a rule's selectors start
// with.
func selectorNames(rules []*css.Rule) (classes, ids []string) {
	for _, rule := range rules {
		if rule.Kind != css.QualifiedRule {
			continue
		}
		for _, sel := range rule.Selectors {
			sel = strings.TrimSpace(sel)
			if strings.HasPrefix(sel, ampMarker) || len(sel) < 2 {
				continue
			}
			name := leadingName(sel[1:])
			if name == "" {
				continue
			}
			switch sel[0] {
			case '.':
				classes = append(classes, name)
			case '#':
				ids = append(ids, name)
			}
		}
	}
	return classes, ids
}

func leadingName(s string) string {
	i := 0
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	return s[:i]
}

// renderRules formats rules as stylesheet text with self references
// replaced by self.
func renderRules(rules []*css.Rule, self string) string {
	var parts []string
	for _, rule := range rules {
		if rule.Kind != css.QualifiedRule {
			parts = append(parts, strings.ReplaceAll(rule.String(), ampMarker, self))
			continue
		}
		sels := make([]string, len(rule.Selectors))
		for i, sel := range rule.Selectors {
			sels[i] = strings.ReplaceAll(strings.TrimSpace(sel), ampMarker, self)
		}
		var b strings.Builder
		b.WriteString(strings.Join(sels, ", "))
		b.WriteString(" {\n")
		for _, decl := range rule.Declarations {
			b.WriteString("  ")
			b.WriteString(declaration(decl))
			b.WriteString(";\n")
		}
		b.WriteString("}")
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

// inlineStyle formats declarations for a style attribute.
func inlineStyle(decls []*css.Declaration) string {
	parts := make([]string, len(decls))
	for i, decl := range decls {
		parts[i] = declaration(decl)
	}
	return strings.Join(parts, "; ")
}

func declaration(decl *css.Declaration) string {
	s := decl.Property + ": " + decl.Value
	if decl.Important {
		s += " !important"
	}
	return s
}
