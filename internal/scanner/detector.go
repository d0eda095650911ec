package scanner

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
)

// declarationKeywords open a DSL declaration when they follow '['.
var declarationKeywords = []string{
	"[Template]",
	"[Custom]",
	"[Origin]",
	"[Import]",
	"[Namespace]",
	"[Configuration]",
	"[Info]",
	"[Export]",
}

// BoundarySet is an ordered, non-overlapping list of detected boundaries.
type BoundarySet []fragment.Boundary

// ByCategory returns the boundaries of one category in source order.
func (s BoundarySet) ByCategory(c fragment.Category) []fragment.Boundary {
	var out []fragment.Boundary
	for _, b := range s {
		if b.Category == c {
			out = append(out, b)
		}
	}
	return out
}

// At returns the boundary containing offset.
func (s BoundarySet) At(offset int) (fragment.Boundary, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].End > offset })
	if i < len(s) && s[i].Contains(offset) {
		return s[i], true
	}
	return fragment.Boundary{}, false
}

// Counts returns the number of boundaries per category.
func (s BoundarySet) Counts() map[fragment.Category]int {
	counts := make(map[fragment.Category]int)
	for _, b := range s {
		counts[b.Category]++
	}
	return counts
}

// lineIndex maps byte offsets to 1-based line and rune columns.
type lineIndex struct {
	src    string
	starts []int
}

func newLineIndex(src string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

func (li *lineIndex) position(offset int) fragment.Position {
	if offset > len(li.src) {
		offset = len(li.src)
	}
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	col := utf8.RuneCountInString(li.src[li.starts[line]:offset]) + 1
	return fragment.Position{Line: line + 1, Column: col}
}

// detector performs the single boundary-detection pass over one source.
type detector struct {
	src   string
	lines *lineIndex
	out   BoundarySet
}

// DetectBoundaries runs boundary detection over src. The result is sorted by
// start offset and flat: comments, strings and blocks nested inside a DSL
// block belong to that block and are not reported on their own.
func DetectBoundaries(src string) (BoundarySet, error) {
	d := &detector{src: src, lines: newLineIndex(src)}
	if err := d.run(); err != nil {
		return nil, err
	}
	return d.out, nil
}

func (d *detector) run() error {
	pos := 0
	for pos < len(d.src) {
		end, cat, matched, err := d.detectAt(pos)
		if err != nil {
			return err
		}
		if !matched {
			pos++
			continue
		}
		if cat == fragment.Unclassified {
			// Skipped construct such as a string literal.
			pos = end
			continue
		}
		d.emit(cat, pos, end)
		pos = end
	}
	return nil
}

// detectAt tries every rule at pos in priority order. A match with the
// Unclassified category is a span to skip without emitting a boundary.
func (d *detector) detectAt(pos int) (end int, cat fragment.Category, matched bool, err error) {
	src := d.src
	c := src[pos]

	switch c {
	case '[':
		if hasDeclarationKeyword(src[pos:]) {
			end, err = d.scanDeclaration(pos)
			return end, fragment.DslBlock, err == nil, err
		}

	case '{':
		if strings.HasPrefix(src[pos:], "{{") {
			end, err = d.scanUntil(pos, pos+2, "}}", "inline script", false)
			return end, fragment.EmbeddedScript, err == nil, err
		}

	case '<':
		switch {
		case hasTagOpener(src[pos:], "style"):
			end, err = d.scanUntil(pos, pos+len("<style"), "</style>", "style block", true)
			return end, fragment.EmbeddedStyle, err == nil, err
		case hasTagOpener(src[pos:], "script"):
			end, err = d.scanUntil(pos, pos+len("<script"), "</script>", "script block", true)
			return end, fragment.EmbeddedScript, err == nil, err
		case strings.HasPrefix(src[pos:], "<!--"):
			end, err = d.scanUntil(pos, pos+4, "-->", "html comment", false)
			return end, fragment.Comment, err == nil, err
		case pos+1 < len(src) && isMarkupStart(src[pos+1]):
			end, err = d.scanTag(pos)
			return end, fragment.Markup, err == nil, err
		}

	case '/':
		if strings.HasPrefix(src[pos:], "//") && !isURLSlash(src, pos) {
			return lineEnd(src, pos), fragment.Comment, true, nil
		}
		if strings.HasPrefix(src[pos:], "/*") {
			end, err = d.scanUntil(pos, pos+2, "*/", "block comment", false)
			return end, fragment.Comment, err == nil, err
		}

	case '-':
		if strings.HasPrefix(src[pos:], "--") {
			return lineEnd(src, pos), fragment.Comment, true, nil
		}

	case '"', '\'':
		if opensString(src, pos) {
			end, err = d.skipString(pos)
			return end, fragment.Unclassified, err == nil, err
		}

	default:
		if isIdentStart(c) && !followsWord(src, pos, true) {
			if open, ok := elementBrace(src, pos); ok {
				end, err = d.scanBraces(pos, open)
				return end, fragment.DslBlock, err == nil, err
			}
		}
	}

	return 0, fragment.Unclassified, false, nil
}

func (d *detector) emit(cat fragment.Category, start, end int) {
	d.out = append(d.out, fragment.Boundary{
		Category: cat,
		Start:    start,
		End:      end,
		StartPos: d.lines.position(start),
		EndPos:   d.lines.position(end),
	})
}

func (d *detector) unterminated(category string, start int, closer string) error {
	p := d.lines.position(start)
	return errors.NewUnterminatedBoundary(category, start, p.Line, p.Column, closer)
}

// scanDeclaration scans a bracketed declaration starting at start. The
// header ends at the first '{', ';' or newline outside strings. A newline
// followed only by whitespace and '{' continues into the body.
func (d *detector) scanDeclaration(start int) (int, error) {
	src := d.src
	i := start + 1
	for i < len(src) {
		switch c := src[i]; {
		case c == '{':
			return d.scanBraces(start, i)
		case c == ';':
			return i + 1, nil
		case c == '\n':
			j := skipSpace(src, i)
			if j < len(src) && src[j] == '{' {
				return d.scanBraces(start, j)
			}
			return i, nil
		case (c == '"' || c == '\'') && opensString(src, i):
			end, err := d.skipString(i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		i++
	}
	return len(src), nil
}

// scanBraces counts brace depth from the '{' at open, skipping strings and
// comments, and returns the offset just past the matching '}'.
func (d *detector) scanBraces(start, open int) (int, error) {
	src := d.src
	depth := 0
	i := open
	for i < len(src) {
		c := src[i]
		switch {
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		case c == '"' || c == '`' || (c == '\'' && opensString(src, i)):
			end, err := d.skipString(i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		case c == '/' && strings.HasPrefix(src[i:], "//") && !isURLSlash(src, i):
			i = lineEnd(src, i)
			continue
		case c == '/' && strings.HasPrefix(src[i:], "/*"):
			end, err := d.scanUntil(i, i+2, "*/", "block comment", false)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		}
		i++
	}
	return 0, d.unterminated("dsl block", start, "}")
}

// scanUntil returns the offset just past the first closer found at or after
// from. fold makes the search ASCII case-insensitive.
func (d *detector) scanUntil(start, from int, closer, category string, fold bool) (int, error) {
	rest := d.src[from:]
	var idx int
	if fold {
		idx = indexFold(rest, closer)
	} else {
		idx = strings.Index(rest, closer)
	}
	if idx < 0 {
		return 0, d.unterminated(category, start, closer)
	}
	return from + idx + len(closer), nil
}

// scanTag returns the offset just past the '>' closing the tag at start.
// Quoted attribute values may contain '>'.
func (d *detector) scanTag(start int) (int, error) {
	src := d.src
	var quote byte
	for i := start + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i + 1, nil
		}
	}
	return 0, d.unterminated("markup tag", start, ">")
}

// skipString returns the offset just past the string opened at start.
// Backslash escapes the next byte.
func (d *detector) skipString(start int) (int, error) {
	src := d.src
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1, nil
		}
	}
	return 0, d.unterminated("string", start, string(quote))
}

func hasDeclarationKeyword(s string) bool {
	for _, kw := range declarationKeywords {
		if strings.HasPrefix(s, kw) {
			return true
		}
	}
	return false
}

// hasTagOpener reports whether s starts with "<name" followed by '>', '/'
// or whitespace, ignoring ASCII case.
func hasTagOpener(s, name string) bool {
	n := len(name) + 1
	if len(s) <= n || !strings.EqualFold(s[1:n], name) || s[0] != '<' {
		return false
	}
	switch s[n] {
	case '>', '/', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func isMarkupStart(c byte) bool {
	return isLetter(c) || c == '/' || c == '!'
}

// elementBrace reports whether an identifier starting at pos is followed by
// optional whitespace and a single '{', returning the brace offset.
func elementBrace(src string, pos int) (int, bool) {
	i := pos
	for i < len(src) && isIdentByte(src[i]) {
		i++
	}
	i = skipSpace(src, i)
	if i >= len(src) || src[i] != '{' {
		return 0, false
	}
	if i+1 < len(src) && src[i+1] == '{' {
		return 0, false
	}
	return i, true
}

// opensString applies the apostrophe rule: a single quote directly after a
// letter or digit is part of a word, not a string opener.
func opensString(src string, pos int) bool {
	if src[pos] != '\'' || pos == 0 {
		return true
	}
	return !followsWord(src, pos, false)
}

// followsWord reports whether the rune before pos is a letter or digit, or
// with ident set, any identifier rune. Non-ASCII letters count so a match
// never starts inside a word like "héllo".
func followsWord(src string, pos int, ident bool) bool {
	if pos == 0 {
		return false
	}
	if c := src[pos-1]; c < utf8.RuneSelf {
		if ident {
			return isIdentByte(c)
		}
		return isLetter(c) || isDigit(c)
	}
	r, _ := utf8.DecodeLastRuneInString(src[:pos])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isURLSlash reports whether the "//" at pos follows a scheme colon.
func isURLSlash(src string, pos int) bool {
	return pos > 0 && src[pos-1] == ':'
}

// lineEnd returns the offset of the next newline at or after pos, or the
// source length.
func lineEnd(src string, pos int) int {
	if i := strings.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(src)
}

func skipSpace(src string, i int) int {
	for i < len(src) {
		switch src[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// indexFold is strings.Index with ASCII case folding.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return isLetter(c) || c == '_'
}

func isIdentByte(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '-'
}
