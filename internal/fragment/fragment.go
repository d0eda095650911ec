// Package fragment provides the data model shared by the scanner, the
// dispatcher and the merger: categories, boundaries and code fragments.
//
// The package holds no behaviour that reads raw source bytes beyond
// slicing a fragment's own content. Detection lives in the scanner.
package fragment

import (
	"fmt"
	"strings"
)

// Category classifies a span of source text by the sub-language occupying it.
type Category int

const (
	// Unclassified is a leftover span that matched no heuristic.
	Unclassified Category = iota
	// DslBlock is a declaration written in the host templating language.
	DslBlock
	// EmbeddedScript is a <script> tag block or a {{ }} inline block.
	EmbeddedScript
	// EmbeddedStyle is a <style> tag block.
	EmbeddedStyle
	// Markup is a raw HTML tag.
	Markup
	// Comment is a line, block, generator or HTML comment.
	Comment
	// PlainText is a whitespace-only span.
	PlainText
)

var categoryNames = map[Category]string{
	Unclassified:   "unclassified",
	DslBlock:       "dsl",
	EmbeddedScript: "script",
	EmbeddedStyle:  "style",
	Markup:         "markup",
	Comment:        "comment",
	PlainText:      "text",
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{Unclassified, DslBlock, EmbeddedScript, EmbeddedStyle, Markup, Comment, PlainText}
}

// String returns the short name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler so categories render by name
// in JSON and YAML output.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory resolves a category from its short name.
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return Unclassified, fmt.Errorf("unknown fragment category %q", name)
}

// Position is a 1-based line and column. Columns count runes.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// String formats the position as line:column.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Boundary is the detected span of one structural construct. Start is
// inclusive and End exclusive, both byte offsets into the source.
type Boundary struct {
	Category Category `json:"category" yaml:"category"`
	Start    int      `json:"start" yaml:"start"`
	End      int      `json:"end" yaml:"end"`
	StartPos Position `json:"start_pos" yaml:"start_pos"`
	EndPos   Position `json:"end_pos" yaml:"end_pos"`
}

// Len returns the byte length of the boundary.
func (b Boundary) Len() int {
	return b.End - b.Start
}

// Contains reports whether offset lies inside the boundary.
func (b Boundary) Contains(offset int) bool {
	return offset >= b.Start && offset < b.End
}

// Overlaps reports whether the two boundaries share at least one byte.
func (b Boundary) Overlaps(other Boundary) bool {
	return b.Start < other.End && other.Start < b.End
}

// CodeFragment is a contiguous, classified slice of the source. Content is
// an owned copy of source[Start:End].
type CodeFragment struct {
	Category Category `json:"category" yaml:"category"`
	Content  string   `json:"content" yaml:"content"`
	Start    int      `json:"start" yaml:"start"`
	End      int      `json:"end" yaml:"end"`
	Line     int      `json:"line" yaml:"line"`
	Column   int      `json:"column" yaml:"column"`
}

// Len returns the byte length of the fragment.
func (f CodeFragment) Len() int {
	return f.End - f.Start
}

// Position returns the fragment's starting line and column.
func (f CodeFragment) Position() Position {
	return Position{Line: f.Line, Column: f.Column}
}

// Body returns the fragment content without its wrapper: the inner text of a
// <style> or <script> element, or the expression inside {{ }}. Other
// categories return the content unchanged.
func (f CodeFragment) Body() string {
	switch f.Category {
	case EmbeddedStyle:
		return innerTag(f.Content, "style")
	case EmbeddedScript:
		if strings.HasPrefix(f.Content, "{{") && strings.HasSuffix(f.Content, "}}") && len(f.Content) >= 4 {
			return f.Content[2 : len(f.Content)-2]
		}
		return innerTag(f.Content, "script")
	default:
		return f.Content
	}
}

// IsInline reports whether the fragment is a {{ }} inline script block.
func (f CodeFragment) IsInline() bool {
	return f.Category == EmbeddedScript && strings.HasPrefix(f.Content, "{{")
}

// innerTag strips "<name ...>" and "</name>" from content.
func innerTag(content, name string) string {
	lower := strings.ToLower(content)
	if !strings.HasPrefix(lower, "<"+name) {
		return content
	}
	open := strings.IndexByte(content, '>')
	if open < 0 {
		return content
	}
	closeTag := "</" + name + ">"
	end := len(content)
	if strings.HasSuffix(lower, closeTag) {
		end -= len(closeTag)
	}
	if open+1 > end {
		return ""
	}
	return content[open+1 : end]
}
