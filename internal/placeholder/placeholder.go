// Package placeholder shields spans of foreign-language text behind opaque
// tokens so a parser that does not understand them can skip over them.
//
// A Manager is owned by one compilation unit and is not safe for
// concurrent use.
package placeholder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	tokenPrefix = "_PLACEHOLDER_"
	tokenSuffix = "_"
)

// Span is a half-open byte range [Start, End) of a text.
type Span struct {
	Start int
	End   int
}

// Manager maps placeholder tokens to the text they replaced.
type Manager struct {
	counter  int
	mappings map[string]string
}

// NewManager creates an empty manager whose first token is _PLACEHOLDER_0_.
func NewManager() *Manager {
	return &Manager{mappings: make(map[string]string)}
}

// Token formats the token for id.
func Token(id int) string {
	return tokenPrefix + strconv.Itoa(id) + tokenSuffix
}

// Create registers content and returns a fresh token for it. Identical
// content registered twice gets two distinct tokens.
func (m *Manager) Create(content string) string {
	if m.mappings == nil {
		m.mappings = make(map[string]string)
	}
	token := Token(m.counter)
	m.counter++
	m.mappings[token] = content
	return token
}

// Resolve returns the content registered for token.
func (m *Manager) Resolve(token string) (string, bool) {
	content, ok := m.mappings[token]
	return content, ok
}

// Replace substitutes every known token in text with its original content.
// Tokens are matched whole, so _PLACEHOLDER_1_ is never found inside
// _PLACEHOLDER_10_. Unknown tokens are left as they are, and restored
// content is not scanned again.
func (m *Manager) Replace(text string) string {
	if len(m.mappings) == 0 || !strings.Contains(text, tokenPrefix) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for {
		i := strings.Index(text, tokenPrefix)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:i])
		text = text[i:]

		n := tokenLen(text)
		if n == 0 {
			// Not a token; emit the leading underscore and keep looking.
			b.WriteByte(text[0])
			text = text[1:]
			continue
		}

		if content, ok := m.mappings[text[:n]]; ok {
			b.WriteString(content)
			text = text[n:]
			continue
		}

		// Unknown token. Keep all but its trailing underscore so that
		// underscore may open the next token.
		b.WriteString(text[:n-1])
		text = text[n-1:]
	}
}

// TokenLen returns the length of the token at the start of s, or 0 when s
// does not start with a well-formed token.
func TokenLen(s string) int {
	return tokenLen(s)
}

// tokenLen returns the length of the well-formed token at the start of s,
// or 0 when s does not start with one.
func tokenLen(s string) int {
	if !strings.HasPrefix(s, tokenPrefix) {
		return 0
	}
	i := len(tokenPrefix)
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start || i >= len(s) || s[i] != '_' {
		return 0
	}
	return i + 1
}

// Protect replaces each span of text with a fresh token and returns the
// shielded text. Spans may be given in any order but must lie within text
// and must not overlap.
func (m *Manager) Protect(text string, spans []Span) (string, error) {
	if len(spans) == 0 {
		return text, nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	prev := 0
	for _, s := range sorted {
		if s.Start < prev || s.End < s.Start || s.End > len(text) {
			return "", fmt.Errorf("invalid placeholder span [%d,%d) for text of length %d", s.Start, s.End, len(text))
		}
		prev = s.End
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range sorted {
		b.WriteString(text[last:s.Start])
		b.WriteString(m.Create(text[s.Start:s.End]))
		last = s.End
	}
	b.WriteString(text[last:])

	return b.String(), nil
}

// Len returns the number of registered tokens.
func (m *Manager) Len() int {
	return len(m.mappings)
}

// Clear resets the counter and forgets every mapping.
func (m *Manager) Clear() {
	m.counter = 0
	m.mappings = make(map[string]string)
}
