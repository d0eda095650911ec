package compilers

import (
	"strings"

	"github.com/conneroisu/chtl/internal/placeholder"
)

// shield is DSL text with string literals and style/script bodies replaced
// by placeholder tokens, plus what is needed to map offsets back.
type shield struct {
	text   string
	spans  []placeholder.Span
	starts []int // offset of each token in text
	shifts []int // original minus shielded offset after each token
}

func newShield(m *placeholder.Manager, src string) (*shield, error) {
	spans := shieldSpans(src)
	text, err := m.Protect(src, spans)
	if err != nil {
		return nil, err
	}

	s := &shield{text: text, spans: spans}
	shift := 0
	for _, sp := range spans {
		start := sp.Start - shift
		n := placeholder.TokenLen(text[start:])
		shift += (sp.End - sp.Start) - n
		s.starts = append(s.starts, start)
		s.shifts = append(s.shifts, shift)
	}
	return s, nil
}

// original maps an offset in the shielded text to the source offset.
func (s *shield) original(p int) int {
	shift := 0
	for k, start := range s.starts {
		if start > p {
			break
		}
		if p < start+placeholder.TokenLen(s.text[start:]) {
			return s.spans[k].Start
		}
		shift = s.shifts[k]
	}
	return p + shift
}

// shieldSpans finds string literals and the bodies of style and script
// blocks. Comments are skipped so quotes inside them are ignored. Text that
// already looks like a placeholder token is shielded too, so it is restored
// as written instead of expanding to another fragment's content.
func shieldSpans(src string) []placeholder.Span {
	var spans []placeholder.Span
	for i := 0; i < len(src); {
		c := src[i]
		if n := placeholder.TokenLen(src[i:]); n > 0 {
			spans = append(spans, placeholder.Span{Start: i, End: i + n})
			i += n
			continue
		}
		switch {
		case c == '"' || c == '\'' && !(i > 0 && isWordByte(src[i-1])):
			end := stringEnd(src, i)
			if end < 0 {
				return spans
			}
			spans = append(spans, placeholder.Span{Start: i, End: end})
			i = end
		case strings.HasPrefix(src[i:], "//") && !(i > 0 && src[i-1] == ':'):
			i = endOfLine(src, i)
		case strings.HasPrefix(src[i:], "/*"):
			j := strings.Index(src[i+2:], "*/")
			if j < 0 {
				return spans
			}
			i += j + 4
		case isNameStart(c) && (i == 0 || !isNameByte(src[i-1])):
			j := i + 1
			for j < len(src) && isNameByte(src[j]) && placeholder.TokenLen(src[j:]) == 0 {
				j++
			}
			if word := src[i:j]; word == "style" || word == "script" {
				k := skipBlank(src, j)
				if k < len(src) && src[k] == '{' {
					end := matchBrace(src, k)
					if end < 0 {
						return spans
					}
					if end > k+1 {
						spans = append(spans, placeholder.Span{Start: k + 1, End: end})
					}
					i = end + 1
					continue
				}
			}
			i = j
		default:
			i++
		}
	}
	return spans
}

// stringEnd returns the offset just past the string opened at i, or -1.
func stringEnd(src string, i int) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return -1
}

// matchBrace returns the offset of the '}' closing the '{' at open, or -1.
// Strings and comments are skipped.
func matchBrace(src string, open int) int {
	depth := 0
	for i := open; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' || c == '\'' && !(i > 0 && isWordByte(src[i-1])) || c == '`':
			end := stringEnd(src, i)
			if end < 0 {
				return -1
			}
			i = end - 1
		case c == '/' && i+1 < len(src) && src[i+1] == '/' && !(i > 0 && src[i-1] == ':'):
			i = endOfLine(src, i) - 1
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			j := strings.Index(src[i+2:], "*/")
			if j < 0 {
				return -1
			}
			i += j + 3
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func endOfLine(src string, i int) int {
	if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(src)
}

func skipBlank(src string, i int) int {
	for i < len(src) && isBlank(src[i]) {
		i++
	}
	return i
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isNameByte(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-'
}
