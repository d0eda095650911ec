package scanner

import (
	"strings"
	"unicode"

	"github.com/conneroisu/chtl/internal/fragment"
)

var commentMarkers = []string{"<!--", "//", "/*", "--"}

// Classify assigns a category to a span no detector claimed, using its
// leading content. Unclassified is the fallback.
func Classify(content string) fragment.Category {
	trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
	if trimmed == "" {
		return fragment.PlainText
	}

	for _, marker := range commentMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return fragment.Comment
		}
	}

	if trimmed[0] == '<' && strings.IndexByte(trimmed, '>') > 0 {
		return fragment.Markup
	}

	return fragment.Unclassified
}
