package compilers

import (
	"context"
	"strings"

	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/merger"
)

// Comment keeps generator comments (--) and HTML comments in the markup and
// drops source-only // and /* */ comments.
type Comment struct{}

// Compile implements dispatcher.Compiler.
func (Comment) Compile(_ context.Context, _ *dispatcher.CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
	content := frag.Content
	switch {
	case strings.HasPrefix(content, "<!--"):
		return []merger.Output{{Type: merger.HTML, Content: content}}, nil
	case strings.HasPrefix(content, "--"):
		return []merger.Output{{Type: merger.HTML, Content: generatorComment(content[2:])}}, nil
	default:
		return nil, nil
	}
}

// generatorComment renders text as an HTML comment. A "--" inside the text
// would end the comment early, so it is spaced out.
func generatorComment(text string) string {
	text = strings.TrimSpace(text)
	for strings.Contains(text, "--") {
		text = strings.ReplaceAll(text, "--", "- -")
	}
	return "<!-- " + text + " -->"
}
