package compilers

import (
	"context"
	stderrors "errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/merger"
)

// Markup passes raw tags through after checking that the fragment holds
// exactly one well-formed tag.
type Markup struct{}

// Compile implements dispatcher.Compiler.
func (Markup) Compile(_ context.Context, _ *dispatcher.CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
	z := html.NewTokenizer(strings.NewReader(frag.Content))
	tt := z.Next()
	switch tt {
	case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken, html.DoctypeToken, html.CommentToken:
	case html.ErrorToken:
		if err := z.Err(); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, errors.NewSyntaxError("markup", "empty markup fragment", frag.Line, frag.Column)
	default:
		return nil, errors.NewSyntaxError("markup", "expected a tag, found "+tt.String(), frag.Line, frag.Column).
			WithSuggestion("escape a literal '<' as &lt;")
	}

	if tt == html.StartTagToken || tt == html.EndTagToken || tt == html.SelfClosingTagToken {
		name, _ := z.TagName()
		if len(name) == 0 {
			return nil, errors.NewSyntaxError("markup", "tag has no name", frag.Line, frag.Column)
		}
	}

	if rest := len(z.Raw()); rest < len(frag.Content) {
		line, col := position(frag, rest)
		return nil, errors.NewSyntaxError("markup", "trailing text after tag", line, col)
	}
	return []merger.Output{{Type: merger.HTML, Content: frag.Content}}, nil
}
