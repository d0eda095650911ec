package merger

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/chtl/internal/lexers"
)

func minify(a Artifact, text string) string {
	switch a {
	case ArtifactCSS:
		return minifyCSS(text)
	case ArtifactJS:
		return minifyJS(text)
	default:
		return minifyHTML(text)
	}
}

func stripComments(a Artifact, text string) string {
	switch a {
	case ArtifactCSS:
		return stripCSSComments(text)
	case ArtifactJS:
		return stripJSComments(text)
	default:
		return stripHTMLComments(text)
	}
}

// minifyHTML removes newlines and tabs and collapses runs of spaces.
func minifyHTML(text string) string {
	text = strings.NewReplacer("\n", "", "\r", "", "\t", "").Replace(text)
	return collapseSpaces(text)
}

func collapseSpaces(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// tight reports whether whitespace next to c can be dropped.
func tight(c byte) bool {
	switch c {
	case ';', '{', '}', ':', ',':
		return true
	}
	return false
}

// minifyCSS drops whitespace around punctuation and collapses the rest to
// single spaces. Whitespace before a colon is kept since it separates a
// descendant pseudo-class selector. Strings and comments are copied
// unchanged.
func minifyCSS(text string) string {
	tokens, err := lexers.CSS(text)
	if err != nil {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	var last byte

	for _, tok := range tokens {
		if tok.IsWhitespace() {
			pendingSpace = true
			continue
		}
		next := tok.Text[0]
		if pendingSpace && last != 0 && !tight(last) && (next == ':' || !tight(next)) {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteString(tok.Text)
		last = tok.Text[len(tok.Text)-1]
	}
	return b.String()
}

// minifyJS drops whitespace around punctuation, keeps line breaks that may
// end a statement, and turns line comments into block comments so removing
// newlines never comments out code. Comments are ignored when deciding
// which whitespace to keep.
func minifyJS(text string) string {
	tokens, err := lexers.JS(text)
	if err != nil {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace, pendingNewline := false, false
	var lastCode byte

	for _, tok := range tokens {
		data := tok.Text
		switch {
		case tok.IsWhitespace():
			pendingSpace = true
			continue
		case tok.IsLineBreak():
			pendingNewline = true
			continue
		case tok.IsComment() && strings.HasPrefix(data, "//"):
			body := strings.TrimRight(data[2:], "\r\n")
			if strings.Contains(body, "*/") {
				continue
			}
			data = "/*" + body + "*/"
		}
		comment := tok.IsComment()

		if lastCode != 0 {
			switch {
			case pendingNewline && !comment && !newlineDropsAfter(lastCode) && !newlineDropsBefore(data[0]):
				b.WriteByte('\n')
			case (pendingSpace || pendingNewline) && !tight(lastCode) && !tight(data[0]):
				b.WriteByte(' ')
			}
		}
		if !comment {
			pendingSpace, pendingNewline = false, false
			lastCode = data[len(data)-1]
		} else {
			pendingSpace = false
		}
		b.WriteString(data)
	}
	return b.String()
}

func newlineDropsAfter(c byte) bool {
	switch c {
	case ';', '{', ',', ':':
		return true
	}
	return false
}

func newlineDropsBefore(c byte) bool {
	switch c {
	case ';', '}', ',', ')':
		return true
	}
	return false
}

// stripHTMLComments removes <!-- --> comments. Script and style contents are
// raw text to the tokenizer, so markers inside them survive.
func stripHTMLComments(text string) string {
	z := html.NewTokenizer(strings.NewReader(text))
	var b strings.Builder
	b.Grow(len(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !isEOF(z.Err()) {
				return text
			}
			break
		}
		if tt == html.CommentToken {
			continue
		}
		b.Write(z.Raw())
	}
	return b.String()
}

// stripCSSComments removes /* */ comments outside strings.
func stripCSSComments(text string) string {
	tokens, err := lexers.CSS(text)
	if err != nil {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, tok := range tokens {
		if !tok.IsComment() {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

// stripJSComments removes line and block comments outside strings. A block
// comment spanning lines is replaced by a newline so statements stay apart.
func stripJSComments(text string) string {
	tokens, err := lexers.JS(text)
	if err != nil {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, tok := range tokens {
		if !tok.IsComment() {
			b.WriteString(tok.Text)
			continue
		}
		if strings.HasPrefix(tok.Text, "/*") && strings.ContainsAny(tok.Text, "\n\r") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func isEOF(err error) bool {
	return err == nil || errors.Is(err, io.EOF)
}
