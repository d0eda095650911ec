// Package lexers tokenizes CSS and JavaScript losslessly. The concatenated
// token text always equals the input.
package lexers

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"github.com/tdewolff/parse/v2/js"
)

// JSToken is one JavaScript token and its byte offset in the input.
type JSToken struct {
	Type   js.TokenType
	Text   string
	Offset int
}

// Significant reports whether the token is neither whitespace nor a comment.
func (t JSToken) Significant() bool {
	switch t.Type {
	case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
		return false
	}
	return true
}

// IsComment reports whether the token is a line or block comment.
func (t JSToken) IsComment() bool {
	return t.Type == js.CommentToken || t.Type == js.CommentLineTerminatorToken
}

// IsLineBreak reports whether the token is a bare line terminator.
func (t JSToken) IsLineBreak() bool {
	return t.Type == js.LineTerminatorToken
}

// IsWhitespace reports whether the token is inline whitespace.
func (t JSToken) IsWhitespace() bool {
	return t.Type == js.WhitespaceToken
}

// JS tokenizes src. A slash is read as the start of a regular expression
// wherever an expression may begin.
func JS(src string) ([]JSToken, error) {
	l := js.NewLexer(parse.NewInputString(src))
	var (
		tokens []JSToken
		offset int
		prev   string
	)
	for {
		tt, data := l.Next()
		if tt == js.ErrorToken {
			if err := l.Err(); err != nil && !stderrors.Is(err, io.EOF) {
				return tokens, fmt.Errorf("javascript at byte %d: %w", offset, err)
			}
			return tokens, nil
		}
		if (tt == js.DivToken || tt == js.DivEqToken) && regexpAllowed(prev) {
			tt, data = l.RegExp()
			if tt == js.ErrorToken {
				return tokens, fmt.Errorf("javascript at byte %d: unterminated regular expression", offset)
			}
		}

		tok := JSToken{Type: tt, Text: string(data), Offset: offset}
		tokens = append(tokens, tok)
		offset += len(data)
		if tok.Significant() {
			prev = tok.Text
		}
	}
}

var regexpKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// regexpAllowed reports whether a slash after the token prev starts a
// regular expression rather than a division.
func regexpAllowed(prev string) bool {
	if prev == "" {
		return true
	}
	if regexpKeywords[prev] {
		return true
	}
	switch c := prev[len(prev)-1]; {
	case c == ')' || c == ']' || c == '}':
		return false
	case c == '"' || c == '\'' || c == '`':
		return false
	case c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return false
	case c >= 0x80:
		return false
	}
	return true
}

// CSSToken is one CSS token and its byte offset in the input.
type CSSToken struct {
	Type   css.TokenType
	Text   string
	Offset int
}

// IsWhitespace reports whether the token is whitespace.
func (t CSSToken) IsWhitespace() bool {
	return t.Type == css.WhitespaceToken
}

// IsComment reports whether the token is a /* */ comment.
func (t CSSToken) IsComment() bool {
	return t.Type == css.CommentToken
}

// CSS tokenizes src.
func CSS(src string) ([]CSSToken, error) {
	l := css.NewLexer(parse.NewInputString(src))
	var (
		tokens []CSSToken
		offset int
	)
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !stderrors.Is(err, io.EOF) {
				return tokens, fmt.Errorf("css at byte %d: %w", offset, err)
			}
			return tokens, nil
		}
		tokens = append(tokens, CSSToken{Type: tt, Text: string(data), Offset: offset})
		offset += len(data)
	}
}
