// Package compilers provides the reference per-category compilers that turn
// scanned fragments into HTML, CSS and JavaScript parts.
//
// They are intentionally shallow: each validates its input with a real
// tokenizer and emits the content with light normalisation. Template
// resolution and imports are not handled.
package compilers

import (
	"unicode/utf8"

	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/logging"
)

// Register installs the reference compilers into reg.
func Register(reg *dispatcher.Registry, logger logging.Logger) *DSL {
	dsl := NewDSL(logger)
	reg.Register(fragment.Markup, Markup{})
	reg.Register(fragment.EmbeddedStyle, Style{})
	reg.Register(fragment.EmbeddedScript, Script{})
	reg.Register(fragment.DslBlock, dsl)
	reg.Register(fragment.Comment, Comment{})
	reg.Register(fragment.PlainText, dispatcher.Passthrough)
	reg.Register(fragment.Unclassified, dispatcher.Passthrough)
	return dsl
}

// DefaultRegistry returns a registry with every reference compiler.
func DefaultRegistry(logger logging.Logger) *dispatcher.Registry {
	reg := dispatcher.NewRegistry()
	Register(reg, logger)
	return reg
}

// position converts an offset inside frag's content into an absolute line
// and column.
func position(frag fragment.CodeFragment, offset int) (line, column int) {
	if offset > len(frag.Content) {
		offset = len(frag.Content)
	}
	line, column = frag.Line, frag.Column
	lineStart := 0
	for i := 0; i < offset; i++ {
		if frag.Content[i] == '\n' {
			line++
			lineStart = i + 1
			column = 1
		}
	}
	if lineStart == 0 {
		return line, column + utf8.RuneCountInString(frag.Content[:offset])
	}
	return line, column + utf8.RuneCountInString(frag.Content[lineStart:offset])
}
