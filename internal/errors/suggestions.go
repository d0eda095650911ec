package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Example     string
}

// closingSuggestion builds the default hint for an unterminated construct.
func closingSuggestion(closer string) string {
	if closer == "" {
		return "add a closing delimiter"
	}
	return fmt.Sprintf("add a closing %q", closer)
}

// SuggestionsFor generates suggestions for a compile error
func SuggestionsFor(err error) []ErrorSuggestion {
	var ce *CompileError
	if !errors.As(err, &ce) {
		return nil
	}

	var suggestions []ErrorSuggestion
	if ce.Suggestion != "" {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Suggested fix",
			Description: ce.Suggestion,
		})
	}

	switch ce.Kind {
	case KindUnterminatedBoundary:
		suggestions = append(suggestions, unterminatedSuggestions(ce)...)
	case KindSubCompilerFailure:
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Inspect the fragment",
			Description: "List the fragments of the file to see which span was routed to the failing compiler",
			Example:     "chtl scan " + ce.File,
		})
	case KindStageDependencyUnmet:
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Check the pipeline definition",
			Description: "Every stage must be added after the stages it depends on",
		})
	case KindConfig:
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Check configuration",
			Description: "Print the effective configuration",
			Example:     "chtl config show",
		})
	}

	return suggestions
}

func unterminatedSuggestions(ce *CompileError) []ErrorSuggestion {
	category := strings.ToLower(ce.Category)
	switch {
	case strings.Contains(category, "comment"):
		return []ErrorSuggestion{{
			Title:       "Close the comment",
			Description: "Block comments end at the first */",
			Example:     "/* note */",
		}}
	case strings.Contains(category, "string"):
		return []ErrorSuggestion{{
			Title:       "Close the string",
			Description: "Strings end at the next unescaped quote of the same kind",
			Example:     `text { "hello" }`,
		}}
	case strings.Contains(category, "inline"):
		return []ErrorSuggestion{{
			Title:       "Close the inline block",
			Description: "Inline script blocks end at the first }} and do not nest",
			Example:     "{{box}}.listen({ click: () => {} });",
		}}
	case strings.Contains(category, "dsl"):
		return []ErrorSuggestion{{
			Title:       "Balance the braces",
			Description: "Every { in a block needs a matching }",
			Example:     "div { span { } }",
		}}
	case strings.Contains(category, "style"), strings.Contains(category, "script"):
		return []ErrorSuggestion{{
			Title:       "Close the tag",
			Description: "Tag blocks end at the first matching closing tag",
			Example:     "<style>.a{color:red}</style>",
		}}
	}
	return nil
}

// FormatError renders an error with its location and suggestions, one per line.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(err.Error())
	for _, s := range SuggestionsFor(err) {
		b.WriteString("\n  hint: ")
		b.WriteString(s.Description)
		if s.Example != "" {
			b.WriteString(" (e.g. ")
			b.WriteString(s.Example)
			b.WriteString(")")
		}
	}
	return b.String()
}
