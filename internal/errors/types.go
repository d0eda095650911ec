package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a compile-time failure.
type Kind string

const (
	// KindUnterminatedBoundary marks a bracket, tag, comment or string that
	// is never closed. Fatal for the current file.
	KindUnterminatedBoundary Kind = "unterminated_boundary"
	// KindAmbiguousClassification marks a leftover span that fell back to
	// the unclassified category. Recovered locally.
	KindAmbiguousClassification Kind = "ambiguous_classification"
	// KindStageDependencyUnmet marks a pipeline configuration bug.
	KindStageDependencyUnmet Kind = "stage_dependency_unmet"
	// KindSubCompilerFailure is propagated from a per-language compiler.
	KindSubCompilerFailure Kind = "sub_compiler_failure"
	KindIO                 Kind = "io"
	KindConfig             Kind = "config"
	KindInternal           Kind = "internal"
)

// Common error codes.
const (
	ErrCodeUnterminated     = "ERR_UNTERMINATED"
	ErrCodeAmbiguous        = "ERR_AMBIGUOUS_FRAGMENT"
	ErrCodeStageDependency  = "ERR_STAGE_DEPENDENCY"
	ErrCodeSubCompiler      = "ERR_SUB_COMPILER"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeUnknownStage     = "ERR_UNKNOWN_STAGE"
	ErrCodeDuplicateStage   = "ERR_DUPLICATE_STAGE"
	ErrCodeFragmentMismatch = "ERR_FRAGMENT_MISMATCH"
	ErrCodeSyntax           = "ERR_SYNTAX"
)

// CompileError is a structured error type carrying the source location and,
// where one applies, a suggested fix.
type CompileError struct {
	Kind        Kind
	Code        string
	Message     string
	Category    string
	File        string
	Line        int
	Column      int
	Offset      int
	Stage       string
	Suggestion  string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}

	location := e.File
	if e.Line > 0 {
		if location != "" {
			location += ":"
		}
		location += fmt.Sprintf("%d", e.Line)
		if e.Column > 0 {
			location += fmt.Sprintf(":%d", e.Column)
		}
	}
	if location != "" {
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on kind and code.
func (e *CompileError) Is(target error) bool {
	var t *CompileError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *CompileError) WithContext(key string, value interface{}) *CompileError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds source location information.
func (e *CompileError) WithLocation(offset, line, column int) *CompileError {
	e.Offset = offset
	e.Line = line
	e.Column = column

	return e
}

// WithFile records the file the error belongs to.
func (e *CompileError) WithFile(file string) *CompileError {
	e.File = file

	return e
}

// WithStage records the pipeline stage that failed.
func (e *CompileError) WithStage(stage string) *CompileError {
	e.Stage = stage

	return e
}

// WithSuggestion sets a human-readable fix.
func (e *CompileError) WithSuggestion(suggestion string) *CompileError {
	e.Suggestion = suggestion

	return e
}

// Error creation functions

// NewUnterminatedBoundary creates the fatal error raised when a construct of
// the given category opened at (offset, line, column) is never closed.
func NewUnterminatedBoundary(category string, offset, line, column int, closer string) *CompileError {
	return &CompileError{
		Kind:        KindUnterminatedBoundary,
		Code:        ErrCodeUnterminated,
		Message:     fmt.Sprintf("unterminated %s", category),
		Category:    category,
		Offset:      offset,
		Line:        line,
		Column:      column,
		Suggestion:  closingSuggestion(closer),
		Recoverable: false,
	}
}

// NewAmbiguousClassification records a span that fell back to unclassified.
func NewAmbiguousClassification(offset, line, column int, excerpt string) *CompileError {
	return &CompileError{
		Kind:        KindAmbiguousClassification,
		Code:        ErrCodeAmbiguous,
		Message:     fmt.Sprintf("could not classify %q", excerpt),
		Offset:      offset,
		Line:        line,
		Column:      column,
		Suggestion:  "wrap the text in a text { } block or a markup tag",
		Recoverable: true,
	}
}

// NewStageDependencyUnmet creates the error raised when a stage runs before
// one of its dependencies has completed.
func NewStageDependencyUnmet(stage, dependency string) *CompileError {
	return &CompileError{
		Kind:        KindStageDependencyUnmet,
		Code:        ErrCodeStageDependency,
		Message:     fmt.Sprintf("stage %q requires %q to complete first", stage, dependency),
		Stage:       stage,
		Suggestion:  "register stages in dependency order",
		Recoverable: false,
	}
}

// NewSubCompilerFailure wraps an error returned by a per-language compiler.
func NewSubCompilerFailure(category string, line, column int, cause error) *CompileError {
	return &CompileError{
		Kind:        KindSubCompilerFailure,
		Code:        ErrCodeSubCompiler,
		Message:     fmt.Sprintf("%s compiler failed", category),
		Category:    category,
		Line:        line,
		Column:      column,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewSyntaxError reports malformed input found by a per-language compiler.
// Line and column are absolute source positions, or zero when unknown.
func NewSyntaxError(category, message string, line, column int) *CompileError {
	return &CompileError{
		Kind:        KindSubCompilerFailure,
		Code:        ErrCodeSyntax,
		Message:     message,
		Category:    category,
		Line:        line,
		Column:      column,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *CompileError {
	return &CompileError{
		Kind:        KindIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *CompileError {
	return &CompileError{
		Kind:        KindConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *CompileError {
	return &CompileError{
		Kind:        KindInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Recoverable
	}

	return false
}

// KindOf returns the kind of the first CompileError in err's chain, or the
// empty kind when there is none.
func KindOf(err error) Kind {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	return ""
}

// IsKind reports whether err carries a CompileError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Location extracts the line and column of the first CompileError in err's
// chain that carries a position.
func Location(err error) (line, column int, ok bool) {
	for err != nil {
		var ce *CompileError
		if !errors.As(err, &ce) {
			return 0, 0, false
		}
		if ce.Line > 0 {
			return ce.Line, ce.Column, true
		}
		err = ce.Cause
	}

	return 0, 0, false
}
