package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorSeverityString(t *testing.T) {
	testCases := []struct {
		severity ErrorSeverity
		expected string
	}{
		{ErrorSeverityInfo, "info"},
		{ErrorSeverityWarning, "warning"},
		{ErrorSeverityError, "error"},
		{ErrorSeverityFatal, "fatal"},
		{ErrorSeverity(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.severity.String())
		})
	}
}

func TestCompileErrorMessage(t *testing.T) {
	err := NewUnterminatedBoundary("block comment", 5, 1, 6, "*/").WithFile("page.chtl")

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_UNTERMINATED]")
	assert.Contains(t, msg, "page.chtl:1:6")
	assert.Contains(t, msg, "unterminated block comment")
	assert.Equal(t, `add a closing "*/"`, err.Suggestion)
	assert.False(t, err.Recoverable)
}

func TestCompileErrorIs(t *testing.T) {
	a := NewStageDependencyUnmet("merge", "compile")
	b := NewStageDependencyUnmet("other", "scan")
	c := NewUnterminatedBoundary("dsl block", 0, 1, 1, "}")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))

	wrapped := fmt.Errorf("pipeline: %w", a)
	assert.True(t, stderrors.Is(wrapped, b))
	assert.Equal(t, KindStageDependencyUnmet, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindStageDependencyUnmet))
}

func TestLocation(t *testing.T) {
	inner := NewUnterminatedBoundary("string", 10, 3, 4, `"`)
	outer := NewSubCompilerFailure("dsl", 0, 0, inner)

	line, col, ok := Location(outer)
	require.True(t, ok)
	assert.Equal(t, 3, line)
	assert.Equal(t, 4, col)

	_, _, ok = Location(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(NewAmbiguousClassification(0, 1, 1, "x")))
	assert.False(t, IsRecoverable(NewUnterminatedBoundary("markup tag", 0, 1, 1, ">")))
	assert.False(t, IsRecoverable(stderrors.New("plain")))
}

func TestWrapPreservesLocation(t *testing.T) {
	inner := NewUnterminatedBoundary("style block", 4, 2, 1, "</style>").WithStage("scan")
	wrapped := WrapInternal(inner, ErrCodeInternalError, "compile failed")

	assert.Equal(t, 2, wrapped.Line)
	assert.Equal(t, "scan", wrapped.Stage)
	assert.Equal(t, inner, wrapped.Unwrap())
	assert.Nil(t, Wrap(nil, KindIO, ErrCodeFileNotFound, "nothing"))
}

func TestErrorChainHelpers(t *testing.T) {
	root := stderrors.New("disk full")
	err := FileOperationError("write", "out/index.html", root)

	assert.Equal(t, root, GetRootCause(err))
	assert.Len(t, GetErrorChain(err), 2)
	assert.True(t, HasErrorCode(err, ErrCodeFileNotFound))
	assert.False(t, HasErrorCode(err, ErrCodeConfigInvalid))
}

func TestCombineErrors(t *testing.T) {
	assert.Nil(t, CombineErrors(nil, nil))

	one := stderrors.New("one")
	assert.Equal(t, one, CombineErrors(nil, one))

	two := stderrors.New("two")
	combined := CombineErrors(one, two)
	require.Error(t, combined)
	assert.Contains(t, combined.Error(), "2 errors")
	assert.True(t, stderrors.Is(combined, two))
}

func TestSuggestionsFor(t *testing.T) {
	err := NewUnterminatedBoundary("block comment", 0, 1, 1, "*/")
	suggestions := SuggestionsFor(err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "Close the comment", suggestions[1].Title)

	formatted := FormatError(err)
	assert.Contains(t, formatted, "hint: add a closing")
	assert.Empty(t, FormatError(nil))
	assert.Nil(t, SuggestionsFor(stderrors.New("plain")))
}

func TestDiagnosticFromError(t *testing.T) {
	err := NewUnterminatedBoundary("dsl block", 0, 7, 2, "}").WithStage("scan")
	d := DiagnosticFromError("a.chtl", err)

	assert.Equal(t, "a.chtl", d.File)
	assert.Equal(t, 7, d.Line)
	assert.Equal(t, 2, d.Column)
	assert.Equal(t, "scan", d.Stage)
	assert.Equal(t, ErrorSeverityFatal, d.Severity)
	assert.Equal(t, `add a closing "}"`, d.Suggestion)

	plain := DiagnosticFromError("b.chtl", stderrors.New("boom"))
	assert.Equal(t, ErrorSeverityError, plain.Severity)
	assert.Equal(t, "boom", plain.Message)
}

func TestErrorCollector(t *testing.T) {
	collector := NewErrorCollector()
	assert.False(t, collector.HasErrors())

	collector.AddError("b.chtl", NewUnterminatedBoundary("string", 0, 2, 1, `"`))
	collector.AddError("a.chtl", NewAmbiguousClassification(0, 1, 1, "x"))
	collector.AddError("a.chtl", nil)

	assert.Equal(t, 2, collector.Len())
	assert.True(t, collector.HasErrors())

	diagnostics := collector.Diagnostics()
	require.Len(t, diagnostics, 2)
	assert.Equal(t, "a.chtl", diagnostics[0].File)
	assert.False(t, diagnostics[0].Timestamp.IsZero())
	assert.Len(t, collector.ByFile("b.chtl"), 1)

	collector.Clear()
	assert.Equal(t, 0, collector.Len())
}

func TestErrorCollectorWarningsOnly(t *testing.T) {
	collector := NewErrorCollector()
	collector.AddError("a.chtl", NewAmbiguousClassification(0, 1, 1, "x"))
	assert.False(t, collector.HasErrors())
}

func TestErrorCollectorConcurrentAdd(t *testing.T) {
	collector := NewErrorCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				collector.AddError(fmt.Sprintf("f%d.chtl", i), stderrors.New("x"))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, collector.Len())
}

func TestOverlay(t *testing.T) {
	collector := NewErrorCollector()

	html, err := collector.Overlay(context.Background(), "Build failed")
	require.NoError(t, err)
	assert.Empty(t, html)

	collector.AddError("<a>.chtl", NewUnterminatedBoundary("dsl block", 0, 3, 5, "}"))
	html, err = collector.Overlay(context.Background(), "Build failed")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "chtl-error-overlay")
	assert.Contains(t, html, "&lt;a&gt;.chtl:3:5")
	assert.Contains(t, html, "hint: add a closing")
	assert.NotContains(t, html, "<a>.chtl")
}
