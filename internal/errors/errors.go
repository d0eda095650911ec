// Package errors provides structured compile errors, per-file diagnostics
// collection and HTML overlay generation for development-friendly reporting.
//
// Scanner, dispatcher and sub-compiler failures are all expressed as
// CompileError values carrying the source line and column plus a suggested
// fix. Batch drivers gather them per file in an ErrorCollector, which is
// safe for concurrent use by worker goroutines.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Diagnostic represents one reported problem in one source file
type Diagnostic struct {
	File       string
	Line       int
	Column     int
	Stage      string
	Message    string
	Suggestion string
	Severity   ErrorSeverity
	Timestamp  time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

// DiagnosticFromError converts any error into a Diagnostic for file,
// lifting position, stage and suggestion from a CompileError when present.
func DiagnosticFromError(file string, err error) Diagnostic {
	d := Diagnostic{
		File:     file,
		Message:  err.Error(),
		Severity: ErrorSeverityError,
	}

	var ce *CompileError
	if errors.As(err, &ce) {
		d.Message = ce.Message
		if ce.Cause != nil {
			d.Message += ": " + ce.Cause.Error()
		}
		d.Stage = ce.Stage
		d.Suggestion = ce.Suggestion
		if ce.Recoverable {
			d.Severity = ErrorSeverityWarning
		} else {
			d.Severity = ErrorSeverityFatal
		}
	}
	if d.Stage == "" {
		var staged interface{ FailedStage() string }
		if errors.As(err, &staged) {
			d.Stage = staged.FailedStage()
		}
	}
	if line, col, ok := Location(err); ok {
		d.Line, d.Column = line, col
	}

	return d
}

// ErrorCollector collects diagnostics across the files of a batch run
type ErrorCollector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// Add adds a diagnostic to the collector
func (ec *ErrorCollector) Add(d Diagnostic) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	ec.diagnostics = append(ec.diagnostics, d)
}

// AddError converts and adds an error for file
func (ec *ErrorCollector) AddError(file string, err error) {
	if err == nil {
		return
	}
	ec.Add(DiagnosticFromError(file, err))
}

// Diagnostics returns all collected diagnostics ordered by file and line
func (ec *ErrorCollector) Diagnostics() []Diagnostic {
	ec.mutex.RLock()
	result := make([]Diagnostic, len(ec.diagnostics))
	copy(result, ec.diagnostics)
	ec.mutex.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].File != result[j].File {
			return result[i].File < result[j].File
		}
		return result[i].Line < result[j].Line
	})
	return result
}

// HasErrors returns true if there are any diagnostics of error severity or above
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	for _, d := range ec.diagnostics {
		if d.Severity >= ErrorSeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of collected diagnostics
func (ec *ErrorCollector) Len() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.diagnostics)
}

// Clear clears all diagnostics
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.diagnostics = ec.diagnostics[:0]
}

// ByFile returns diagnostics for a specific file
func (ec *ErrorCollector) ByFile(file string) []Diagnostic {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileDiagnostics []Diagnostic
	for _, d := range ec.diagnostics {
		if d.File == file {
			fileDiagnostics = append(fileDiagnostics, d)
		}
	}
	return fileDiagnostics
}
