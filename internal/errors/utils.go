package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context, creating a CompileError if
// the input is not already one. Location and stage of a wrapped
// CompileError are preserved.
func Wrap(err error, kind Kind, code, message string) *CompileError {
	if err == nil {
		return nil
	}

	var ce *CompileError
	if errors.As(err, &ce) {
		return &CompileError{
			Kind:        kind,
			Code:        code,
			Message:     message,
			Cause:       ce,
			Category:    ce.Category,
			File:        ce.File,
			Line:        ce.Line,
			Column:      ce.Column,
			Offset:      ce.Offset,
			Stage:       ce.Stage,
			Suggestion:  ce.Suggestion,
			Recoverable: ce.Recoverable,
		}
	}

	return &CompileError{
		Kind:        kind,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: kind == KindAmbiguousClassification,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *CompileError {
	return Wrap(err, KindIO, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *CompileError {
	return Wrap(err, KindConfig, code, message)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, code, message string) *CompileError {
	return Wrap(err, KindInternal, code, message)
}

// FileOperationError creates an error for a failed file operation.
func FileOperationError(operation, path string, cause error) *CompileError {
	return WrapIO(cause, ErrCodeFileNotFound, fmt.Sprintf("%s %s failed", operation, path)).
		WithFile(path).
		WithContext("operation", operation)
}

// PathValidationError creates an error for a rejected input or output path.
func PathValidationError(path, reason string) *CompileError {
	return &CompileError{
		Kind:    KindIO,
		Code:    ErrCodeInvalidPath,
		Message: fmt.Sprintf("invalid path %q: %s", path, reason),
		File:    path,
	}
}

// ConfigurationError creates an error for an invalid setting.
func ConfigurationError(setting, message string, value interface{}) *CompileError {
	return NewConfigError(ErrCodeConfigInvalid, fmt.Sprintf("%s: %s", setting, message)).
		WithContext("setting", setting).
		WithContext("value", value)
}

// GetRootCause returns the deepest underlying error in the chain
func GetRootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// GetErrorChain returns all errors in the chain from outermost to innermost
func GetErrorChain(err error) []error {
	var chain []error
	for err != nil {
		chain = append(chain, err)
		err = errors.Unwrap(err)
	}
	return chain
}

// HasErrorCode checks if any error in the chain has the specified code
func HasErrorCode(err error, code string) bool {
	for _, e := range GetErrorChain(err) {
		if ce, ok := e.(*CompileError); ok && ce.Code == code {
			return true
		}
	}
	return false
}

// CombineErrors joins the non-nil errors into one, or returns nil.
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	msgs := make([]string, len(nonNil))
	for i, err := range nonNil {
		msgs[i] = err.Error()
	}
	return &CompileError{
		Kind:    KindInternal,
		Code:    ErrCodeInternalError,
		Message: fmt.Sprintf("%d errors: %s", len(nonNil), strings.Join(msgs, "; ")),
		Cause:   errors.Join(nonNil...),
	}
}
