package dispatcher

import (
	stderrors "errors"
	"fmt"

	"github.com/conneroisu/chtl/internal/errors"
)

// Error reports a failed pipeline run for one file. No output is produced
// for a file whose run failed.
type Error struct {
	File       string
	Message    string
	Stage      string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: stage %s: %s", e.File, e.Stage, e.Message)
	}
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Message)
}

// FailedStage returns the name of the stage that failed.
func (e *Error) FailedStage() string {
	return e.Stage
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// stageError converts a stage failure into an *Error, lifting the
// suggestion from the first structured error in the chain.
func stageError(file, stage string, err error) *Error {
	var de *Error
	if stderrors.As(err, &de) {
		return de
	}

	e := &Error{
		File:    file,
		Message: err.Error(),
		Stage:   stage,
		Cause:   err,
	}
	for _, link := range errors.GetErrorChain(err) {
		if ce, ok := link.(*errors.CompileError); ok && ce.Suggestion != "" {
			e.Suggestion = ce.Suggestion
			break
		}
	}
	return e
}
