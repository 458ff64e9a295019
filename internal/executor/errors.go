// File: internal/executor/errors.go
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/promptpilot/internal/browser"
	"github.com/xkilldash9x/promptpilot/internal/healing"
	"github.com/xkilldash9x/promptpilot/internal/prompt"
	"github.com/xkilldash9x/promptpilot/internal/ui"
	"github.com/xkilldash9x/promptpilot/internal/variables"
)

var (
	ErrMissingEndpoint    = errors.New("no endpoint specified")
	ErrMissingTarget      = errors.New("no URL specified for navigation")
	ErrMissingCredentials = errors.New("username or password not specified")
	ErrUIUnavailable      = errors.New("no browser page available for UI step")
	// ErrAssertionFailed is shared with the UI helper so page assertions classify the same way.
	ErrAssertionFailed = ui.ErrAssertionFailed
)

// ErrorCode is a stable, machine-readable classification of a step failure.
type ErrorCode string

const (
	ErrCodeMissingEndpoint     ErrorCode = "MISSING_ENDPOINT"
	ErrCodeMissingTarget       ErrorCode = "MISSING_TARGET"
	ErrCodeMissingCredentials  ErrorCode = "MISSING_CREDENTIALS"
	ErrCodeUndefinedVariable   ErrorCode = "UNDEFINED_VARIABLE"
	ErrCodeResolutionExhausted ErrorCode = "RESOLUTION_EXHAUSTED"
	ErrCodeAssertionFailed     ErrorCode = "ASSERTION_FAILED"
	ErrCodeUIUnavailable       ErrorCode = "UI_UNAVAILABLE"
	ErrCodeElementNotFound     ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeout             ErrorCode = "TIMEOUT_ERROR"
	ErrCodeCanceled            ErrorCode = "CANCELED"
	ErrCodeExecutionFailure    ErrorCode = "EXECUTION_FAILURE"
	ErrCodeExecutorPanic       ErrorCode = "EXECUTOR_PANIC"
)

// codeTable is checked in order; the first sentinel the error matches wins.
var codeTable = []struct {
	target error
	code   ErrorCode
}{
	{ErrMissingEndpoint, ErrCodeMissingEndpoint},
	{ErrMissingTarget, ErrCodeMissingTarget},
	{ErrMissingCredentials, ErrCodeMissingCredentials},
	{ErrUIUnavailable, ErrCodeUIUnavailable},
	{variables.ErrUndefinedVariable, ErrCodeUndefinedVariable},
	{healing.ErrResolutionExhausted, ErrCodeResolutionExhausted},
	{ErrAssertionFailed, ErrCodeAssertionFailed},
	{browser.ErrElementNotFound, ErrCodeElementNotFound},
	{browser.ErrNotVisible, ErrCodeElementNotFound},
	{context.DeadlineExceeded, ErrCodeTimeout},
	{context.Canceled, ErrCodeCanceled},
}

// Classify maps an executor error to its ErrorCode.
func Classify(err error) ErrorCode {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Code != "" {
		return stepErr.Code
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.target) {
			return entry.code
		}
	}
	return ErrCodeExecutionFailure
}

// StepError is returned by Execute when a step fails. It names the step so a
// failure can be diagnosed from the error alone.
type StepError struct {
	Ordinal     int
	Description string
	Action      prompt.ActionKind
	Code        ErrorCode
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d %q (%s) failed [%s]: %v", e.Ordinal, e.Description, e.Action, e.Code, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
