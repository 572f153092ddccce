package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Exit codes for forage-preview
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitNoSession       = 2
	ExitProvisionFailed = 3
	ExitScaffoldFailed  = 4
	ExitConfigError     = 5
	ExitProviderError   = 6
)

// PreviewError is the base error type for forage-preview
type PreviewError struct {
	Code    int
	Message string
	Cause   error
}

func (e *PreviewError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *PreviewError) ExitCode() int {
	return e.Code
}

// New creates a new PreviewError
func New(code int, message string) *PreviewError {
	return &PreviewError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a PreviewError
func Wrap(code int, message string, cause error) *PreviewError {
	return &PreviewError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ProvisionFailed returns an error for a rejected environment creation
func ProvisionFailed(cause error) *PreviewError {
	return Wrap(ExitProvisionFailed, "failed to create sandbox environment", cause)
}

// ScaffoldFailed returns an error for a failed scaffold write
func ScaffoldFailed(cause error) *PreviewError {
	return Wrap(ExitScaffoldFailed, "failed to write project scaffold", cause)
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *PreviewError {
	return Wrap(ExitConfigError, message, cause)
}

// ProviderError returns an error for a provider operation
func ProviderError(op string, cause error) *PreviewError {
	return Wrap(ExitProviderError, fmt.Sprintf("provider %s failed", op), cause)
}

// NoSession returns an error when no sandbox session is active
func NoSession() *PreviewError {
	return New(ExitNoSession, "no active sandbox session")
}

// Superseded returns an error when a bootstrap lost its session to a
// concurrent destroy
func Superseded() *PreviewError {
	return New(ExitGeneralError, "sandbox session was superseded during bootstrap")
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *PreviewError {
	return New(ExitGeneralError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var previewErr *PreviewError
	if errors.As(err, &previewErr) {
		return previewErr.ExitCode()
	}
	return ExitGeneralError
}

// HTTPStatus maps an error to the status code returned by the API.
func HTTPStatus(err error) int {
	switch GetExitCode(err) {
	case ExitNoSession:
		return http.StatusNotFound
	case ExitConfigError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Trace renders the cause chain of err, outermost first, one message per line.
func Trace(err error) string {
	if err == nil {
		return ""
	}

	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if pe, ok := e.(*PreviewError); ok {
			msg = fmt.Sprintf("[%d] %s", pe.Code, pe.Message)
		}
		lines = append(lines, msg)
	}
	return strings.Join(lines, "\n")
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join wraps errors.Join so callers do not need both errors packages
func Join(errs ...error) error {
	return errors.Join(errs...)
}
