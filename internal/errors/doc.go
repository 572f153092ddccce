// Package errors provides typed errors with exit codes for forage-preview.
//
// # Error Types
//
// PreviewError is the base error type that wraps an error with an exit code:
//
//	type PreviewError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess         = 0  // Success
//	ExitGeneralError    = 1  // General/unknown errors
//	ExitNoSession       = 2  // No sandbox session is active
//	ExitProvisionFailed = 3  // Provider rejected environment creation
//	ExitScaffoldFailed  = 4  // Initial scaffold could not be written
//	ExitConfigError     = 5  // Configuration error
//	ExitProviderError   = 6  // Other provider operation failed
//
// Only provision and scaffold failures abort a bootstrap. Install and
// dev server failures are recorded on the session instead of returned.
//
// # HTTP
//
// HTTPStatus maps an error to a response status and Trace renders the
// cause chain for the "details" field of a failure response.
package errors
