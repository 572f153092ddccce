// Package logging provides logging utilities for forage-preview.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users of the CLI
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("writing scaffold", "env", envID, "files", 8)
//	logging.Warn("install attempt failed", "attempt", 2, "error", err)
//
// Bootstrap code logs with the keys session, env, stage, attempt and error.
//
// # User Output
//
// User-facing messages are formatted with status indicators rendered
// through lipgloss:
//
//	logging.UserInfo("Creating sandbox...")
//	logging.UserSuccess("Sandbox ready at %s", url)
//	logging.UserWarning("Dev server is not serving")
//	logging.UserError("Bootstrap failed: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
//
// SetUserOutput redirects both streams, which tests use to capture output.
package logging
