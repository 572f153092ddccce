package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestPreviewError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *PreviewError
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     New(ExitGeneralError, "something went wrong"),
			wantMsg: "something went wrong",
		},
		{
			name:    "with cause",
			err:     Wrap(ExitGeneralError, "operation failed", fmt.Errorf("underlying error")),
			wantMsg: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestPreviewError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ExitGeneralError, "wrapped", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := New(ExitGeneralError, "no cause")
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("quota exceeded")

	tests := []struct {
		name     string
		err      *PreviewError
		wantCode int
		wantMsg  string
	}{
		{"provision", ProvisionFailed(cause), ExitProvisionFailed, "failed to create sandbox environment"},
		{"scaffold", ScaffoldFailed(cause), ExitScaffoldFailed, "failed to write project scaffold"},
		{"config", ConfigError("bad config", cause), ExitConfigError, "bad config"},
		{"provider", ProviderError("destroy", cause), ExitProviderError, "provider destroy failed"},
		{"no session", NoSession(), ExitNoSession, "no active sandbox session"},
		{"validation", ValidationError("bad input"), ExitGeneralError, "bad input"},
		{"superseded", Superseded(), ExitGeneralError, "sandbox session was superseded during bootstrap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"PreviewError", NoSession(), ExitNoSession},
		{"wrapped PreviewError", fmt.Errorf("outer: %w", ScaffoldFailed(nil)), ExitScaffoldFailed},
		{"regular error", fmt.Errorf("some error"), ExitGeneralError},
		{"nil error", nil, ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.wantCode {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NoSession(), http.StatusNotFound},
		{ConfigError("bad", nil), http.StatusBadRequest},
		{ProvisionFailed(fmt.Errorf("denied")), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestTrace(t *testing.T) {
	if got := Trace(nil); got != "" {
		t.Errorf("Trace(nil) = %q, want empty", got)
	}

	root := fmt.Errorf("401 unauthorized")
	err := fmt.Errorf("bootstrap: %w", ProvisionFailed(root))

	trace := Trace(err)
	lines := strings.Split(trace, "\n")
	if len(lines) != 3 {
		t.Fatalf("Trace() has %d lines, want 3: %q", len(lines), trace)
	}
	if lines[1] != "[3] failed to create sandbox environment" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if lines[2] != "401 unauthorized" {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestErrorChaining(t *testing.T) {
	root := fmt.Errorf("root cause")
	middle := Wrap(ExitConfigError, "config error", root)
	outer := fmt.Errorf("operation failed: %w", middle)

	if !errors.Is(outer, root) {
		t.Error("errors.Is should find root cause")
	}

	var previewErr *PreviewError
	if !As(outer, &previewErr) {
		t.Fatal("As should find PreviewError")
	}
	if previewErr.Code != ExitConfigError {
		t.Errorf("Code = %d, want %d", previewErr.Code, ExitConfigError)
	}

	if !Is(Join(root, fmt.Errorf("other")), root) {
		t.Error("Is should find an error inside Join")
	}
}
