// Package provider defines the sandbox environment interface for forage-preview.
// Backends create a remote (or local container) environment, run commands in
// it and write files into it.
package provider

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// File is one file to materialize inside an environment, relative to a root.
type File struct {
	Path    string
	Content string
}

// Command is a shell line run inside an environment.
type Command struct {
	Line string
	Dir  string
	Env  map[string]string
}

// EnvList returns Env as sorted KEY=VALUE pairs.
func (c Command) EnvList() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// ExecResult holds the result of executing a command in an environment
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the command exited zero.
func (r *ExecResult) OK() bool {
	return r != nil && r.ExitCode == 0
}

// ProbeLine returns the command that exits zero while pid is running.
func ProbeLine(pid int) string {
	return "kill -0 " + strconv.Itoa(pid)
}

// Environment is a provisioned sandbox.
type Environment struct {
	// ID is the provider-assigned identifier. It may be empty.
	ID        string
	Host      string
	URL       string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CreateOptions holds options for creating an environment
type CreateOptions struct {
	// Port is the application port whose public host is returned.
	Port    int
	Timeout time.Duration
	// WorkDir is created inside the environment.
	WorkDir string
}

// Provider is the interface that sandbox backends must implement.
// All methods should be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier (e.g., "e2b", "docker")
	Name() string

	// Create provisions a new environment with the given expiry.
	Create(ctx context.Context, opts CreateOptions) (*Environment, error)

	// Destroy tears an environment down. Destroying an environment that
	// no longer exists is not an error.
	Destroy(ctx context.Context, id string) error

	// Execute runs a command and waits for it. A non-zero exit is reported
	// in ExecResult; the error is reserved for transport failures.
	Execute(ctx context.Context, id string, cmd Command) (*ExecResult, error)

	// WriteFiles writes every file under root in a single operation.
	WriteFiles(ctx context.Context, id string, root string, files []File) error
}

// TimeoutExtender is implemented by providers whose environments expire and
// can have their expiry reset after creation.
type TimeoutExtender interface {
	SetTimeout(ctx context.Context, id string, d time.Duration) error
}

// isGone reports whether a backend error means the environment no longer exists.
func isGone(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "no such container") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "404")
}
