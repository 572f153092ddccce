package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockProvider is a mock implementation of Provider for testing
type MockProvider struct {
	mu sync.RWMutex

	// Environments tracks live mock environments by id
	Environments map[string]*Environment

	// Files records what WriteFiles wrote, by environment id then path
	Files map[string]map[string]string

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall

	// NextID overrides generated environment ids. Returning "" simulates
	// a provider that does not report one.
	NextID func() string

	// Host is the public host suffix used for created environments. An
	// empty suffix simulates a provider that reports no public url.
	Host string

	scripts []execScript
	created int
}

// execScript returns queued results for commands starting with a prefix.
// The last result repeats once the queue is drained.
type execScript struct {
	prefix  string
	results []MockExec
}

// MockExec is one scripted Execute outcome.
type MockExec struct {
	Result *ExecResult
	Err    error
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Environments: make(map[string]*Environment),
		Files:        make(map[string]map[string]string),
		Errors:       make(map[string]error),
		CallLog:      make([]MockCall, 0),
		Host:         "mock.test",
	}
}

func (m *MockProvider) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockProvider) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// OnExec scripts the results of commands whose line starts with prefix.
// Later scripts take precedence over earlier ones with the same prefix.
func (m *MockProvider) OnExec(prefix string, results ...MockExec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append([]execScript{{prefix: prefix, results: results}}, m.scripts...)
}

// Exit is shorthand for a scripted result with the given exit code and output.
func Exit(code int, stdout, stderr string) MockExec {
	return MockExec{Result: &ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}}
}

// GetCalls returns all recorded calls
func (m *MockProvider) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockProvider) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// ExecLines returns the command lines passed to Execute, in order
func (m *MockProvider) ExecLines() []string {
	var lines []string
	for _, call := range m.GetCallsFor("Execute") {
		lines = append(lines, call.Args[1].(Command).Line)
	}
	return lines
}

// Live returns the number of environments created and not destroyed
func (m *MockProvider) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Environments)
}

// Reset clears all state
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Environments = make(map[string]*Environment)
	m.Files = make(map[string]map[string]string)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
	m.scripts = nil
	m.created = 0
}

// Name returns the provider identifier
func (m *MockProvider) Name() string {
	return "mock"
}

// Create creates a new environment
func (m *MockProvider) Create(ctx context.Context, opts CreateOptions) (*Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create", opts)

	if err, ok := m.Errors["Create"]; ok {
		return nil, err
	}

	m.created++
	id := fmt.Sprintf("mock-%d", m.created)
	if m.NextID != nil {
		id = m.NextID()
	}

	now := time.Now()
	env := &Environment{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(opts.Timeout),
	}
	if id != "" && m.Host != "" {
		env.Host = fmt.Sprintf("%d-%s.%s", opts.Port, id, m.Host)
		env.URL = "https://" + env.Host
	}

	m.Environments[id] = env
	cp := *env
	return &cp, nil
}

// SetTimeout records an expiry extension
func (m *MockProvider) SetTimeout(ctx context.Context, id string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetTimeout", id, d)

	if err, ok := m.Errors["SetTimeout"]; ok {
		return err
	}
	if env, ok := m.Environments[id]; ok {
		env.ExpiresAt = time.Now().Add(d)
	}
	return nil
}

// Destroy removes an environment
func (m *MockProvider) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Destroy", id)

	if err, ok := m.Errors["Destroy"]; ok {
		return err
	}

	delete(m.Environments, id)
	delete(m.Files, id)
	return nil
}

// Execute returns the scripted result for the command, or exit 0
func (m *MockProvider) Execute(ctx context.Context, id string, cmd Command) (*ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Execute", id, cmd)

	if err, ok := m.Errors["Execute"]; ok {
		return nil, err
	}

	for i := range m.scripts {
		s := &m.scripts[i]
		if !strings.HasPrefix(cmd.Line, s.prefix) || len(s.results) == 0 {
			continue
		}
		next := s.results[0]
		if len(s.results) > 1 {
			s.results = s.results[1:]
		}
		if next.Err != nil {
			return nil, next.Err
		}
		cp := *next.Result
		return &cp, nil
	}

	return &ExecResult{ExitCode: 0}, nil
}

// WriteFiles records the files under root
func (m *MockProvider) WriteFiles(ctx context.Context, id string, root string, files []File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("WriteFiles", id, root, files)

	if err, ok := m.Errors["WriteFiles"]; ok {
		return err
	}

	written, ok := m.Files[id]
	if !ok {
		written = make(map[string]string)
		m.Files[id] = written
	}
	for _, f := range files {
		written[f.Path] = f.Content
	}
	return nil
}

// Ensure MockProvider implements Provider and TimeoutExtender
var (
	_ Provider        = (*MockProvider)(nil)
	_ TimeoutExtender = (*MockProvider)(nil)
)
