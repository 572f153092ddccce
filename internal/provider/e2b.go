package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
)

const (
	// interpreterPort is the port of the code execution service inside an e2b sandbox.
	interpreterPort = 49999
	resultMarker    = "__FORAGE_PREVIEW_RESULT__"
)

// E2BProvider implements Provider against the e2b control plane. Commands
// and file writes go through the code interpreter that runs inside every
// sandbox.
type E2BProvider struct {
	APIKey   string
	Domain   string
	Template string

	// APIURL and ExecURL override the endpoints derived from Domain.
	APIURL  string
	ExecURL func(id string) string

	Client *http.Client

	mu     sync.Mutex
	tokens map[string]string
}

// NewE2BProvider creates an e2b provider for the given domain.
func NewE2BProvider(apiKey, domain, template string) *E2BProvider {
	return &E2BProvider{
		APIKey:   apiKey,
		Domain:   domain,
		Template: template,
		Client:   &http.Client{},
		tokens:   make(map[string]string),
	}
}

// Name returns the provider identifier
func (p *E2BProvider) Name() string {
	return "e2b"
}

func (p *E2BProvider) apiURL() string {
	if p.APIURL != "" {
		return strings.TrimRight(p.APIURL, "/")
	}
	return "https://api." + p.Domain
}

func (p *E2BProvider) execURL(id string) string {
	if p.ExecURL != nil {
		return p.ExecURL(id)
	}
	return fmt.Sprintf("https://%s/execute", p.hostFor(id, interpreterPort))
}

func (p *E2BProvider) hostFor(id string, port int) string {
	return fmt.Sprintf("%d-%s.%s", port, id, p.Domain)
}

type createSandboxRequest struct {
	TemplateID string `json:"templateID"`
	Timeout    int    `json:"timeout"`
}

type createSandboxResponse struct {
	SandboxID       string `json:"sandboxID"`
	EnvdAccessToken string `json:"envdAccessToken"`
}

type timeoutRequest struct {
	Timeout int `json:"timeout"`
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func (p *E2BProvider) control(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.apiURL()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", p.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return p.Client.Do(req)
}

func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("e2b %s: %s: %s", op, resp.Status, strings.TrimSpace(string(msg)))
}

// Create provisions a sandbox from Template
func (p *E2BProvider) Create(ctx context.Context, opts CreateOptions) (*Environment, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("e2b API key is not configured")
	}

	logging.Debug("creating e2b sandbox", "template", p.Template, "timeout", opts.Timeout)
	resp, err := p.control(ctx, http.MethodPost, "/sandboxes", createSandboxRequest{
		TemplateID: p.Template,
		Timeout:    seconds(opts.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("e2b create: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, statusError("create", resp)
	}

	var created createSandboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("e2b create: invalid response: %w", err)
	}

	id := created.SandboxID
	if created.EnvdAccessToken != "" {
		p.mu.Lock()
		if p.tokens == nil {
			p.tokens = make(map[string]string)
		}
		p.tokens[id] = created.EnvdAccessToken
		p.mu.Unlock()
	}

	now := time.Now()
	env := &Environment{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(opts.Timeout),
	}
	if id != "" {
		env.Host = p.hostFor(id, opts.Port)
		env.URL = "https://" + env.Host
	}
	return env, nil
}

// SetTimeout resets the sandbox expiry to d from now
func (p *E2BProvider) SetTimeout(ctx context.Context, id string, d time.Duration) error {
	resp, err := p.control(ctx, http.MethodPost, "/sandboxes/"+id+"/timeout", timeoutRequest{Timeout: seconds(d)})
	if err != nil {
		return fmt.Errorf("e2b set timeout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError("set timeout", resp)
	}
	return nil
}

// Destroy kills the sandbox
func (p *E2BProvider) Destroy(ctx context.Context, id string) error {
	p.mu.Lock()
	delete(p.tokens, id)
	p.mu.Unlock()

	resp, err := p.control(ctx, http.MethodDelete, "/sandboxes/"+id, nil)
	if err != nil {
		return fmt.Errorf("e2b destroy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode/100 != 2 {
		return statusError("destroy", resp)
	}
	return nil
}

// interpreterEvent is one NDJSON line streamed back by the code interpreter.
type interpreterEvent struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Traceback string `json:"traceback"`
}

// runCode executes Python in the sandbox and returns the collected stdout.
func (p *E2BProvider) runCode(ctx context.Context, id, code string) (string, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.execURL(id), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	p.mu.Lock()
	if token := p.tokens[id]; token != "" {
		req.Header.Set("X-Access-Token", token)
	}
	p.mu.Unlock()

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("e2b execute: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", statusError("execute", resp)
	}

	var stdout strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev interpreterEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "stdout":
			stdout.WriteString(ev.Text)
		case "error":
			return stdout.String(), fmt.Errorf("e2b execute: %s: %s", ev.Name, ev.Value)
		}
	}
	if err := scanner.Err(); err != nil {
		return stdout.String(), fmt.Errorf("e2b execute: reading response: %w", err)
	}
	return stdout.String(), nil
}

// extractResult finds the marker line in stdout and decodes the JSON after it.
func extractResult(stdout string, v any) error {
	idx := strings.LastIndex(stdout, resultMarker)
	if idx < 0 {
		return fmt.Errorf("e2b execute: no result in output")
	}
	payload := stdout[idx+len(resultMarker):]
	if nl := strings.IndexByte(payload, '\n'); nl >= 0 {
		payload = payload[:nl]
	}
	return json.Unmarshal([]byte(payload), v)
}

type execRequest struct {
	Line    string            `json:"line"`
	Dir     string            `json:"dir"`
	Env     map[string]string `json:"env"`
	Timeout *float64          `json:"timeout"`
}

type execOutcome struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

const execProgram = `import base64, json, os, subprocess
req = json.loads(base64.b64decode(%q).decode())
env = os.environ.copy()
env.update(req["env"] or {})
try:
    r = subprocess.run(req["line"], shell=True, cwd=req["dir"] or None, env=env, capture_output=True, text=True, timeout=req["timeout"])
    out = {"exit_code": r.returncode, "stdout": r.stdout, "stderr": r.stderr}
except subprocess.TimeoutExpired:
    out = {"exit_code": 124, "stdout": "", "stderr": "timed out after " + str(req["timeout"]) + "s"}
print(%q + json.dumps(out))
`

// Execute runs cmd.Line through a shell in the sandbox
func (p *E2BProvider) Execute(ctx context.Context, id string, cmd Command) (*ExecResult, error) {
	req := execRequest{Line: cmd.Line, Dir: cmd.Dir, Env: cmd.Env}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline).Seconds()
		req.Timeout = &remaining
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	code := fmt.Sprintf(execProgram, base64.StdEncoding.EncodeToString(data), resultMarker)

	stdout, err := p.runCode(ctx, id, code)
	if err != nil {
		return nil, err
	}

	var out execOutcome
	if err := extractResult(stdout, &out); err != nil {
		return nil, err
	}
	return &ExecResult{ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}, nil
}

const writeProgram = `import base64, json, os
root = os.path.normpath(%q)
files = json.loads(base64.b64decode(%q).decode())
for f in files:
    path = os.path.normpath(os.path.join(root, f["path"]))
    if not path.startswith(root + os.sep):
        raise ValueError("path escapes root: " + f["path"])
    os.makedirs(os.path.dirname(path), exist_ok=True)
    with open(path, "w") as fh:
        fh.write(f["content"])
print(%q + json.dumps({"written": len(files)}))
`

type wireFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFiles writes every file under root with one interpreter call
func (p *E2BProvider) WriteFiles(ctx context.Context, id string, root string, files []File) error {
	wire := make([]wireFile, len(files))
	for i, f := range files {
		wire[i] = wireFile{Path: f.Path, Content: f.Content}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	code := fmt.Sprintf(writeProgram, root, base64.StdEncoding.EncodeToString(data), resultMarker)

	stdout, err := p.runCode(ctx, id, code)
	if err != nil {
		return err
	}

	var out struct {
		Written int `json:"written"`
	}
	if err := extractResult(stdout, &out); err != nil {
		return err
	}
	if out.Written != len(files) {
		return fmt.Errorf("e2b write: wrote %d of %d files", out.Written, len(files))
	}
	return nil
}

var (
	_ Provider        = (*E2BProvider)(nil)
	_ TimeoutExtender = (*E2BProvider)(nil)
)
