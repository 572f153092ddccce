package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeE2B serves the control plane and code interpreter endpoints.
type fakeE2B struct {
	mu       sync.Mutex
	requests []string
	created  createSandboxRequest
	timeout  int
	codes    []string

	createStatus  int
	destroyStatus int
	// respond builds the NDJSON body for an /execute call.
	respond func(code string) string
}

func (f *fakeE2B) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sandboxes", func(w http.ResponseWriter, r *http.Request) {
		f.log(r)
		if r.Header.Get("X-API-Key") != "e2b_key" {
			http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if f.createStatus != 0 {
			http.Error(w, `{"message":"quota exceeded"}`, f.createStatus)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sandboxID":"isb123","templateID":"code-interpreter-v1","envdAccessToken":"tok"}`)
	})
	mux.HandleFunc("POST /sandboxes/{id}/timeout", func(w http.ResponseWriter, r *http.Request) {
		f.log(r)
		var body timeoutRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.timeout = body.Timeout
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /sandboxes/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.log(r)
		if f.destroyStatus != 0 {
			w.WriteHeader(f.destroyStatus)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		f.log(r)
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad execute body: %v", err)
		}
		f.mu.Lock()
		f.codes = append(f.codes, body.Code)
		f.mu.Unlock()
		if got := r.Header.Get("X-Access-Token"); got != "tok" {
			t.Errorf("X-Access-Token = %q, want tok", got)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, f.respond(body.Code))
	})
	return mux
}

func (f *fakeE2B) log(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
}

func ndjson(events ...interpreterEvent) string {
	var b strings.Builder
	for _, ev := range events {
		data, _ := json.Marshal(ev)
		b.Write(data)
		b.WriteByte('\n')
	}
	b.WriteString(`{"type":"end_of_execution"}` + "\n")
	return b.String()
}

func stdoutEvent(text string) interpreterEvent {
	return interpreterEvent{Type: "stdout", Text: text}
}

func newTestE2B(t *testing.T, fake *fakeE2B) *E2BProvider {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	p := NewE2BProvider("e2b_key", "e2b.app", "code-interpreter-v1")
	p.APIURL = srv.URL
	p.ExecURL = func(string) string { return srv.URL + "/execute" }
	p.Client = srv.Client()
	return p
}

// decodePayload pulls the base64 payload out of a generated program.
func decodePayload(t *testing.T, code string, v any) {
	t.Helper()
	m := regexp.MustCompile(`b64decode\("([A-Za-z0-9+/=]+)"\)`).FindStringSubmatch(code)
	if m == nil {
		t.Fatalf("no payload in program:\n%s", code)
	}
	data, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatal(err)
	}
}

func TestE2BProvider_Create(t *testing.T) {
	fake := &fakeE2B{}
	p := newTestE2B(t, fake)

	env, err := p.Create(context.Background(), CreateOptions{Port: 5173, Timeout: 15 * time.Minute})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if env.ID != "isb123" {
		t.Errorf("ID = %q", env.ID)
	}
	if env.Host != "5173-isb123.e2b.app" {
		t.Errorf("Host = %q", env.Host)
	}
	if env.URL != "https://5173-isb123.e2b.app" {
		t.Errorf("URL = %q", env.URL)
	}
	if fake.created.Timeout != 900 || fake.created.TemplateID != "code-interpreter-v1" {
		t.Errorf("create request = %+v", fake.created)
	}
	if got := env.ExpiresAt.Sub(env.CreatedAt); got != 15*time.Minute {
		t.Errorf("lifetime = %v", got)
	}
}

func TestE2BProvider_Create_Rejected(t *testing.T) {
	fake := &fakeE2B{createStatus: http.StatusTooManyRequests}
	p := newTestE2B(t, fake)

	_, err := p.Create(context.Background(), CreateOptions{Port: 5173, Timeout: time.Minute})
	if err == nil {
		t.Fatal("Create() should fail")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error = %v", err)
	}
}

func TestE2BProvider_Create_NoAPIKey(t *testing.T) {
	p := NewE2BProvider("", "e2b.app", "t")
	if _, err := p.Create(context.Background(), CreateOptions{}); err == nil {
		t.Error("Create() without API key should fail")
	}
}

func TestE2BProvider_Create_BadKey(t *testing.T) {
	fake := &fakeE2B{}
	p := newTestE2B(t, fake)
	p.APIKey = "wrong"

	if _, err := p.Create(context.Background(), CreateOptions{Port: 5173}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Create() error = %v, want 401", err)
	}
}

func TestE2BProvider_SetTimeout(t *testing.T) {
	fake := &fakeE2B{}
	p := newTestE2B(t, fake)

	if err := p.SetTimeout(context.Background(), "isb123", 15*time.Minute); err != nil {
		t.Fatalf("SetTimeout() error = %v", err)
	}
	if fake.timeout != 900 {
		t.Errorf("timeout = %d, want 900", fake.timeout)
	}
}

func TestE2BProvider_Destroy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"deleted", 0, false},
		{"already gone", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeE2B{destroyStatus: tt.status}
			p := newTestE2B(t, fake)

			err := p.Destroy(context.Background(), "isb123")
			if (err != nil) != tt.wantErr {
				t.Errorf("Destroy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if fake.requests[0] != "DELETE /sandboxes/isb123" {
				t.Errorf("request = %q", fake.requests[0])
			}
		})
	}
}

func TestE2BProvider_Execute(t *testing.T) {
	fake := &fakeE2B{}
	fake.respond = func(code string) string {
		return ndjson(
			stdoutEvent("noise before\n"),
			stdoutEvent(resultMarker+`{"exit_code": 1, "stdout": "partial", "stderr": "npm ERR! ECONNRESET"}`+"\n"),
		)
	}
	p := newTestE2B(t, fake)
	if _, err := p.Create(context.Background(), CreateOptions{Port: 5173, Timeout: time.Minute}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	res, err := p.Execute(ctx, "isb123", Command{
		Line: "npm install",
		Dir:  "/home/user/app",
		Env:  map[string]string{"FORCE_COLOR": "0"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.ExitCode != 1 || res.Stdout != "partial" || res.Stderr != "npm ERR! ECONNRESET" {
		t.Errorf("result = %+v", res)
	}

	var req execRequest
	decodePayload(t, fake.codes[0], &req)
	if req.Line != "npm install" || req.Dir != "/home/user/app" || req.Env["FORCE_COLOR"] != "0" {
		t.Errorf("req = %+v", req)
	}
	if req.Timeout == nil || *req.Timeout <= 0 || *req.Timeout > 120 {
		t.Errorf("Timeout should carry the context deadline, got %v", req.Timeout)
	}
}

func TestE2BProvider_Execute_InterpreterError(t *testing.T) {
	fake := &fakeE2B{}
	fake.respond = func(string) string {
		return ndjson(interpreterEvent{Type: "error", Name: "PermissionError", Value: "denied"})
	}
	p := newTestE2B(t, fake)
	p.tokens["isb123"] = "tok"

	_, err := p.Execute(context.Background(), "isb123", Command{Line: "true"})
	if err == nil || !strings.Contains(err.Error(), "PermissionError") {
		t.Errorf("Execute() error = %v", err)
	}
}

func TestE2BProvider_Execute_NoResult(t *testing.T) {
	fake := &fakeE2B{}
	fake.respond = func(string) string { return ndjson(stdoutEvent("hello\n")) }
	p := newTestE2B(t, fake)
	p.tokens["isb123"] = "tok"

	if _, err := p.Execute(context.Background(), "isb123", Command{Line: "true"}); err == nil {
		t.Error("Execute() without a result marker should fail")
	}
}

func TestE2BProvider_WriteFiles(t *testing.T) {
	fake := &fakeE2B{}
	fake.respond = func(string) string {
		return ndjson(stdoutEvent(resultMarker + `{"written": 2}` + "\n"))
	}
	p := newTestE2B(t, fake)
	p.tokens["isb123"] = "tok"

	files := []File{{Path: "package.json", Content: "{}"}, {Path: "src/App.jsx", Content: "x"}}
	if err := p.WriteFiles(context.Background(), "isb123", "/home/user/app", files); err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}

	if len(fake.codes) != 1 {
		t.Fatalf("WriteFiles made %d execute calls, want 1", len(fake.codes))
	}
	if !strings.Contains(fake.codes[0], `os.path.normpath("/home/user/app")`) {
		t.Errorf("program does not target the root:\n%s", fake.codes[0])
	}
	var wire []wireFile
	decodePayload(t, fake.codes[0], &wire)
	if len(wire) != 2 || wire[1].Path != "src/App.jsx" {
		t.Errorf("payload = %+v", wire)
	}
}

func TestE2BProvider_WriteFiles_ShortWrite(t *testing.T) {
	fake := &fakeE2B{}
	fake.respond = func(string) string {
		return ndjson(stdoutEvent(resultMarker + `{"written": 1}` + "\n"))
	}
	p := newTestE2B(t, fake)
	p.tokens["isb123"] = "tok"

	err := p.WriteFiles(context.Background(), "isb123", "/app", []File{{Path: "a"}, {Path: "b"}})
	if err == nil {
		t.Error("WriteFiles() should fail on a short write")
	}
}

func TestExtractResult(t *testing.T) {
	var out execOutcome
	stdout := "x\n" + resultMarker + `{"exit_code": 0}` + "\n" + resultMarker + `{"exit_code": 3}` + "\ntrailing\n"
	if err := extractResult(stdout, &out); err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want last marker (3)", out.ExitCode)
	}
}
