package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/session"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/testutil"
)

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, *testutil.TestEnv) {
	t.Helper()
	env := testutil.NewTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(env.App, apiKey, logger))
	t.Cleanup(srv.Close)
	return srv, env
}

func doRequest(t *testing.T, method, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error: %v", method, url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func TestCreate_Success(t *testing.T) {
	srv, env := newTestServer(t, "")

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	got := decode[CreateResponse](t, body)
	want := CreateResponse{
		Success:   true,
		SessionID: "mock-1",
		URL:       "https://5173-mock-1.mock.test",
		Message:   "Sandbox created and Vite React app initialized",
	}
	if got != want {
		t.Errorf("response = %+v, want %+v", got, want)
	}

	// Exact field set of the success shape
	var raw map[string]any
	json.Unmarshal(body, &raw)
	for _, k := range []string{"success", "sessionId", "url", "message"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("response missing %q: %s", k, body)
		}
	}
	if len(raw) != 4 {
		t.Errorf("response has %d fields, want 4: %s", len(raw), body)
	}

	if env.App.Store.Current() == nil {
		t.Error("store should hold the new session")
	}
}

func TestCreate_Degraded(t *testing.T) {
	srv, env := newTestServer(t, "")
	env.FailInstall()

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	got := decode[CreateResponse](t, body)
	if !got.Success || !got.Degraded || got.URL == "" {
		t.Errorf("response = %+v, want degraded success with url", got)
	}
}

func TestCreate_ProvisionFailure(t *testing.T) {
	srv, env := newTestServer(t, "")
	env.Provider.SetError("Create", fmt.Errorf("403 quota exceeded"))

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	got := decode[ErrorResponse](t, body)
	if !strings.Contains(got.Error, "403 quota exceeded") {
		t.Errorf("error = %q", got.Error)
	}
	if !strings.Contains(got.Details, "[3] failed to create sandbox environment") {
		t.Errorf("details = %q", got.Details)
	}
	if env.App.Store.Current() != nil {
		t.Error("no session should be installed after a provision failure")
	}
}

func TestCreate_ScaffoldFailure(t *testing.T) {
	srv, env := newTestServer(t, "")
	env.Provider.SetError("WriteFiles", fmt.Errorf("permission denied"))

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	got := decode[ErrorResponse](t, body)
	if !strings.Contains(got.Details, "[4]") {
		t.Errorf("details = %q, want scaffold code", got.Details)
	}
	if env.Provider.Live() != 0 {
		t.Errorf("live environments = %d, want 0", env.Provider.Live())
	}
}

func TestCreate_ReplacesSession(t *testing.T) {
	srv, env := newTestServer(t, "")

	doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := decode[CreateResponse](t, body); got.SessionID != "mock-2" {
		t.Errorf("sessionId = %q, want mock-2", got.SessionID)
	}
	if env.Provider.Live() != 1 {
		t.Errorf("live environments = %d, want 1", env.Provider.Live())
	}
}

func TestGet(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if got := decode[ErrorResponse](t, body); got.Error != "no active sandbox session" {
		t.Errorf("error = %q", got.Error)
	}

	doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	got := decode[StatusResponse](t, body)
	if got.Session == nil || got.Session.Status != session.StatusReady {
		t.Errorf("session = %+v", got.Session)
	}
	if got.Health == nil || got.Health.Status != health.StatusReady {
		t.Errorf("health = %+v", got.Health)
	}
	if got.Files != 8 {
		t.Errorf("files = %d, want 8", got.Files)
	}
}

func TestDelete(t *testing.T) {
	srv, env := newTestServer(t, "")

	resp, _ := doRequest(t, http.MethodDelete, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	resp, body := doRequest(t, http.MethodDelete, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	got := decode[DestroyResponse](t, body)
	if !got.Success || got.SessionID != "mock-1" {
		t.Errorf("response = %+v", got)
	}
	if env.Provider.Live() != 0 {
		t.Errorf("live environments = %d, want 0", env.Provider.Live())
	}
}

func TestFiles(t *testing.T) {
	srv, _ := newTestServer(t, "")

	if resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/sandbox/files"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	_, body := doRequest(t, http.MethodGet, srv.URL+"/api/sandbox/files")
	got := decode[FilesResponse](t, body)
	if len(got.Files) != 8 {
		t.Errorf("files = %v, want 8", got.Files)
	}
	if got.Files[0] != "index.html" {
		t.Errorf("files not sorted: %v", got.Files)
	}
}

func TestLogs(t *testing.T) {
	srv, env := newTestServer(t, "")

	if resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/sandbox/logs"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	doRequest(t, http.MethodPost, srv.URL+"/api/sandbox")
	env.Provider.OnExec("tail -n 5 /tmp/forage-preview-dev.log", provider.Exit(0, "Local: http://localhost:5173/\n", ""))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/sandbox/logs?lines=5")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	got := decode[LogsResponse](t, body)
	if got.SessionID != "mock-1" || !strings.Contains(got.Stdout, "localhost:5173") {
		t.Errorf("response = %+v", got)
	}

	for _, bad := range []string{"0", "-3", "many"} {
		if resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/sandbox/logs?lines="+bad); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("lines=%s status = %d, want 400", bad, resp.StatusCode)
		}
	}

	c := NewClient(srv.URL, "")
	if logs, err := c.Logs(context.Background(), 5); err != nil || logs.SessionID != "mock-1" {
		t.Errorf("Client.Logs() = %+v, %v", logs, err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[HealthResponse](t, body)
	if got.Status != "ok" || got.Provider != "mock" || got.Session != health.StatusNone {
		t.Errorf("response = %+v", got)
	}
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/sandbox")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sandbox", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status with key = %d, want 404", resp.StatusCode)
	}
}

func TestValidBearer(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"Bearer secret", true},
		{"", false},
		{"secret", false},
		{"Basic secret", false},
		{"Bearer secre", false},
		{"Bearer secret2", false},
		{"bearer secret", false},
	}

	for _, tt := range tests {
		if got := validBearer(tt.header, "secret"); got != tt.want {
			t.Errorf("validBearer(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec.Body.Bytes()); got.Error != "internal server error" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestClient(t *testing.T) {
	srv, _ := newTestServer(t, "k")
	c := NewClient(srv.URL, "k")
	ctx := context.Background()

	if _, err := c.Status(ctx); errors.GetExitCode(err) != errors.ExitNoSession {
		t.Errorf("Status() error = %v, want no-session", err)
	}

	created, err := c.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.SessionID != "mock-1" {
		t.Errorf("SessionID = %q", created.SessionID)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if status.Session.ID != "mock-1" {
		t.Errorf("Status().Session.ID = %q", status.Session.ID)
	}

	files, err := c.Files(ctx)
	if err != nil || len(files.Files) != 8 {
		t.Errorf("Files() = %+v, %v", files, err)
	}

	if _, err := c.Destroy(ctx); err != nil {
		t.Errorf("Destroy() error: %v", err)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t, "k")
	c := NewClient(srv.URL, "wrong")

	_, err := c.Status(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "unauthorized" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestNewClient_BareAddress(t *testing.T) {
	c := NewClient("127.0.0.1:8787", "")
	if c.BaseURL != "http://127.0.0.1:8787" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
}

func TestEventsStream(t *testing.T) {
	srv, _ := newTestServer(t, "")
	c := NewClient(srv.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, err := c.Events(ctx)
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}

	if _, err := c.Create(ctx); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	var stages []events.Stage
	for ev := range ch {
		stages = append(stages, ev.Stage)
		if ev.Terminal() {
			if ev.Stage != events.StageReady || ev.URL == "" {
				t.Errorf("terminal event = %+v", ev)
			}
			break
		}
	}
	if len(stages) == 0 || stages[0] != events.StageCreate {
		t.Errorf("stages = %v, want to start with create", stages)
	}
}
