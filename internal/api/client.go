package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
)

// Client talks to a running forage-preview server.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient creates a client for the server listening on addr, which may
// be a bare host:port.
func NewClient(addr, apiKey string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		APIKey:  apiKey,
		// A bootstrap takes well over a minute when installs retry.
		HTTP: &http.Client{Timeout: 15 * time.Minute},
	}
}

// APIError is a failure response from the server.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Create bootstraps a new sandbox on the server.
func (c *Client) Create(ctx context.Context) (*CreateResponse, error) {
	var out CreateResponse
	if err := c.do(ctx, http.MethodPost, "/api/sandbox", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server's active session.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/sandbox", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Destroy tears the server's active session down.
func (c *Client) Destroy(ctx context.Context) (*DestroyResponse, error) {
	var out DestroyResponse
	if err := c.do(ctx, http.MethodDelete, "/api/sandbox", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Files returns the manifest of the server's active session.
func (c *Client) Files(ctx context.Context) (*FilesResponse, error) {
	var out FilesResponse
	if err := c.do(ctx, http.MethodGet, "/api/sandbox/files", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logs returns the last lines of the dev server output.
func (c *Client) Logs(ctx context.Context, lines int) (*LogsResponse, error) {
	var out LogsResponse
	path := "/api/sandbox/logs?lines=" + strconv.Itoa(lines)
	if err := c.do(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events subscribes to the server's progress stream. The channel is closed
// when the connection ends or ctx is done.
func (c *Client) Events(ctx context.Context) (<-chan events.Event, error) {
	u, err := url.Parse(c.BaseURL + "/api/sandbox/events")
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.APIKey)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, c.decodeError(resp)
		}
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}

	ch := make(chan events.Event, eventBuffer)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var ev events.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError turns a failure response into an error. A 404 becomes the
// NoSession error so the CLI exits with the matching code.
func (c *Client) decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var er ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		apiErr.Message = er.Error
		apiErr.Details = er.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrap(errors.ExitNoSession, "no active sandbox session", apiErr)
	}
	return apiErr
}
