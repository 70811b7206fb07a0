package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/meshtls/internal/infra/buildinfo"
	"github.com/yndnr/meshtls/internal/server/httpserver/handler"
)

// HTTPClient calls the admin API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// unixScheme marks a server given as a Unix socket path.
const unixScheme = "unix://"

// NewHTTPClient creates a client for the admin listener at server, given
// as host:port, a full URL, or unix:///path/to/admin.sock.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	baseURL := server
	switch {
	case strings.HasPrefix(server, unixScheme):
		socket := strings.TrimPrefix(server, unixScheme)
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		baseURL = "http://unix"
	case !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://"):
		baseURL = "http://" + baseURL
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Status fetches GET /admin/v1/status.
func (c *HTTPClient) Status(ctx context.Context) (*handler.StatusResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/admin/v1/status", nil)
	if err != nil {
		return nil, err
	}
	var out handler.StatusResponse
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reload calls POST /admin/v1/reload. With wait the server performs the
// reload before answering.
func (c *HTTPClient) Reload(ctx context.Context, wait bool) (*handler.ReloadResponse, error) {
	path := "/admin/v1/reload"
	if wait {
		path += "?wait=true"
	}
	resp, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	var out handler.ReloadResponse
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LogLevel fetches GET /admin/v1/log-level.
func (c *HTTPClient) LogLevel(ctx context.Context) (*handler.LogLevel, error) {
	resp, err := c.do(ctx, http.MethodGet, "/admin/v1/log-level", nil)
	if err != nil {
		return nil, err
	}
	var out handler.LogLevel
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLogLevel calls PUT /admin/v1/log-level and returns the level now in
// effect.
func (c *HTTPClient) SetLogLevel(ctx context.Context, level string) (*handler.LogLevel, error) {
	body, err := json.Marshal(handler.LogLevel{Level: level})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPut, "/admin/v1/log-level", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var out handler.LogLevel
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "meshtls-cli/"+buildinfo.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// APIError is a failed admin API call.
type APIError struct {
	Status  int
	Code    string
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Reason != "" {
		msg += " (reason: " + e.Reason + ")"
	}
	return msg
}

// ParseResponse decodes the envelope of resp into target, or returns an
// *APIError for an error status.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Code    string               `json:"code"`
			Message string               `json:"message"`
			Details handler.ReloadFailure `json:"details"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Message != "" {
			return &APIError{
				Status:  resp.StatusCode,
				Code:    errResp.Code,
				Message: errResp.Message,
				Reason:  errResp.Details.Reason,
			}
		}
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("request failed with status %d", resp.StatusCode)}
	}

	if target == nil {
		return nil
	}
	envelope := handler.Response{Data: target}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
