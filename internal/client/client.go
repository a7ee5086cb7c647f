// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/draft"
	"github.com/Annany2002/nebula-cms/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// APIError is a non-2xx response from the CMS API.
type APIError struct {
	StatusCode int
	Message    string
	Errors     map[string]string // per-field messages on validation failures
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("api returned status %d: %s %v", e.StatusCode, e.Message, e.Errors)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   string
}

// Client talks to the CMS API and implements draft.Transport for the agent
// collection. It holds the bearer token but never inspects credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

var _ draft.Transport = (*Client)(nil)

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		token:      cfg.Token,
	}
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var res models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	customLog.Printf("Client: Logged in as %s", res.User.Email)
	return &res, nil
}

// FetchConfig downloads and parses the CMS document.
func (c *Client) FetchConfig(ctx context.Context) (*cmsconfig.CMSConfig, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v1/config", nil, &raw); err != nil {
		return nil, err
	}
	return cmsconfig.Parse(raw, "json")
}

// FetchAgentConfig returns every agent keyed by agent key.
func (c *Client) FetchAgentConfig(ctx context.Context) (draft.Collection, error) {
	all := draft.Collection{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/agents", nil, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// FetchAgent returns one agent including its "id".
func (c *Client) FetchAgent(ctx context.Context, key string) (draft.Record, error) {
	rec := draft.Record{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/agents/"+url.PathEscape(key), nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveAgentConfig overwrites the whole agent collection.
func (c *Client) SaveAgentConfig(ctx context.Context, all draft.Collection) error {
	return c.do(ctx, http.MethodPut, "/api/v1/agents", all, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var parsed struct {
		Error  string            `json:"error"`
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		apiErr.Message = parsed.Error
		apiErr.Errors = parsed.Errors
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
