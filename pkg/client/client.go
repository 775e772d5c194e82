// Package client is a typed Go consumer of the CampusHub REST API. GET
// results are cached in-process for a short TTL and invalidated by writes
// through the same client.
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

	"github.com/campushub/campushub-api/internal/models"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	CacheTTL   time.Duration
}

// Client talks to a CampusHub API server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *ttlCache

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

// APIError is a non-2xx response decoded from the envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Message    string             `json:"message"`
	Code       string             `json:"code"`
	Pagination *models.Pagination `json:"pagination"`
}

// New creates a client for the given base URL, e.g.
// "https://campus.example.com/api/v1".
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		cache:   newTTLCache(opts.CacheTTL),
	}, nil
}

// SetTokens installs a token pair obtained out of band.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.mu.Unlock()
}

// Tokens returns the current token pair.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, _ := c.Tokens(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNoContent {
		return &envelope{Success: true}, nil
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{StatusCode: res.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
	}
	return &env, nil
}

// getCached serves GETs through the TTL cache.
func getCached[T any](ctx context.Context, c *Client, path string) (*T, error) {
	if cached, ok := c.cache.get(path); ok {
		if value, ok := cached.(*T); ok {
			return value, nil
		}
	}

	out := new(T)
	if _, err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	c.cache.set(path, out)
	return out, nil
}
