package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"break-reminder-backend/internal/model"
)

// ErrNotFound matches any APIError with a 404 status via errors.Is.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Is reports 404 responses as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Health is the healthcheck response body.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Client is a typed client for the break reminder API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the server at baseURL (e.g. http://localhost:2022).
// An optional proxy URL routes requests through an HTTP proxy.
func New(baseURL, proxy string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}

	transport := &http.Transport{}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateConfig inserts a new config for userID.
func (c *Client) CreateConfig(ctx context.Context, userID string, intervalMinutes int, isActive bool) (*model.BreakReminderConfig, error) {
	body := map[string]any{
		"user_id":          userID,
		"interval_minutes": intervalMinutes,
		"is_active":        isActive,
	}
	var cfg model.BreakReminderConfig
	if err := c.do(ctx, http.MethodPost, "/api/configs", nil, body, &cfg); err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}
	return &cfg, nil
}

// UpdateConfig applies patch to the config with the given id.
func (c *Client) UpdateConfig(ctx context.Context, id int64, patch model.ConfigPatch) (*model.BreakReminderConfig, error) {
	var cfg model.BreakReminderConfig
	path := "/api/configs/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPatch, path, nil, patch, &cfg); err != nil {
		return nil, fmt.Errorf("update config %d: %w", id, err)
	}
	return &cfg, nil
}

// GetConfig returns the user's config, or nil when there is none.
func (c *Client) GetConfig(ctx context.Context, userID string) (*model.BreakReminderConfig, error) {
	var cfg *model.BreakReminderConfig
	q := url.Values{"user_id": {userID}}
	if err := c.do(ctx, http.MethodGet, "/api/configs", q, nil, &cfg); err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// CreateNotification records a notification for userID.
func (c *Client) CreateNotification(ctx context.Context, userID, message string) (*model.BreakNotification, error) {
	body := map[string]string{"user_id": userID, "message": message}
	var n model.BreakNotification
	if err := c.do(ctx, http.MethodPost, "/api/notifications", nil, body, &n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &n, nil
}

// DismissNotification marks a notification dismissed.
func (c *Client) DismissNotification(ctx context.Context, id int64) (*model.BreakNotification, error) {
	var n model.BreakNotification
	path := "/api/notifications/" + strconv.FormatInt(id, 10) + "/dismiss"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &n); err != nil {
		return nil, fmt.Errorf("dismiss notification %d: %w", id, err)
	}
	return &n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID string, includeDismissed bool) ([]model.BreakNotification, error) {
	q := url.Values{
		"user_id":           {userID},
		"include_dismissed": {strconv.FormatBool(includeDismissed)},
	}
	list := []model.BreakNotification{}
	if err := c.do(ctx, http.MethodGet, "/api/notifications", q, nil, &list); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// Healthcheck reports server liveness.
func (c *Client) Healthcheck(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/healthcheck", nil, nil, &h); err != nil {
		return nil, fmt.Errorf("healthcheck: %w", err)
	}
	return &h, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil {
			apiErr.Message = e.Error
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	return nil
}
