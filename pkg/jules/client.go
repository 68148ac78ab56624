// Package jules is a small client for the Jules REST API.
package jules

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/gules/internal/types"
)

const DefaultBaseURL = "https://jules.googleapis.com/v1alpha"

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   *RetryPolicy
	Logger  *slog.Logger
}

// Client calls the Jules API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a client. Unset fields take package defaults.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retry == nil {
		config.Retry = DefaultRetryPolicy()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// ListActivities returns one page of a session's activities as raw payloads.
func (c *Client) ListActivities(ctx context.Context, id types.SessionID, pageToken string, pageSize int) (*types.ActivityPage, error) {
	var page types.ActivityPage
	path := "/" + sessionPath(id) + "/activities"
	if err := c.get(ctx, path, pageQuery(pageToken, pageSize), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetActivity returns one activity payload.
func (c *Client) GetActivity(ctx context.Context, id types.SessionID, activityID types.ActivityID) (json.RawMessage, error) {
	var raw json.RawMessage
	path := "/" + sessionPath(id) + "/activities/" + url.PathEscape(string(activityID))
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ListSessions returns one page of the caller's sessions.
func (c *Client) ListSessions(ctx context.Context, pageToken string, pageSize int) (*types.SessionPage, error) {
	var page types.SessionPage
	if err := c.get(ctx, "/sessions", pageQuery(pageToken, pageSize), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSession returns one session.
func (c *Client) GetSession(ctx context.Context, id types.SessionID) (*types.Session, error) {
	var s types.Session
	if err := c.get(ctx, "/"+sessionPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func sessionPath(id types.SessionID) string {
	return "sessions/" + url.PathEscape(string(id))
}

func pageQuery(pageToken string, pageSize int) url.Values {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	return q
}

// get performs a GET with retries and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	attempt := 0
	return c.config.Retry.Execute(ctx, func() error {
		attempt++
		err := c.do(ctx, u, out)
		if err != nil {
			c.config.Logger.Debug("jules request failed", "path", path, "attempt", attempt, "error", err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
