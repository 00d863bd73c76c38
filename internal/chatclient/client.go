// Package chatclient is the Go client for the Chatter API: an HTTP client
// holding the session cookie, a WebSocket subscriber for real-time events,
// and the conversation store that drives a chat UI.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/avolkov/chatter/internal/domain"
)

// Client talks to the Chatter HTTP API. The cookie jar carries the session
// cookie, so authentication is transparent after Login or Signup.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given server base URL.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

// SendPayload is the body of an outgoing message. Image carries a base64
// data URI; the server stores it and returns the asset URL.
type SendPayload struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Signup registers an account and establishes a session.
func (c *Client) Signup(ctx context.Context, fullName, email, password string) (*domain.UserSummary, error) {
	var out domain.UserSummary
	err := c.call(ctx, http.MethodPost, "/signup", map[string]string{
		"full_name": fullName, "email": email, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and establishes a session.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.UserSummary, error) {
	var out domain.UserSummary
	err := c.call(ctx, http.MethodPost, "/login", map[string]string{
		"email": email, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout drops the session on both sides.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/logout", nil, nil)
}

// Check returns the identity bound to the current session.
func (c *Client) Check(ctx context.Context) (*domain.UserSummary, error) {
	var out domain.UserSummary
	if err := c.call(ctx, http.MethodGet, "/check", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile uploads a new profile picture (base64 data URI).
func (c *Client) UpdateProfile(ctx context.Context, profilePic string) (*domain.UserSummary, error) {
	var out domain.UserSummary
	err := c.call(ctx, http.MethodPut, "/profile", map[string]string{
		"profile_pic": profilePic,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Users fetches the conversation sidebar.
func (c *Client) Users(ctx context.Context) ([]domain.UserSummary, error) {
	var out []domain.UserSummary
	if err := c.call(ctx, http.MethodGet, "/messages/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches the conversation with the given partner.
func (c *Client) Messages(ctx context.Context, partnerID string) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.call(ctx, http.MethodGet, "/messages/"+partnerID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send posts a message to the partner and returns the server-confirmed record.
func (c *Client) Send(ctx context.Context, partnerID string, payload SendPayload) (*domain.Message, error) {
	var out domain.Message
	if err := c.call(ctx, http.MethodPost, "/messages/send/"+partnerID, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
}
