// Package api is a typed client for the marketplace HTTP API. Every call
// except login and signup needs the caller's bearer credential.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pathLogin     = "/auth/login"
	pathSignup    = "/auth/signup"
	pathMe        = "/auth/me"
	pathProjects  = "/project"
	pathCreate    = "/project/create"
	pathBid       = "/project/bid"
	pathSelectBid = "/project/select-bid"
	pathDeliver   = "/project/deliver"
	pathComplete  = "/project/complete"
)

// maxErrorBody caps how much of a non-JSON error body ends up in an Error.
const maxErrorBody = 512

// ErrUnauthorized is matched by errors.Is for 401 and 403 responses.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a failure reported by the API as a non-2xx status.
type Error struct {
	// Status is the HTTP status code.
	Status int
	// Message is the server's "error" field, or the raw body if it had none.
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %s", http.StatusText(e.Status))
	}
	return e.Message
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match auth failures.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to the marketplace API rooted at baseURL.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger
}

// New returns a Client. httpClient and log may be nil.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON sends in (if non-nil) as the JSON body and decodes the response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	log := c.log.With(
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug("api request failed", zap.Error(err))
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	log.Debug("api response", zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return &Error{Status: resp.StatusCode, Message: payload.Error}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > maxErrorBody {
		// drop a rune cut in half
		msg = strings.ToValidUTF8(msg[:maxErrorBody], "")
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}
