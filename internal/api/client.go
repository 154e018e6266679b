// Package api is the typed client of the petition backend REST API.
// Every call validates its request before sending and its response before returning.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout   = 15 * time.Second
	defaultUserAgent = "petition-web/1.0"
)

var (
	// ErrUnauthorized matches responses with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches responses with status 404.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest wraps request validation failures; nothing was sent.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidResponse wraps responses that don't match the expected shape.
	ErrInvalidResponse = errors.New("invalid response")
)

// Error is a failing (>399) backend response.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	// Message is the backend's error message, if it sent one.
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed: %s %s (status: %d): %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed: %s %s (status: %d)", e.Method, e.URL, e.StatusCode)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == 401
	case ErrNotFound:
		return e.StatusCode == 404
	}
	return false
}

// errorBody is the error envelope the backend returns on failure.
type errorBody struct {
	Message string `json:"message"`
}

type ClientOpts struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(opts ClientOpts) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := Client{baseURL: opts.BaseURL}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeaders(
			map[string]string{
				"Accept":     "application/json",
				"User-Agent": defaultUserAgent,
			},
		)

	return &c
}

// BaseURL returns the backend base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// req builds a request bound to ctx. An empty bearer sends no Authorization header.
func (c *Client) req(ctx context.Context, bearer string, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetError(&errorBody{})

	if bearer != "" {
		request.SetAuthToken(bearer)
	}

	if result != nil {
		request.SetResult(result)
	}

	return request
}

// handleError is a generic error handler for failing response (>399 status
// code). Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		apiErr := &Error{
			Method:     res.Request.Method,
			URL:        res.Request.URL,
			StatusCode: res.StatusCode(),
		}
		if body, ok := res.Error().(*errorBody); ok && body != nil {
			apiErr.Message = body.Message
		}
		return res, apiErr
	}

	return res, nil
}
