// Package httpclient provides the HTTP transport the Telegram client runs on:
// retries with exponential backoff and a middleware chain around every call.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Config contains the transport settings.
type Config struct {
	// Timeout bounds a single attempt. It must exceed the long-poll timeout
	// of getUpdates.
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	MaxRetryWaitTime time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:          90 * time.Second,
		RetryCount:       3,
		RetryWaitTime:    1 * time.Second,
		MaxRetryWaitTime: 30 * time.Second,
	}
}

// Client wraps http.Client. It satisfies the HTTPClient interface of the
// Telegram Bot API library.
type Client struct {
	httpClient  *http.Client
	config      Config
	middlewares []Middleware
}

func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// WithMiddleware adds a middleware to the client
func (c *Client) WithMiddleware(middleware Middleware) *Client {
	c.middlewares = append(c.middlewares, middleware)
	return c
}

// Do sends req through the middleware chain. Middlewares run in the order
// they were added; retries happen inside the chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	handler := c.executeRequest
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	return handler(ctx, req)
}

func (c *Client) executeRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	var retryCount int

	for {
		resp, err := c.httpClient.Do(req)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if !shouldRetry(resp, err) || retryCount >= c.config.RetryCount {
			return resp, err
		}

		next, rerr := rewind(ctx, req)
		if rerr != nil {
			// The body cannot be replayed, so the first outcome stands.
			return resp, err
		}

		// Close the response body to reuse the connection
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryWaitTime(retryCount)):
		}

		req = next
		retryCount++
	}
}

// rewind clones req with a fresh body.
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	next := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body of %s %s is not replayable", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

// shouldRetry retries network errors, 5xx and 429.
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp.StatusCode >= 500 && resp.StatusCode < 600 {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests
}

func (c *Client) retryWaitTime(retryCount int) time.Duration {
	waitTime := c.config.RetryWaitTime * time.Duration(1<<uint(retryCount))
	if waitTime > c.config.MaxRetryWaitTime {
		waitTime = c.config.MaxRetryWaitTime
	}
	return waitTime
}
