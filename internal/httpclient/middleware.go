package httpclient

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// Handler defines a function that handles an HTTP request
type Handler func(ctx context.Context, req *http.Request) (*http.Response, error)

// Middleware defines a function that wraps an HTTP handler
type Middleware func(Handler) Handler

var botTokenPath = regexp.MustCompile(`/bot[^/]+/`)

// RedactURL hides the bot token Telegram expects in the request path.
func RedactURL(u string) string {
	return botTokenPath.ReplaceAllString(u, "/bot***/")
}

// LoggingMiddleware logs every request at debug level and failures at warn.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			start := time.Now()
			url := RedactURL(req.URL.String())

			resp, err := next(ctx, req)

			duration := time.Since(start)
			switch {
			case err != nil:
				logger.WarnContext(ctx, "http request failed",
					"method", req.Method, "url", url, "duration", duration, "error", RedactURL(err.Error()))
			case resp.StatusCode >= 400:
				logger.WarnContext(ctx, "http request rejected",
					"method", req.Method, "url", url, "status", resp.StatusCode, "duration", duration)
			default:
				logger.DebugContext(ctx, "http request",
					"method", req.Method, "url", url, "status", resp.StatusCode, "duration", duration)
			}

			return resp, err
		}
	}
}

// HeaderMiddleware adds additional headers to the request
func HeaderMiddleware(headers map[string]string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			for key, value := range headers {
				req.Header.Set(key, value)
			}
			return next(ctx, req)
		}
	}
}
