// Package context carries the request scope (request id, interviewer, logger) from the
// HTTP and push edges down to usecases and repositories.
package context

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type scopeKey int

const (
	requestIDKey scopeKey = iota
	interviewerKey
	loggerKey
)

// HeaderXRequestID is the HTTP header name for request ID.
const HeaderXRequestID = "X-Request-Id"

const echoRequestIDKey = "request_id"

// SetRequestID stores the request id on the echo context for response envelopes.
func SetRequestID(c echo.Context, requestID string) {
	c.Set(echoRequestIDKey, requestID)
}

// GetRequestID returns the id assigned by the request-id middleware, falling back to the
// response header. Empty when neither is set.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(echoRequestIDKey).(string); ok && id != "" {
		return id
	}

	return c.Response().Header().Get(HeaderXRequestID)
}

// WithRequestID returns a new context with the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestIDFromContext returns the request id, or "" outside a request.
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)

	return id
}

// WithInterviewer records the authenticated interviewer for the rest of the request.
func WithInterviewer(ctx context.Context, interviewerID uuid.UUID) context.Context {
	return context.WithValue(ctx, interviewerKey, interviewerID)
}

// InterviewerFromContext returns the authenticated interviewer. ok is false for
// anonymous requests (auth disabled) and background work.
func InterviewerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(interviewerKey).(uuid.UUID)

	return id, ok
}

// WithLogger returns a new context with the logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLoggerOrDefault returns the request-scoped logger, or fallback when none is set.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}

	return fallback
}
