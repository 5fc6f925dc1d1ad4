package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeySourceRef contextKey = "source_ref"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithSourceRef tags the context with the document being processed (file path or client reference).
func WithSourceRef(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, ContextKeySourceRef, ref)
}

// SourceRefFromContext extracts the document reference from context
func SourceRefFromContext(ctx context.Context) string {
	if ref, ok := ctx.Value(ContextKeySourceRef).(string); ok {
		return ref
	}
	return ""
}

// WithTimeout creates a context with the specified timeout; zero means no timeout.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
