// Package utils provides utility functions for the application.
package utils

import "context"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// StringValue dereferences s, returning "" for nil
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RequestIDFromContext returns the request id stored by the HTTP layer, if any
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// IPAddressFromContext returns the client ip stored by the HTTP layer, if any
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(IPAddressKey).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext returns the client user agent stored by the HTTP layer, if any
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserAgentKey).(string); ok {
		return v
	}
	return ""
}
