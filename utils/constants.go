package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Link defaults
const (
	DefaultShortCodeLength    = 6
	DefaultShortCodeAttempts  = 5
	DefaultMaxLinksPerUser    = 100
	DefaultMaxURLLength       = 2048
	AnalyticsWindowDays       = 7
	DefaultAppName            = "ShortLink"
	DefaultSessionCookieName  = "session"
	DefaultDashboardAfterAuth = "/dashboard"
)

type contextKey string

// Request-scoped context keys set by the HTTP layer
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
)

// Fiber locals set by the auth middleware
const (
	LocalsUserID      = "user_id"
	LocalsTokenID     = "token_id"
	LocalsTokenClaims = "token_claims"
)
