package businessflow

import (
	"net/url"
	"strings"
	"sync"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/utils"
)

// SessionStatus is the authentication state known to the application
type SessionStatus int

const (
	SessionLoading SessionStatus = iota
	SessionAuthenticated
	SessionAnonymous
)

func (s SessionStatus) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionAuthenticated:
		return "authenticated"
	case SessionAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// AuthEventType names a push from the identity side
type AuthEventType string

const (
	AuthEventSignedIn       AuthEventType = "SIGNED_IN"
	AuthEventSignedOut      AuthEventType = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent carries the user for SIGNED_IN and TOKEN_REFRESHED
type AuthEvent struct {
	Type AuthEventType
	User *dto.UserDTO
}

// SessionContext is a read-through copy of the current user. It starts Loading and moves
// to Authenticated or Anonymous on each applied event. Create one per request or per
// client lifetime and pass it to whatever needs it.
type SessionContext struct {
	mu     sync.RWMutex
	status SessionStatus
	user   *dto.UserDTO
}

func NewSessionContext() *SessionContext {
	return &SessionContext{status: SessionLoading}
}

// Apply transitions the session. SIGNED_IN or TOKEN_REFRESHED without a user means the
// lookup failed, which is treated as signed out.
func (s *SessionContext) Apply(event AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Type {
	case AuthEventSignedIn, AuthEventTokenRefreshed:
		if event.User == nil {
			s.status, s.user = SessionAnonymous, nil
			return
		}
		s.status, s.user = SessionAuthenticated, event.User
	case AuthEventSignedOut:
		s.status, s.user = SessionAnonymous, nil
	}
}

func (s *SessionContext) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// User returns the authenticated user or nil
func (s *SessionContext) User() *dto.UserDTO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *SessionContext) IsAuthenticated() bool {
	return s.Status() == SessionAuthenticated
}

func (s *SessionContext) Loading() bool {
	return s.Status() == SessionLoading
}

// RouteAccess is the authorization requirement of a route
type RouteAccess int

const (
	RouteOpen RouteAccess = iota
	RouteProtected
	RoutePublicOnly
)

// GuardOutcomeKind is the tagged result of evaluating a route guard
type GuardOutcomeKind int

const (
	GuardLoading GuardOutcomeKind = iota
	GuardAuthorized
	GuardUnauthorized
)

func (k GuardOutcomeKind) String() string {
	switch k {
	case GuardLoading:
		return "loading"
	case GuardAuthorized:
		return "authorized"
	case GuardUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// GuardOutcome tells the router what to do. RedirectTo is set for GuardUnauthorized.
type GuardOutcome struct {
	Kind       GuardOutcomeKind
	RedirectTo string
}

// Query parameters understood by the guard
const (
	GuardFromParam      = "from"
	GuardCreateNewParam = "createNew"
	authPath            = "/auth"
)

// EvaluateGuard decides whether the session may see a route at path with the given query.
// Protected routes send anonymous users to /auth?from=<path>; public-only routes send
// authenticated users back to from, or the dashboard. createNew is carried along.
func EvaluateGuard(session *SessionContext, access RouteAccess, path string, query url.Values) GuardOutcome {
	if access == RouteOpen {
		return GuardOutcome{Kind: GuardAuthorized}
	}
	if session == nil || session.Loading() {
		return GuardOutcome{Kind: GuardLoading}
	}

	authenticated := session.IsAuthenticated()

	switch access {
	case RouteProtected:
		if authenticated {
			return GuardOutcome{Kind: GuardAuthorized}
		}
		params := url.Values{}
		params.Set(GuardFromParam, path)
		if createNew := query.Get(GuardCreateNewParam); createNew != "" {
			params.Set(GuardCreateNewParam, createNew)
		}
		return GuardOutcome{Kind: GuardUnauthorized, RedirectTo: authPath + "?" + params.Encode()}

	case RoutePublicOnly:
		if !authenticated {
			return GuardOutcome{Kind: GuardAuthorized}
		}
		return GuardOutcome{Kind: GuardUnauthorized, RedirectTo: PostAuthRedirect(query)}
	}

	return GuardOutcome{Kind: GuardAuthorized}
}

// PostAuthRedirect is where a user lands after authenticating: the local from path if
// present, otherwise the dashboard, with createNew carried along
func PostAuthRedirect(query url.Values) string {
	target := utils.DefaultDashboardAfterAuth
	if from := query.Get(GuardFromParam); isLocalPath(from) && !strings.HasPrefix(from, authPath) {
		target = from
	}

	if createNew := query.Get(GuardCreateNewParam); createNew != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + GuardCreateNewParam + "=" + url.QueryEscape(createNew)
	}
	return target
}

// isLocalPath rejects absolute and protocol-relative URLs to prevent open redirects
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}
