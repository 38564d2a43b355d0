package handlers

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/amirphl/shortlink/logging"
	"github.com/gofiber/fiber/v3"
)

// SPAHandler serves the single-page application shell. Page routes are checked with the
// route guard before index.html is sent, so protected pages never render for anonymous users.
type SPAHandler struct {
	baseHandler
	tokens     services.TokenService
	cookieName string
	indexPath  string
}

func NewSPAHandler(tokens services.TokenService, staticDir, cookieName string, requestTimeout time.Duration) *SPAHandler {
	return &SPAHandler{
		baseHandler: newBaseHandler("", requestTimeout),
		tokens:      tokens,
		cookieName:  cookieName,
		indexPath:   filepath.Join(staticDir, "index.html"),
	}
}

// Page serves index.html for a route with the given access rule
func (h *SPAHandler) Page(access businessflow.RouteAccess) fiber.Handler {
	return func(c fiber.Ctx) error {
		session := h.session(c, access)

		outcome := businessflow.EvaluateGuard(session, access, c.Path(), queryValues(c))
		if outcome.Kind == businessflow.GuardUnauthorized {
			return c.Redirect().Status(fiber.StatusFound).To(outcome.RedirectTo)
		}
		return h.serveIndex(c)
	}
}

// Fallback serves index.html for unknown GET paths outside the API so client-side
// routing can render its own not-found view; everything else gets the JSON 404.
func (h *SPAHandler) Fallback(c fiber.Ctx) error {
	if c.Method() == fiber.MethodGet && !strings.HasPrefix(c.Path(), "/api/") && acceptsHTML(c) {
		return h.serveIndex(c)
	}
	return h.ErrorResponse(c, fiber.StatusNotFound, "The requested resource was not found", "NOT_FOUND", fiber.Map{
		"path":   c.Path(),
		"method": c.Method(),
	})
}

// session resolves the caller from the bearer header or session cookie. Open routes skip the lookup.
func (h *SPAHandler) session(c fiber.Ctx, access businessflow.RouteAccess) *businessflow.SessionContext {
	session := businessflow.NewSessionContext()
	if access == businessflow.RouteOpen {
		return session
	}

	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		token = c.Cookies(h.cookieName)
	}
	if token == "" {
		session.Apply(businessflow.AuthEvent{Type: businessflow.AuthEventSignedOut})
		return session
	}

	ctx, cancel := h.createRequestContext(c, c.Path())
	defer cancel()

	claims, err := h.tokens.ValidateToken(ctx, token)
	if err != nil || claims.TokenType != services.TokenTypeAccess {
		session.Apply(businessflow.AuthEvent{Type: businessflow.AuthEventSignedOut})
		return session
	}

	session.Apply(businessflow.AuthEvent{
		Type: businessflow.AuthEventSignedIn,
		User: &dto.UserDTO{ID: claims.UserID},
	})
	return session
}

func (h *SPAHandler) serveIndex(c fiber.Ctx) error {
	if _, err := os.Stat(h.indexPath); err != nil {
		logging.Warn().Err(err).Str("index", h.indexPath).Msg("SPA bundle not found")
		return h.ErrorResponse(c, fiber.StatusNotFound, "Application bundle not found", "NOT_FOUND", nil)
	}
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.SendFile(h.indexPath)
}

func acceptsHTML(c fiber.Ctx) bool {
	accept := c.Get(fiber.HeaderAccept)
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}

// bearerToken extracts the token from an Authorization header, or "" when absent or malformed
func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
