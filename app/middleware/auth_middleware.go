// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
	cookieName   string
}

// NewAuthMiddleware creates a new authentication middleware. Browser clients may send the
// access token in the cookieName cookie instead of the Authorization header.
func NewAuthMiddleware(tokenService services.TokenService, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		cookieName:   cookieName,
	}
}

// Authenticate is the middleware function that validates JWT tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, code, message := m.extractToken(c)
		if token == "" {
			return unauthorized(c, code, message)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
		defer cancel()

		// Validate the token (this already checks for revocation)
		claims, err := m.tokenService.ValidateToken(ctx, token)
		if err != nil {
			var errorCode string
			var message string

			switch {
			case errors.Is(err, services.ErrTokenExpired):
				errorCode = "TOKEN_EXPIRED"
				message = "Access token has expired"
			case errors.Is(err, services.ErrTokenRevoked):
				errorCode = "TOKEN_REVOKED"
				message = "Access token has been revoked"
			case errors.Is(err, services.ErrTokenInvalid):
				errorCode = "TOKEN_INVALID"
				message = "Invalid access token"
			default:
				logging.Ctx(ctx).Error().Err(err).Msg("Token validation failed")
				errorCode = "TOKEN_VALIDATION_FAILED"
				message = "Token validation failed"
			}
			return unauthorized(c, errorCode, message)
		}

		if claims.TokenType != services.TokenTypeAccess {
			return unauthorized(c, "TOKEN_INVALID", "Refresh tokens cannot be used for API access")
		}

		// Store user information in context for downstream handlers
		c.Locals(utils.LocalsUserID, claims.UserID)
		c.Locals(utils.LocalsTokenID, claims.TokenID)
		c.Locals(utils.LocalsTokenClaims, claims)

		return c.Next()
	}
}

// extractToken prefers the Authorization header and falls back to the session cookie.
// When no token is found it returns the error code and message to answer with.
func (m *AuthMiddleware) extractToken(c fiber.Ctx) (string, string, string) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		// Check if the header starts with "Bearer "
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'"
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return "", "MISSING_ACCESS_TOKEN", "Access token is required"
		}
		return token, "", ""
	}

	if m.cookieName != "" {
		if token := c.Cookies(m.cookieName); token != "" {
			return token, "", ""
		}
	}
	return "", "MISSING_AUTHORIZATION_HEADER", "Authorization header is required"
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}
