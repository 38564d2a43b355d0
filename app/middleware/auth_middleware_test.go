package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/utils"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tokens, err := services.NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "",
		"middleware-test-secret-of-enough-length", services.NewMemoryRevocationStore())
	require.NoError(t, err)

	pair, err := tokens.GenerateTokens(context.Background(), 42)
	require.NoError(t, err)

	revoked, err := tokens.GenerateTokens(context.Background(), 42)
	require.NoError(t, err)
	require.NoError(t, tokens.RevokeTokenID(context.Background(), revoked.AccessTokenID, revoked.AccessExpiresAt))

	app := fiber.New()
	app.Use(NewAuthMiddleware(tokens, "session").Authenticate())
	app.Get("/whoami", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals(utils.LocalsUserID)})
	})

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
		wantCode   string
	}{
		{name: "BearerToken", header: "Bearer " + pair.AccessToken, wantStatus: fiber.StatusOK},
		{name: "CookieToken", cookie: pair.AccessToken, wantStatus: fiber.StatusOK},
		{name: "NoCredentials", wantStatus: fiber.StatusUnauthorized, wantCode: "MISSING_AUTHORIZATION_HEADER"},
		{name: "WrongScheme", header: "Basic dXNlcjpwYXNz", wantStatus: fiber.StatusUnauthorized, wantCode: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "EmptyBearer", header: "Bearer   ", wantStatus: fiber.StatusUnauthorized, wantCode: "MISSING_ACCESS_TOKEN"},
		{name: "Garbage", header: "Bearer not-a-token", wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_INVALID"},
		{name: "RefreshTokenRejected", header: "Bearer " + pair.RefreshToken, wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_INVALID"},
		{name: "Revoked", header: "Bearer " + revoked.AccessToken, wantStatus: fiber.StatusUnauthorized, wantCode: "TOKEN_REVOKED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.Header.Set(fiber.HeaderCookie, "session="+tt.cookie)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.wantCode == "" {
				assert.Equal(t, float64(42), body["user_id"])
				return
			}
			errBody, ok := body["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, errBody["code"])
		})
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/ok", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/fail", func(c fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "nope") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
}
