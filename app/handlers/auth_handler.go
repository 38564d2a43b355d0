package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Signup(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Me(c fiber.Ctx) error
	Captcha(c fiber.Ctx) error
}

// CookieSettings controls the httpOnly cookies that carry the session for browser clients.
// The access token travels in Name, the refresh token in Name+"_refresh" scoped to the auth API.
type CookieSettings struct {
	Name     string
	Secure   bool
	HTTPOnly bool
	SameSite string
}

func (s CookieSettings) refreshName() string {
	return s.Name + "_refresh"
}

const refreshCookiePath = "/api/v1/auth"

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	baseHandler
	signupFlow businessflow.SignupFlow
	loginFlow  businessflow.LoginFlow
	captcha    services.CaptchaService
	cookies    CookieSettings
}

// NewAuthHandler creates a new authentication handler. A nil captcha service disables /auth/captcha.
func NewAuthHandler(signupFlow businessflow.SignupFlow, loginFlow businessflow.LoginFlow, captcha services.CaptchaService, cookies CookieSettings, requestTimeout time.Duration) *AuthHandler {
	if cookies.Name == "" {
		cookies.Name = "session"
	}
	return &AuthHandler{
		baseHandler: newBaseHandler("", requestTimeout),
		signupFlow:  signupFlow,
		loginFlow:   loginFlow,
		captcha:     captcha,
		cookies:     cookies,
	}
}

// Signup handles account registration and signs the new user in
// @Summary User Registration
// @Description Create an account with email and password and start a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Signup form"
// @Param from query string false "Path to return to after authentication"
// @Success 201 {object} dto.APIResponse{data=dto.AuthResponse} "Account created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Email already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/signup")
	defer cancel()

	result, err := h.signupFlow.Signup(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Signup failed", "SIGNUP_FAILED")
	}

	result.RedirectTo = businessflow.PostAuthRedirect(queryValues(c))
	h.setSessionCookies(c, &result.Session)
	return h.SuccessResponse(c, fiber.StatusCreated, "Account created successfully", result)
}

// Login handles email and password sign in
// @Summary User Login
// @Description Authenticate with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Param from query string false "Path to return to after authentication"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Account inactive"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/login")
	defer cancel()

	result, err := h.loginFlow.Login(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Login failed", "LOGIN_FAILED")
	}

	result.RedirectTo = businessflow.PostAuthRedirect(queryValues(c))
	h.setSessionCookies(c, &result.Session)
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// Refresh rotates the session tokens
// @Summary Refresh Tokens
// @Description Exchange a refresh token (body or cookie) for a new token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest false "Refresh token when not sent as cookie"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse} "Tokens refreshed"
// @Failure 401 {object} dto.APIResponse "Invalid, expired or revoked refresh token"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		refreshToken = c.Cookies(h.cookies.refreshName())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/refresh")
	defer cancel()

	result, err := h.loginFlow.Refresh(ctx, refreshToken, clientMetadata(c))
	if err != nil {
		if statusForCode(codeOf(err)) == fiber.StatusUnauthorized {
			h.clearSessionCookies(c)
		}
		return h.businessErrorResponse(c, ctx, err, "Token refresh failed", "REFRESH_FAILED")
	}

	result.RedirectTo = businessflow.PostAuthRedirect(queryValues(c))
	h.setSessionCookies(c, &result.Session)
	return h.SuccessResponse(c, fiber.StatusOK, "Tokens refreshed successfully", result)
}

// Logout ends the current session
// @Summary Logout
// @Description Revoke the current tokens and close the session
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	claims := currentClaims(c)
	if claims == nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/logout")
	defer cancel()

	if err := h.loginFlow.Logout(ctx, claims, clientMetadata(c)); err != nil {
		return h.businessErrorResponse(c, ctx, err, "Logout failed", "LOGOUT_FAILED")
	}

	h.clearSessionCookies(c)
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

// Me returns the signed in user
// @Summary Current User
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.CurrentUserResponse} "Current user"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/me")
	defer cancel()

	result, err := h.loginFlow.CurrentUser(ctx, userID)
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to load user", "CURRENT_USER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User retrieved successfully", result)
}

// Captcha issues a rotate challenge for the signup form
// @Summary Signup Captcha
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CaptchaResponse} "Challenge issued"
// @Failure 404 {object} dto.APIResponse "Captcha disabled"
// @Router /api/v1/auth/captcha [get]
func (h *AuthHandler) Captcha(c fiber.Ctx) error {
	if h.captcha == nil {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Captcha is not enabled", "CAPTCHA_DISABLED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/captcha")
	defer cancel()

	challenge, err := h.captcha.Generate(ctx)
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to generate captcha", "CAPTCHA_FAILED")
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return h.SuccessResponse(c, fiber.StatusOK, "Captcha generated", dto.CaptchaResponse{
		ID:          challenge.ID,
		MasterImage: challenge.MasterImageBase64,
		ThumbImage:  challenge.ThumbImageBase64,
		ExpiresAt:   challenge.ExpiresAt,
	})
}

func (h *AuthHandler) setSessionCookies(c fiber.Ctx, session *dto.SessionDTO) {
	c.Cookie(h.cookie(h.cookies.Name, session.AccessToken, "/", session.ExpiresAt))
	c.Cookie(h.cookie(h.cookies.refreshName(), session.RefreshToken, refreshCookiePath, session.RefreshExpiresAt))
}

func (h *AuthHandler) clearSessionCookies(c fiber.Ctx) {
	expired := time.Unix(0, 0).UTC()
	c.Cookie(h.cookie(h.cookies.Name, "", "/", expired))
	c.Cookie(h.cookie(h.cookies.refreshName(), "", refreshCookiePath, expired))
}

func (h *AuthHandler) cookie(name, value, path string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		Secure:   h.cookies.Secure,
		HTTPOnly: h.cookies.HTTPOnly,
		SameSite: strings.ToLower(h.cookies.SameSite),
	}
}

func codeOf(err error) string {
	if be, ok := businessflow.AsBusinessError(err); ok {
		return be.Code
	}
	return ""
}
