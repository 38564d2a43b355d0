package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/amirphl/shortlink/utils"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret-key-of-32-chars!"

type fakeSignupFlow struct {
	signup func(ctx context.Context, req *dto.SignupRequest, md *businessflow.ClientMetadata) (*dto.AuthResponse, error)
}

func (f *fakeSignupFlow) Signup(ctx context.Context, req *dto.SignupRequest, md *businessflow.ClientMetadata) (*dto.AuthResponse, error) {
	return f.signup(ctx, req, md)
}

type fakeLoginFlow struct {
	login       func(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	refresh     func(ctx context.Context, token string) (*dto.AuthResponse, error)
	logout      func(ctx context.Context, claims *services.TokenClaims) error
	currentUser func(ctx context.Context, userID uint) (*dto.CurrentUserResponse, error)
}

func (f *fakeLoginFlow) Login(ctx context.Context, req *dto.LoginRequest, _ *businessflow.ClientMetadata) (*dto.AuthResponse, error) {
	return f.login(ctx, req)
}

func (f *fakeLoginFlow) Refresh(ctx context.Context, token string, _ *businessflow.ClientMetadata) (*dto.AuthResponse, error) {
	return f.refresh(ctx, token)
}

func (f *fakeLoginFlow) Logout(ctx context.Context, claims *services.TokenClaims, _ *businessflow.ClientMetadata) error {
	return f.logout(ctx, claims)
}

func (f *fakeLoginFlow) CurrentUser(ctx context.Context, userID uint) (*dto.CurrentUserResponse, error) {
	return f.currentUser(ctx, userID)
}

type fakeLinkFlow struct {
	create  func(userID uint, req *dto.CreateLinkRequest, baseURL string) (*dto.LinkDTO, error)
	list    func(userID uint, baseURL string) (*dto.ListLinksResponse, error)
	get     func(userID, linkID uint) (*dto.LinkDTO, error)
	delete  func(userID, linkID uint) (*dto.DeleteLinkResponse, error)
	export  func(userID uint, format string) (*dto.ExportFile, error)
	lastURL string
}

func (f *fakeLinkFlow) CreateLink(_ context.Context, userID uint, req *dto.CreateLinkRequest, baseURL string, _ *businessflow.ClientMetadata) (*dto.LinkDTO, error) {
	f.lastURL = baseURL
	return f.create(userID, req, baseURL)
}

func (f *fakeLinkFlow) ListLinks(_ context.Context, userID uint, baseURL string) (*dto.ListLinksResponse, error) {
	f.lastURL = baseURL
	return f.list(userID, baseURL)
}

func (f *fakeLinkFlow) GetLink(_ context.Context, userID, linkID uint, _ string) (*dto.LinkDTO, error) {
	return f.get(userID, linkID)
}

func (f *fakeLinkFlow) DeleteLink(_ context.Context, userID, linkID uint, _ *businessflow.ClientMetadata) (*dto.DeleteLinkResponse, error) {
	return f.delete(userID, linkID)
}

func (f *fakeLinkFlow) ExportLinks(_ context.Context, userID uint, format, _ string, _ *businessflow.ClientMetadata) (*dto.ExportFile, error) {
	return f.export(userID, format)
}

type fakeResolver struct {
	result  businessflow.RedirectResult
	visited []string
}

func (f *fakeResolver) Resolve(_ context.Context, code string, _ *businessflow.ClientMetadata) businessflow.RedirectResult {
	f.visited = append(f.visited, code)
	res := f.result
	res.ShortCode = code
	return res
}

func newTestTokenService(t *testing.T) services.TokenService {
	t.Helper()
	tokens, err := services.NewTokenService(15*time.Minute, time.Hour, "test-issuer", "test-audience", false, "", "", testSecret, services.NewMemoryRevocationStore())
	require.NoError(t, err)
	return tokens
}

// withUser stands in for the auth middleware
func withUser(userID uint) fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Locals(utils.LocalsUserID, userID)
		c.Locals(utils.LocalsTokenID, "token-1")
		c.Locals(utils.LocalsTokenClaims, &services.TokenClaims{UserID: userID, TokenType: services.TokenTypeAccess, TokenID: "token-1"})
		return c.Next()
	}
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{businessflow.CodeValidationError, fiber.StatusBadRequest},
		{businessflow.CodeCaptchaInvalid, fiber.StatusBadRequest},
		{businessflow.CodeInvalidCredentials, fiber.StatusUnauthorized},
		{businessflow.CodeTokenRevoked, fiber.StatusUnauthorized},
		{businessflow.CodeAccountInactive, fiber.StatusForbidden},
		{businessflow.CodeEmailExists, fiber.StatusConflict},
		{businessflow.CodeShortCodeTaken, fiber.StatusConflict},
		{businessflow.CodeLinkNotFound, fiber.StatusNotFound},
		{businessflow.CodeLinkLimitReached, fiber.StatusUnprocessableEntity},
		{businessflow.CodeInternal, fiber.StatusInternalServerError},
		{"SOMETHING_ELSE", fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, statusForCode(tt.code))
		})
	}
}

func TestFieldForError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		field string
	}{
		{"InvalidURL", businessflow.NewBusinessError(businessflow.CodeValidationError, "bad", businessflow.ErrInvalidOriginalURL), "original_url"},
		{"ReservedSlug", businessflow.NewBusinessError(businessflow.CodeValidationError, "bad", businessflow.ErrReservedCustomSlug), "custom_slug"},
		{"SlugTaken", businessflow.NewBusinessError(businessflow.CodeShortCodeTaken, "taken", businessflow.ErrShortCodeTaken), "custom_slug"},
		{"PasswordTooLong", businessflow.NewBusinessError(businessflow.CodeValidationError, "bad", businessflow.ErrPasswordTooLong), "password"},
		{"PasswordMismatch", businessflow.NewBusinessError(businessflow.CodeValidationError, "bad", businessflow.ErrPasswordMismatch), "confirm_password"},
		{"EmailExists", businessflow.NewBusinessError(businessflow.CodeEmailExists, "exists", businessflow.ErrEmailAlreadyExists), "email"},
		{"Unrelated", businessflow.NewBusinessError(businessflow.CodeInternal, "boom", io.EOF), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.field, fieldForError(tt.err))
		})
	}
}
