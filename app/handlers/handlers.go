// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const defaultRequestTimeout = 10 * time.Second

// baseHandler carries what every API handler shares: validation, the response envelope
// and request-scoped contexts
type baseHandler struct {
	validator      *validator.Validate
	requestTimeout time.Duration
	// baseURL overrides the request origin when rendering short URLs
	baseURL string
}

func newBaseHandler(baseURL string, requestTimeout time.Duration) baseHandler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return baseHandler{
		validator:      newValidator(),
		requestTimeout: requestTimeout,
		baseURL:        strings.TrimRight(baseURL, "/"),
	}
}

// newValidator reports json field names so messages line up with the request body
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes the 400 response itself when it fails.
// A nil return with ok=false means the response was already written.
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", businessflow.CodeValidationError, err.Error())
	}

	fields := make([]dto.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, dto.FieldError{Field: fe.Field(), Message: getValidationErrorMessage(fe)})
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", businessflow.CodeValidationError, fields)
}

// businessErrorResponse maps a flow error onto the HTTP status of its code. Unknown and
// internal errors are logged and answered with a generic message.
func (h *baseHandler) businessErrorResponse(c fiber.Ctx, ctx context.Context, err error, fallbackMessage, fallbackCode string) error {
	be, ok := businessflow.AsBusinessError(err)
	if !ok {
		logging.Ctx(ctx).Error().Err(err).Str("path", c.Path()).Msg(fallbackMessage)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
	}

	status := statusForCode(be.Code)
	if status == fiber.StatusInternalServerError {
		logging.Ctx(ctx).Error().Err(err).Str("code", be.Code).Str("path", c.Path()).Msg(fallbackMessage)
		return h.ErrorResponse(c, status, fallbackMessage, be.Code, nil)
	}

	var details any
	if field := fieldForError(err); field != "" {
		details = []dto.FieldError{{Field: field, Message: be.Message}}
	}
	return h.ErrorResponse(c, status, be.Message, be.Code, details)
}

func statusForCode(code string) int {
	switch code {
	case businessflow.CodeValidationError, businessflow.CodeCaptchaRequired, businessflow.CodeCaptchaInvalid:
		return fiber.StatusBadRequest
	case businessflow.CodeInvalidCredentials, businessflow.CodeTokenExpired, businessflow.CodeTokenInvalid,
		businessflow.CodeTokenRevoked, businessflow.CodeSessionNotFound:
		return fiber.StatusUnauthorized
	case businessflow.CodeAccountInactive:
		return fiber.StatusForbidden
	case businessflow.CodeEmailExists, businessflow.CodeShortCodeTaken:
		return fiber.StatusConflict
	case businessflow.CodeLinkNotFound:
		return fiber.StatusNotFound
	case businessflow.CodeLinkLimitReached:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// fieldForError names the request field a validation failure belongs to, for inline display
func fieldForError(err error) string {
	switch {
	case errors.Is(err, businessflow.ErrInvalidOriginalURL), errors.Is(err, businessflow.ErrOriginalURLTooLong):
		return "original_url"
	case errors.Is(err, businessflow.ErrInvalidCustomSlug), errors.Is(err, businessflow.ErrReservedCustomSlug),
		errors.Is(err, businessflow.ErrShortCodeTaken):
		return "custom_slug"
	case errors.Is(err, businessflow.ErrPasswordTooShort), errors.Is(err, businessflow.ErrPasswordTooLong):
		return "password"
	case errors.Is(err, businessflow.ErrPasswordMismatch):
		return "confirm_password"
	case errors.Is(err, businessflow.ErrEmailAlreadyExists):
		return "email"
	case errors.Is(err, businessflow.ErrCaptchaRequired), errors.Is(err, businessflow.ErrCaptchaInvalid):
		return "captcha_angle"
	default:
		return ""
	}
}

// createRequestContext detaches the flow from fasthttp's pooled request context and carries
// request metadata for logging and auditing. The caller must call the returned cancel.
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, h.requestTimeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get(fiber.HeaderUserAgent))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get(fiber.HeaderUserAgent))
	md.SetRequestID(requestid.FromContext(c))
	md.SetReferrer(c.Get(fiber.HeaderReferer))
	return md
}

// shortLinkOrigin is the configured base URL or, when unset, the origin of the request
func (h *baseHandler) shortLinkOrigin(c fiber.Ctx) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return strings.TrimRight(c.BaseURL(), "/")
}

func currentUserID(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals(utils.LocalsUserID).(uint)
	return userID, ok && userID != 0
}

func currentClaims(c fiber.Ctx) *services.TokenClaims {
	claims, _ := c.Locals(utils.LocalsTokenClaims).(*services.TokenClaims)
	return claims
}

func queryValues(c fiber.Ctx) url.Values {
	values := url.Values{}
	for k, v := range c.Queries() {
		values.Set(k, v)
	}
	return values
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "eqfield":
		return "Passwords do not match"
	case "uuid":
		return err.Field() + " must be a valid UUID"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
