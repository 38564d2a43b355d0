// Package businessflow contains the core business logic and use cases for links, analytics and authentication
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPasswordMismatch    = errors.New("password confirmation does not match")
	ErrPasswordTooLong     = errors.New("password is too long")
	ErrSessionNotFound     = errors.New("session not found")
	ErrCaptchaRequired     = errors.New("captcha is required")
	ErrCaptchaInvalid      = errors.New("captcha answer is invalid")
	ErrRefreshTokenMissing = errors.New("refresh token is required")

	// Link-related errors
	ErrLinkNotFound         = errors.New("link not found")
	ErrShortCodeTaken       = errors.New("short code is already taken")
	ErrShortCodeExhausted   = errors.New("could not allocate a unique short code")
	ErrInvalidCustomSlug    = errors.New("custom slug may only contain letters, digits, '-' and '_' (1-50 characters)")
	ErrReservedCustomSlug   = errors.New("custom slug is reserved")
	ErrInvalidOriginalURL   = errors.New("original URL must be an absolute http or https URL")
	ErrOriginalURLTooLong   = errors.New("original URL is too long")
	ErrLinkLimitReached     = errors.New("maximum number of active links reached")
	ErrUnsupportedExportFmt = errors.New("unsupported export format")
)

// Error codes returned to API clients
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailExists        = "EMAIL_ALREADY_EXISTS"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeCaptchaRequired    = "CAPTCHA_REQUIRED"
	CodeCaptchaInvalid     = "CAPTCHA_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeLinkNotFound       = "LINK_NOT_FOUND"
	CodeShortCodeTaken     = "SHORT_CODE_TAKEN"
	CodeLinkLimitReached   = "LINK_LIMIT_REACHED"
	CodeInternal           = "INTERNAL_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// AsBusinessError returns the outermost BusinessError in err's chain
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsCaptchaRequired(err error) bool {
	return errors.Is(err, ErrCaptchaRequired)
}

func IsCaptchaInvalid(err error) bool {
	return errors.Is(err, ErrCaptchaInvalid)
}

func IsLinkNotFound(err error) bool {
	return errors.Is(err, ErrLinkNotFound)
}

func IsShortCodeTaken(err error) bool {
	return errors.Is(err, ErrShortCodeTaken) || errors.Is(err, ErrShortCodeExhausted)
}

func IsLinkLimitReached(err error) bool {
	return errors.Is(err, ErrLinkLimitReached)
}

// IsLinkValidationError reports input problems with a create request
func IsLinkValidationError(err error) bool {
	return errors.Is(err, ErrInvalidCustomSlug) ||
		errors.Is(err, ErrReservedCustomSlug) ||
		errors.Is(err, ErrInvalidOriginalURL) ||
		errors.Is(err, ErrOriginalURLTooLong) ||
		errors.Is(err, ErrUnsupportedExportFmt)
}

// IsSignupValidationError reports input problems with a signup request
func IsSignupValidationError(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) || errors.Is(err, ErrPasswordTooLong) || errors.Is(err, ErrPasswordMismatch)
}
