package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/repository"
	"github.com/amirphl/shortlink/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SignupFlow handles account creation
type SignupFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
}

// PasswordSettings bounds password handling
type PasswordSettings struct {
	MinLength  int
	BcryptCost int
}

func (s PasswordSettings) withDefaults() PasswordSettings {
	if s.MinLength <= 0 {
		s.MinLength = 8
	}
	if s.BcryptCost < bcrypt.MinCost || s.BcryptCost > bcrypt.MaxCost {
		s.BcryptCost = bcrypt.DefaultCost
	}
	return s
}

// SignupFlowImpl implements the signup business flow
type SignupFlowImpl struct {
	tx       repository.Transactor
	sessions sessionIssuer
	userRepo repository.UserRepository
	audit    auditor
	captcha  services.CaptchaService
	settings PasswordSettings
}

// NewSignupFlow creates a new signup flow. A nil captcha service disables the challenge.
func NewSignupFlow(
	tx repository.Transactor,
	userRepo repository.UserRepository,
	sessionRepo repository.UserSessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	captcha services.CaptchaService,
	settings PasswordSettings,
) SignupFlow {
	return &SignupFlowImpl{
		tx:       tx,
		sessions: sessionIssuer{tokens: tokenService, repo: sessionRepo},
		userRepo: userRepo,
		audit:    auditor{repo: auditRepo},
		captcha:  captcha,
		settings: settings.withDefaults(),
	}
}

// Signup creates the account and signs the user in
func (sf *SignupFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	if err := sf.validateSignupRequest(ctx, req); err != nil {
		errMsg := err.Error()
		sf.audit.record(ctx, nil, models.AuditActionSignupFailed, fmt.Sprintf("Signup rejected for %s", email), false, &errMsg, metadata)

		switch {
		case errors.Is(err, ErrCaptchaRequired):
			return nil, NewBusinessError(CodeCaptchaRequired, "Please solve the captcha", err)
		case errors.Is(err, ErrCaptchaInvalid):
			return nil, NewBusinessError(CodeCaptchaInvalid, "Captcha answer is incorrect, please try again", err)
		default:
			return nil, NewBusinessError(CodeValidationError, err.Error(), err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), sf.settings.BcryptCost)
	if err != nil {
		return nil, NewBusinessError(CodeInternal, "Failed to create account", err)
	}

	var user *models.User
	resp, err := inTransaction(ctx, sf.tx, func(ctx context.Context) (*dto.AuthResponse, error) {
		existing, err := sf.userRepo.ByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrEmailAlreadyExists
		}

		user = &models.User{
			UUID:         uuid.New(),
			Email:        email,
			PasswordHash: string(hash),
			IsActive:     utils.ToPtr(true),
			LastLoginAt:  utils.UTCNowPtr(),
		}
		if err := sf.userRepo.Save(ctx, user); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, ErrEmailAlreadyExists
			}
			return nil, err
		}

		pair, err := sf.sessions.issue(ctx, user.ID, metadata)
		if err != nil {
			return nil, err
		}

		return &dto.AuthResponse{
			User:    ToUserDTO(*user),
			Session: toSessionDTO(pair.AccessToken, pair.RefreshToken, pair.AccessExpiresAt, pair.RefreshExpiresAt),
		}, nil
	})
	if err != nil {
		errMsg := err.Error()
		sf.audit.record(ctx, nil, models.AuditActionSignupFailed, fmt.Sprintf("Signup failed for %s", email), false, &errMsg, metadata)

		if errors.Is(err, ErrEmailAlreadyExists) {
			return nil, NewBusinessError(CodeEmailExists, "An account with this email already exists", err)
		}
		return nil, NewBusinessError("SIGNUP_FAILED", "Failed to create account", err)
	}

	sf.audit.record(ctx, &user.ID, models.AuditActionSignupCompleted, fmt.Sprintf("User %d signed up", user.ID), true, nil, metadata)
	sf.audit.record(ctx, &user.ID, models.AuditActionSessionCreated, "Session created after signup", true, nil, metadata)

	logging.Ctx(ctx).Info().Uint("user_id", user.ID).Msg("User signed up")

	return resp, nil
}

// bcrypt rejects longer inputs
const maxPasswordBytes = 72

func (sf *SignupFlowImpl) validateSignupRequest(ctx context.Context, req *dto.SignupRequest) error {
	if len(req.Password) < sf.settings.MinLength {
		return fmt.Errorf("%w: at least %d characters", ErrPasswordTooShort, sf.settings.MinLength)
	}
	if len([]byte(req.Password)) > maxPasswordBytes {
		return fmt.Errorf("%w: at most %d bytes", ErrPasswordTooLong, maxPasswordBytes)
	}
	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if sf.captcha == nil {
		return nil
	}
	if req.CaptchaID == "" || req.CaptchaAngle == nil {
		return ErrCaptchaRequired
	}
	if !sf.captcha.Verify(ctx, req.CaptchaID, *req.CaptchaAngle) {
		return ErrCaptchaInvalid
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
