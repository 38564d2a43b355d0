package businessflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/repository"
	"github.com/amirphl/shortlink/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LoginFlow handles sign in, token refresh, sign out and the current user lookup
type LoginFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, metadata *ClientMetadata) (*dto.AuthResponse, error)
	Logout(ctx context.Context, claims *services.TokenClaims, metadata *ClientMetadata) error
	CurrentUser(ctx context.Context, userID uint) (*dto.CurrentUserResponse, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	tx          repository.Transactor
	sessions    sessionIssuer
	userRepo    repository.UserRepository
	sessionRepo repository.UserSessionRepository
	tokens      services.TokenService
	audit       auditor
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	tx repository.Transactor,
	userRepo repository.UserRepository,
	sessionRepo repository.UserSessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
) LoginFlow {
	return &LoginFlowImpl{
		tx:          tx,
		sessions:    sessionIssuer{tokens: tokenService, repo: sessionRepo},
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokenService,
		audit:       auditor{repo: auditRepo},
	}
}

// Login verifies the password and opens a new session
func (lf *LoginFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	var user *models.User
	resp, err := inTransaction(ctx, lf.tx, func(ctx context.Context) (*dto.AuthResponse, error) {
		var err error
		user, err = lf.userRepo.ByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrInvalidCredentials
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			return nil, ErrInvalidCredentials
		}

		if !utils.IsTrue(user.IsActive) {
			return nil, ErrAccountInactive
		}

		now := utils.UTCNow()
		if err := lf.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
			return nil, err
		}
		user.LastLoginAt = &now

		pair, err := lf.sessions.issue(ctx, user.ID, metadata)
		if err != nil {
			return nil, err
		}

		return &dto.AuthResponse{
			User:    ToUserDTO(*user),
			Session: toSessionDTO(pair.AccessToken, pair.RefreshToken, pair.AccessExpiresAt, pair.RefreshExpiresAt),
		}, nil
	})

	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	if err != nil {
		errMsg := err.Error()
		lf.audit.record(ctx, userID, models.AuditActionLoginFailed, fmt.Sprintf("Login failed for %s", email), false, &errMsg, metadata)

		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return nil, NewBusinessError(CodeInvalidCredentials, "Invalid email or password", err)
		case errors.Is(err, ErrAccountInactive):
			return nil, NewBusinessError(CodeAccountInactive, "Your account is inactive", err)
		default:
			return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
		}
	}

	lf.audit.record(ctx, userID, models.AuditActionLoginSuccess, fmt.Sprintf("User %d logged in", user.ID), true, nil, metadata)
	return resp, nil
}

// Refresh rotates the session bound to the refresh token: the old pair is revoked and a new
// session row replaces the old one under the same correlation id
func (lf *LoginFlowImpl) Refresh(ctx context.Context, refreshToken string, metadata *ClientMetadata) (*dto.AuthResponse, error) {
	if refreshToken == "" {
		return nil, NewBusinessError(CodeTokenInvalid, "Refresh token is required", ErrRefreshTokenMissing)
	}

	claims, err := lf.tokens.ValidateToken(ctx, refreshToken)
	if err != nil {
		return nil, tokenBusinessError(err)
	}
	if claims.TokenType != services.TokenTypeRefresh {
		return nil, tokenBusinessError(services.ErrTokenInvalid)
	}

	resp, err := inTransaction(ctx, lf.tx, func(ctx context.Context) (*dto.AuthResponse, error) {
		session, err := lf.sessionRepo.ByRefreshToken(ctx, claims.TokenID)
		if err != nil {
			return nil, err
		}
		if session == nil || !session.IsValid() || session.UserID != claims.UserID {
			return nil, ErrSessionNotFound
		}

		user, err := lf.userRepo.ByID(ctx, claims.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		if !utils.IsTrue(user.IsActive) {
			return nil, ErrAccountInactive
		}

		pair, _, err := lf.tokens.RefreshToken(ctx, refreshToken)
		if err != nil {
			return nil, err
		}

		if err := lf.sessionRepo.Deactivate(ctx, session.ID); err != nil {
			return nil, err
		}
		if err := lf.sessions.store(ctx, session.CorrelationID, user.ID, pair, metadata); err != nil {
			return nil, err
		}

		if err := lf.tokens.RevokeTokenID(ctx, session.SessionToken, session.ExpiresAt); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Uint("session_id", session.ID).Msg("Failed to revoke rotated access token")
		}

		return &dto.AuthResponse{
			User:    ToUserDTO(*user),
			Session: toSessionDTO(pair.AccessToken, pair.RefreshToken, pair.AccessExpiresAt, pair.RefreshExpiresAt),
		}, nil
	})
	if err != nil {
		errMsg := err.Error()
		lf.audit.record(ctx, &claims.UserID, models.AuditActionTokenRefreshed, "Token refresh failed", false, &errMsg, metadata)

		switch {
		case errors.Is(err, ErrSessionNotFound):
			return nil, NewBusinessError(CodeSessionNotFound, "Session not found or expired, please sign in again", err)
		case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrAccountInactive):
			return nil, NewBusinessError(CodeAccountInactive, "Your account is inactive", err)
		case errors.Is(err, services.ErrTokenExpired), errors.Is(err, services.ErrTokenInvalid), errors.Is(err, services.ErrTokenRevoked):
			return nil, tokenBusinessError(err)
		default:
			return nil, NewBusinessError("REFRESH_FAILED", "Failed to refresh session", err)
		}
	}

	lf.audit.record(ctx, &claims.UserID, models.AuditActionTokenRefreshed, "Session tokens rotated", true, nil, metadata)
	return resp, nil
}

// Logout revokes the presented access token and closes its session, along with the session's
// refresh token. A session that is already gone is not an error.
func (lf *LoginFlowImpl) Logout(ctx context.Context, claims *services.TokenClaims, metadata *ClientMetadata) error {
	if claims == nil {
		return NewBusinessError(CodeTokenInvalid, "Access token is required", services.ErrTokenInvalid)
	}

	if err := lf.tokens.RevokeTokenID(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("jti", claims.TokenID).Msg("Failed to revoke access token on logout")
	}

	_, err := inTransaction(ctx, lf.tx, func(ctx context.Context) (struct{}, error) {
		session, err := lf.sessionRepo.BySessionToken(ctx, claims.TokenID)
		if err != nil || session == nil {
			return struct{}{}, err
		}
		if err := lf.sessionRepo.Deactivate(ctx, session.ID); err != nil {
			return struct{}{}, err
		}
		if session.RefreshToken != nil {
			if err := lf.tokens.RevokeTokenID(ctx, *session.RefreshToken, session.ExpiresAt); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Uint("session_id", session.ID).Msg("Failed to revoke refresh token on logout")
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		errMsg := err.Error()
		lf.audit.record(ctx, &claims.UserID, models.AuditActionLogout, "Logout failed", false, &errMsg, metadata)
		return NewBusinessError("LOGOUT_FAILED", "Failed to sign out", err)
	}

	lf.audit.record(ctx, &claims.UserID, models.AuditActionLogout, fmt.Sprintf("User %d logged out", claims.UserID), true, nil, metadata)
	return nil
}

// CurrentUser returns the signed-in user
func (lf *LoginFlowImpl) CurrentUser(ctx context.Context, userID uint) (*dto.CurrentUserResponse, error) {
	user, err := lf.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError(CodeInternal, "Failed to load user", err)
	}
	if user == nil {
		return nil, NewBusinessError(CodeSessionNotFound, "User not found", ErrUserNotFound)
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError(CodeAccountInactive, "Your account is inactive", ErrAccountInactive)
	}

	return &dto.CurrentUserResponse{
		User:            ToUserDTO(*user),
		IsAuthenticated: true,
	}, nil
}

// tokenBusinessError maps token service failures to client codes
func tokenBusinessError(err error) *BusinessError {
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		return NewBusinessError(CodeTokenExpired, "Token has expired", err)
	case errors.Is(err, services.ErrTokenRevoked):
		return NewBusinessError(CodeTokenRevoked, "Token has been revoked", err)
	default:
		return NewBusinessError(CodeTokenInvalid, "Invalid token", err)
	}
}

// sessionIssuer issues a token pair and records it as a session row
type sessionIssuer struct {
	tokens services.TokenService
	repo   repository.UserSessionRepository
}

func (si sessionIssuer) issue(ctx context.Context, userID uint, metadata *ClientMetadata) (*services.TokenPair, error) {
	pair, err := si.tokens.GenerateTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := si.store(ctx, uuid.New(), userID, pair, metadata); err != nil {
		return nil, err
	}
	return pair, nil
}

func (si sessionIssuer) store(ctx context.Context, correlationID uuid.UUID, userID uint, pair *services.TokenPair, metadata *ClientMetadata) error {
	ipAddress := metadata.ip()
	userAgent := metadata.userAgent()
	now := utils.UTCNow()

	session := &models.UserSession{
		CorrelationID:  correlationID,
		UserID:         userID,
		SessionToken:   pair.AccessTokenID,
		RefreshToken:   utils.ToPtr(pair.RefreshTokenID),
		IPAddress:      &ipAddress,
		UserAgent:      &userAgent,
		IsActive:       utils.ToPtr(true),
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      pair.RefreshExpiresAt,
	}
	return si.repo.Save(ctx, session)
}
