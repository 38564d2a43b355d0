// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/repository"
	"github.com/amirphl/shortlink/utils"
)

// ClientMetadata holds client information for audit logging, session tracking and click events
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Referrer  string `json:"referrer,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetReferrer sets the referrer of a visit
func (cm *ClientMetadata) SetReferrer(referrer string) {
	cm.Referrer = referrer
}

func (cm *ClientMetadata) ip() string {
	if cm == nil || cm.IPAddress == "" {
		return "127.0.0.1"
	}
	return cm.IPAddress
}

func (cm *ClientMetadata) userAgent() string {
	if cm == nil {
		return ""
	}
	return cm.UserAgent
}

// ToUserDTO converts a user model to its API representation
func ToUserDTO(user models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:          user.ID,
		UUID:        user.UUID.String(),
		Email:       user.Email,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt.UTC(),
		LastLoginAt: user.LastLoginAt,
	}
}

// ShortURL renders {baseURL}/{shortCode}
func ShortURL(baseURL, shortCode string) string {
	return strings.TrimRight(baseURL, "/") + "/" + shortCode
}

// ToLinkDTO converts a link model to its API representation
func ToLinkDTO(link models.Link, baseURL string) dto.LinkDTO {
	return dto.LinkDTO{
		ID:            link.ID,
		ShortCode:     link.ShortCode,
		ShortURL:      ShortURL(baseURL, link.ShortCode),
		OriginalURL:   link.OriginalURL,
		Clicks:        link.Clicks,
		IsActive:      link.Active(),
		CreatedAt:     link.CreatedAt.UTC(),
		LastClickedAt: link.LastClickedAt,
	}
}

func toSessionDTO(accessToken, refreshToken string, accessExpiresAt, refreshExpiresAt time.Time) dto.SessionDTO {
	return dto.SessionDTO{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(time.Until(accessExpiresAt).Seconds()),
		ExpiresAt:        accessExpiresAt.UTC(),
		RefreshExpiresAt: refreshExpiresAt.UTC(),
	}
}

// inTransaction runs fn in a unit of work and hands back its result
func inTransaction[T any](ctx context.Context, tx repository.Transactor, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// auditor writes audit rows. A failed write is logged and never fails the operation.
type auditor struct {
	repo repository.AuditLogRepository
}

func (a auditor) record(ctx context.Context, userID *uint, action, description string, success bool, errMsg *string, metadata *ClientMetadata) {
	if a.repo == nil {
		return
	}

	ipAddress := metadata.ip()
	userAgent := metadata.userAgent()

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errMsg,
	}

	requestID := utils.RequestIDFromContext(ctx)
	if requestID == "" && metadata != nil {
		requestID = metadata.RequestID
	}
	if requestID != "" {
		audit.RequestID = &requestID
	}

	if err := a.repo.Save(ctx, audit); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Failed to write audit log")
	}
}
