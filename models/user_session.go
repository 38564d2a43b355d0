package models

import (
	"time"

	"github.com/amirphl/shortlink/utils"
	"github.com/google/uuid"
)

// UserSession records one issued token pair. SessionToken holds the access token id (jti).
type UserSession struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CorrelationID  uuid.UUID `gorm:"type:uuid;not null;index:idx_sessions_correlation_id" json:"correlation_id"`
	UserID         uint      `gorm:"not null;index:idx_sessions_user_id" json:"user_id"`
	User           User      `gorm:"foreignKey:UserID;references:ID" json:"-"`
	SessionToken   string    `gorm:"size:255;not null;uniqueIndex:uk_sessions_session_token" json:"-"`
	RefreshToken   *string   `gorm:"size:255;uniqueIndex:uk_sessions_refresh_token" json:"-"`
	IPAddress      *string   `gorm:"size:64;index:idx_sessions_ip_address" json:"ip_address,omitempty"`
	UserAgent      *string   `gorm:"type:text" json:"user_agent,omitempty"`
	IsActive       *bool     `gorm:"default:true;index:idx_sessions_is_active" json:"is_active"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	LastAccessedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"last_accessed_at"`
	ExpiresAt      time.Time `gorm:"not null;index:idx_sessions_expires_at" json:"expires_at"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

// UserSessionFilter represents filter criteria for session queries
type UserSessionFilter struct {
	ID            *uint
	CorrelationID *uuid.UUID
	UserID        *uint
	SessionToken  *string
	RefreshToken  *string
	IsActive      *bool
	ExpiresBefore *time.Time
}

func (s *UserSession) IsExpired() bool {
	return utils.UTCNow().After(s.ExpiresAt)
}

func (s *UserSession) IsValid() bool {
	return utils.IsTrue(s.IsActive) && !s.IsExpired()
}
