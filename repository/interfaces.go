// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/shortlink/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for user accounts
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error
}

// UserSessionRepository defines operations for issued sessions
type UserSessionRepository interface {
	Repository[models.UserSession, models.UserSessionFilter]
	BySessionToken(ctx context.Context, token string) (*models.UserSession, error)
	ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error)
	Deactivate(ctx context.Context, sessionID uint) error
	Touch(ctx context.Context, sessionID uint, at time.Time) error
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
}

// LinkStats is the aggregate over a user's active links
type LinkStats struct {
	TotalLinks  int64
	TotalClicks int64
}

// LinkRepository defines operations for short links
type LinkRepository interface {
	Repository[models.Link, models.LinkFilter]
	ActiveByShortCode(ctx context.Context, code string) (*models.Link, error)
	ListActiveByUser(ctx context.Context, userID uint) ([]*models.Link, error)
	CountActiveByUser(ctx context.Context, userID uint) (int64, error)
	StatsByUser(ctx context.Context, userID uint) (LinkStats, error)
	// Deactivate soft deletes the link owned by userID and returns the affected row count
	Deactivate(ctx context.Context, linkID, userID uint) (int64, error)
	// IncrementClicks atomically bumps the counter of an active link; nil when no active link matches
	IncrementClicks(ctx context.Context, code string, at time.Time) (*models.Link, error)
}

// LinkClickRepository defines operations for the click event log
type LinkClickRepository interface {
	Repository[models.LinkClick, models.LinkClickFilter]
	// DailyCountsByUser counts clicks on the user's active links since the given instant,
	// grouped by calendar day (YYYY-MM-DD) in the named time zone
	DailyCountsByUser(ctx context.Context, userID uint, since time.Time, timezone string) (map[string]int64, error)
}
